package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m" // Yellow for changed values
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Global readline writer for log output
var rlWriter = &readlineWriter{}

// DebugState manages the watched axes and the latest state of every axis
type DebugState struct {
	watches       []string // Axis device ids
	headerPrinted bool
	columnWidths  []int
	latest        map[string]AxisState // Keyed by device id
	rl            *readline.Instance
	prevValues    map[string]string // Track previous value per watch for change highlighting
}

// NewDebugState creates a new debug state
func NewDebugState() *DebugState {
	return &DebugState{
		watches:    make([]string, 0),
		latest:     make(map[string]AxisState),
		prevValues: make(map[string]string),
	}
}

// AddWatch adds an axis to the watch list
func (s *DebugState) AddWatch(id string) {
	if slices.Contains(s.watches, id) {
		log.Printf("Already watching: %s", id)
		return
	}
	s.watches = append(s.watches, id)
	sort.Strings(s.watches)
	s.headerPrinted = false
	log.Printf("Watching: %s", id)
}

// RemoveWatch removes an axis from the watch list
func (s *DebugState) RemoveWatch(id string) bool {
	i := slices.Index(s.watches, id)
	if i < 0 {
		log.Printf("No watch found for: %s", id)
		return false
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	s.headerPrinted = false
	log.Printf("Unwatched: %s", id)
	return true
}

// RemoveAll removes all watches
func (s *DebugState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	log.Println("All watches removed")
}

// UpdateState stores the latest state of an axis
func (s *DebugState) UpdateState(state AxisState) {
	s.latest[axisID(state.Name)] = state
}

// SetReadline sets the readline instance for proper output handling
func (s *DebugState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// print outputs a line, handling readline prompt properly
func (s *DebugState) print(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if s.rl != nil {
		s.rl.Clean()
		fmt.Println(line)
		s.rl.Refresh()
	} else {
		fmt.Println(line)
	}
}

// ListAxes prints the latest state of every axis
func (s *DebugState) ListAxes(known []string) {
	s.print("Axes (%d):", len(known))
	for _, id := range known {
		state, ok := s.latest[id]
		if !ok {
			s.print("  %s: no data yet", id)
			continue
		}
		s.print("  %s: %s (count %d, last delta %d, range %s .. %s)",
			id, formatValue(state.Unit, state.Value), state.Count, state.Delta,
			formatValue(state.Unit, state.Low), formatValue(state.Unit, state.High))
	}
}

// watchColumns returns the header and cell values for a watched axis
func watchColumns(id string, state AxisState, ok bool) (header []string, cells []string) {
	header = []string{id, id + " count"}
	if !ok {
		return header, []string{"-", "-"}
	}
	return header, []string{formatValue(state.Unit, state.Value), strconv.Itoa(int(state.Count))}
}

// PrintHeader prints the column headers
func (s *DebugState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	var parts []string
	s.columnWidths = s.columnWidths[:0]
	for _, id := range s.watches {
		header, _ := watchColumns(id, AxisState{}, false)
		for _, h := range header {
			s.columnWidths = append(s.columnWidths, len(h))
			parts = append(parts, h)
		}
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[string]string) // Reset previous values when header changes
}

// PrintRow prints the current values for all watches (only if changed)
func (s *DebugState) PrintRow() {
	if len(s.watches) == 0 {
		return
	}

	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.columnWidths))
	anyChanged := false
	newValues := make(map[string]string, len(s.columnWidths))

	col := 0
	for _, id := range s.watches {
		state, ok := s.latest[id]
		header, cells := watchColumns(id, state, ok)
		for i, value := range cells {
			key := header[i]
			newValues[key] = value

			width := s.columnWidths[col]
			if len(value) > width {
				width = len(value)
				s.columnWidths[col] = width
			}
			col++

			prevValue, hasPrev := s.prevValues[key]
			if !hasPrev || prevValue != value {
				anyChanged = true
				parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
			} else {
				parts = append(parts, fmt.Sprintf("%*s", width, value))
			}
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// axisID converts an axis name to the id used on the console
func axisID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// parseAxisCommand parses the console commands that drive an axis:
//
//	decode <axis> <raw>
//	encode <axis> <value>
//	reset <axis> <count> <value>
//	home <axis> <value>
//	configure <axis> <bits> <counts_per_rev> <value_per_rev>
func parseAxisCommand(parts []string) (string, AxisInput, error) {
	usage := map[string]string{
		"decode":    "usage: decode <axis> <raw>",
		"encode":    "usage: encode <axis> <value>",
		"reset":     "usage: reset <axis> <count> <value>",
		"home":      "usage: home <axis> <value>",
		"configure": "usage: configure <axis> <bits> <counts_per_rev> <value_per_rev>",
	}
	args := map[string]int{"decode": 1, "encode": 1, "reset": 2, "home": 1, "configure": 3}

	cmd := parts[0]
	want, ok := args[cmd]
	if !ok {
		return "", AxisInput{}, fmt.Errorf("unknown command: %s", cmd)
	}
	if len(parts) != want+2 {
		return "", AxisInput{}, errors.New(usage[cmd])
	}
	id := parts[1]
	rest := parts[2:]

	switch cmd {
	case "decode":
		raw, err := parseRawCount(rest[0])
		return id, AxisInput{Kind: InputRawCount, Raw: raw}, err

	case "encode":
		value, err := parseTarget(rest[0])
		return id, AxisInput{Kind: InputTarget, Value: value}, err

	case "reset":
		count, err := parseRawCount(rest[0])
		if err != nil {
			return "", AxisInput{}, err
		}
		value, err := parseTarget(rest[1])
		return id, AxisInput{Kind: InputReset, Count: count, Value: value}, err

	case "home":
		value, err := parseTarget(rest[0])
		return id, AxisInput{Kind: InputResetValue, Value: value}, err

	default: // configure
		bits, err := strconv.ParseUint(rest[0], 10, 8)
		if err != nil {
			return "", AxisInput{}, fmt.Errorf("bits %q: %w", rest[0], err)
		}
		counts, err := strconv.ParseUint(rest[1], 10, 32)
		if err != nil {
			return "", AxisInput{}, fmt.Errorf("counts per rev %q: %w", rest[1], err)
		}
		valuePerRev, err := strconv.ParseFloat(rest[2], 64)
		if err != nil {
			return "", AxisInput{}, fmt.Errorf("value per rev %q: %w", rest[2], err)
		}
		return id, AxisInput{
			Kind:         InputConfigure,
			Bits:         uint8(bits),
			CountsPerRev: uint32(counts),
			ValuePerRev:  valuePerRev,
		}, nil
	}
}

// handleDebugCommand processes a debug command
func handleDebugCommand(cmd string, state *DebugState, inputChans map[string]chan<- AxisInput) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	known := make([]string, 0, len(inputChans))
	for id := range inputChans {
		known = append(known, id)
	}
	sort.Strings(known)

	switch parts[0] {
	case "watch":
		if len(parts) != 2 {
			log.Println("Usage: watch <axis>")
			return
		}
		if _, ok := inputChans[parts[1]]; !ok {
			log.Printf("Unknown axis: %s (try 'list')", parts[1])
			return
		}
		state.AddWatch(parts[1])

	case "unwatch":
		if len(parts) != 2 {
			log.Println("Usage: unwatch <axis> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		state.RemoveWatch(parts[1])

	case "list":
		state.ListAxes(known)

	case "decode", "encode", "reset", "home", "configure":
		id, in, err := parseAxisCommand(parts)
		if err != nil {
			log.Printf("Error: %v", err)
			return
		}
		ch, ok := inputChans[id]
		if !ok {
			log.Printf("Unknown axis: %s (try 'list')", id)
			return
		}
		select {
		case ch <- in:
		default:
			log.Printf("%s input channel full, dropping %s", id, in.Kind)
		}

	case "help":
		fmt.Println("Commands:")
		fmt.Println("  list                                   - Show all axes")
		fmt.Println("  watch <axis>                           - Print value and count when they change")
		fmt.Println("  unwatch <axis> | unwatch --all         - Remove watches")
		fmt.Println("  decode <axis> <raw>                    - Feed a raw counter reading")
		fmt.Println("  encode <axis> <value>                  - Move to a target value")
		fmt.Println("  reset <axis> <count> <value>           - Set count and value")
		fmt.Println("  home <axis> <value>                    - Set value, derive count")
		fmt.Println("  configure <axis> <bits> <counts> <per> - Change counter depth and scale")
		fmt.Println("  help                                   - Show this help")

	default:
		log.Printf("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		line = strings.TrimSpace(line)
		if line != "" {
			commandChan <- line
		}
	}
}

// getHistoryFilePath returns the path for debug history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	appCache := filepath.Join(cacheDir, "encoderctl")
	_ = os.MkdirAll(appCache, 0750)
	return filepath.Join(appCache, "debug_history")
}

// debugWorker provides an interactive console for inspecting and driving axes
func debugWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	stateChan <-chan AxisState,
	inputChans map[string]chan<- AxisInput,
) {
	// Create readline instance with prompt and persistent history
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Printf("Debug worker: readline init failed: %v", err)
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil // Clear readline reference on exit
	}()

	// Redirect log output through readline-aware writer
	rlWriter.rl = rl
	log.SetOutput(rlWriter)

	log.Println("Debug worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	state := NewDebugState()
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case cmd := <-commandChan:
			handleDebugCommand(cmd, state, inputChans)
		case s := <-stateChan:
			state.UpdateState(s)
			if slices.Contains(state.watches, axisID(s.Name)) {
				state.PrintRow()
			}
		case <-ctx.Done():
			log.Println("Debug worker stopped")
			return
		}
	}
}
