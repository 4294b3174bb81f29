package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InputKind identifies what an AxisInput asks the axis worker to do
type InputKind int

const (
	InputRawCount    InputKind = iota // Decode a raw counter reading
	InputTarget                       // Encode a target value
	InputReset                        // Reset count and value
	InputResetValue                   // Reset value, derive count
	InputConfigure                    // Replace counter depth and scale
)

func (k InputKind) String() string {
	switch k {
	case InputRawCount:
		return "raw count"
	case InputTarget:
		return "target"
	case InputReset:
		return "reset"
	case InputResetValue:
		return "reset value"
	case InputConfigure:
		return "configure"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// AxisInput is a single request for an axis worker
type AxisInput struct {
	Kind  InputKind
	Raw   int32   // InputRawCount
	Count int32   // InputReset
	Value float64 // InputTarget, InputReset, InputResetValue

	// InputConfigure
	Bits         uint8
	CountsPerRev uint32
	ValuePerRev  float64
}

// resetPayload is the JSON body of a reset topic message.
// Without a count only the value is known and the count is derived from it.
type resetPayload struct {
	Count *int32   `json:"count"`
	Value *float64 `json:"value"`
}

// parseRawCount parses a raw counter reading. Integral floats ("123.0") are
// accepted since Home Assistant sensors often report them that way.
func parseRawCount(payload string) (int32, error) {
	payload = strings.TrimSpace(payload)
	if n, err := strconv.ParseInt(payload, 10, 32); err == nil {
		return int32(n), nil
	}
	f, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return 0, fmt.Errorf("raw count %q: %w", payload, err)
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("raw count %q is not a 32 bit integer", payload)
	}
	return int32(f), nil
}

// parseTarget parses a target value
func parseTarget(payload string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("target %q: %w", payload, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("target %q is not finite", payload)
	}
	return v, nil
}

// parseReset parses a reset command: {"count": 0, "value": 0.0} or {"value": 90.0}
func parseReset(payload string) (AxisInput, error) {
	var p resetPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return AxisInput{}, fmt.Errorf("reset %q: %w", payload, err)
	}
	if p.Value == nil {
		return AxisInput{}, fmt.Errorf("reset %q: value is required", payload)
	}
	if p.Count == nil {
		return AxisInput{Kind: InputResetValue, Value: *p.Value}, nil
	}
	return AxisInput{Kind: InputReset, Count: *p.Count, Value: *p.Value}, nil
}
