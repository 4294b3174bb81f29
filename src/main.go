package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
)

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// If function returned normally (no panic), exit the goroutine
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Printf("Panic in %s (attempt %d/%d): %v\n", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Printf("%s failed after %d retries, shutting down\n", name, maxRetries)
				cancel()
				return
			}

			log.Printf("%s will retry in %v\n", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// getenvDefault returns the environment variable or a fallback when it is unset
func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	debug := flag.Bool("debug", false, "Start the interactive console")
	flag.Parse()

	log.Println("Starting encoderctl...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	mqttUsername := os.Getenv("MQTT_USERNAME")
	mqttPassword := os.Getenv("MQTT_PASSWORD")
	if mqttUsername == "" || mqttPassword == "" {
		log.Fatal("MQTT_USERNAME and MQTT_PASSWORD must be set in .env file")
	}
	mqttBroker := getenvDefault("MQTT_BROKER", "homeassistant.lan")
	mqttClientID := getenvDefault("MQTT_CLIENT_ID", "encoderctl")

	// Define axis configurations
	pan := AxisConfig{
		Name:          "Pan Axis",
		Manufacturer:  "CUI Devices",
		Bits:          16,
		CountsPerRev:  4096,
		ValuePerRev:   360.0,
		Unit:          "deg",
		Precision:     2,
		RawCountTopic: "encoderctl/pan/raw",
		TargetTopic:   "encoderctl/pan/target",
		ResetTopic:    "encoderctl/pan/reset",
		CommandTopic:  "encoderctl/pan/command",
	}

	tilt := AxisConfig{
		Name:          "Tilt Axis",
		Manufacturer:  "CUI Devices",
		Bits:          16,
		CountsPerRev:  4096,
		ValuePerRev:   360.0,
		Unit:          "deg",
		Precision:     2,
		RawCountTopic: "encoderctl/tilt/raw",
		TargetTopic:   "encoderctl/tilt/target",
		ResetTopic:    "encoderctl/tilt/reset",
		CommandTopic:  "encoderctl/tilt/command",
	}

	// Lead screw: 8 bit timer counter, 200 counts per turn, 8mm lead
	rail := AxisConfig{
		Name:          "Rail",
		Manufacturer:  "Custom",
		Bits:          8,
		CountsPerRev:  200,
		ValuePerRev:   8.0,
		Unit:          "mm",
		Precision:     2,
		RawCountTopic: "encoderctl/rail/raw",
		ResetTopic:    "encoderctl/rail/reset",
	}

	axes := []AxisConfig{pan, tilt, rail}
	for _, a := range axes {
		if err := a.Validate(); err != nil {
			log.Fatalf("Invalid axis config: %v", err)
		}
	}

	// Sort and dedupe topics list
	topics := buildTopicsList(axes)
	slices.Sort(topics)
	topics = slices.Compact(topics)

	// Create context for lifecycle management
	ctx, cancel := context.WithCancel(context.Background())

	// Create channels for communication between workers
	msgChan := make(chan SensorMessage, 100)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan mqtt.Client, 1)     // Buffered to prevent blocking onConnect

	var stateChan chan AxisState
	if *debug {
		stateChan = make(chan AxisState, 100)
	}

	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})

	mqttSender := NewMQTTSender(mqttOutgoingChan)

	log.Println("Creating Home Assistant entities...")
	for _, a := range axes {
		if err := mqttSender.CreateAxisEntities(a); err != nil {
			cancel()
			log.Fatalf("Failed to create entities: %v", err)
		}
	}
	log.Println("Home Assistant entities created")

	// Launch one worker per axis, each owning its translator
	inputChans := make(map[string]chan<- AxisInput, len(axes))
	consoleChans := make(map[string]chan<- AxisInput, len(axes))
	for _, a := range axes {
		inputChan := make(chan AxisInput, 100)
		inputChans[a.Name] = inputChan
		consoleChans[a.DeviceID()] = inputChan

		workerConfig := a.WorkerConfig()
		SafeGo(ctx, cancel, a.DeviceID()+"-axis", func(ctx context.Context) {
			axisWorker(ctx, inputChan, workerConfig, mqttSender, stateChan)
		})
	}

	routes := buildRoutes(axes, inputChans)
	SafeGo(ctx, cancel, "router-worker", func(ctx context.Context) {
		routerWorker(ctx, msgChan, routes)
	})
	log.Println("Router worker started")

	if *debug {
		SafeGo(ctx, cancel, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, stateChan, consoleChans)
		})
	}

	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, mqttBroker, topics, mqttUsername, mqttPassword, mqttClientID, msgChan, mqttClientChan)
	})
	log.Println("MQTT worker started")

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down due to error...")
	}
	cancel()
}
