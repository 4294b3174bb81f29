package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ryansname/encoderctl/src/encoder"
	"github.com/ryansname/encoderctl/src/tracking"
)

// AxisState is a snapshot of an axis, sent to the console
type AxisState struct {
	Name       string
	Unit       string
	Value      float64
	Count      int32
	Delta      int32 // Last encoded delta
	Low, High  float64
	Configured bool
	UpdatedAt  time.Time
}

// AxisCommand is published to the command topic after a target is encoded
type AxisCommand struct {
	Delta   int32 `json:"delta"`   // Counts to move by
	Count   int32 `json:"count"`   // Absolute count after the move
	Wrapped int32 `json:"wrapped"` // Count folded into the counter width
}

// axis owns one translator. It is only ever used from its worker goroutine.
type axis struct {
	config     AxisWorkerConfig
	translator encoder.Translator
	travel     tracking.RollingRange
	lastDelta  int32
}

// newAxis creates a configured axis
func newAxis(config AxisWorkerConfig) (*axis, error) {
	a := &axis{
		config: config,
		travel: tracking.NewRollingRange(),
	}
	if err := a.translator.Configure(config.Bits, config.CountsPerRev, config.ValuePerRev); err != nil {
		return nil, fmt.Errorf("%s: %w", config.Name, err)
	}
	return a, nil
}

// apply runs one input through the translator.
// A non-nil command is returned for encoded targets.
func (a *axis) apply(in AxisInput) (*AxisCommand, error) {
	t := &a.translator

	switch in.Kind {
	case InputRawCount:
		value, err := t.Decode(in.Raw)
		if err != nil {
			return nil, err
		}
		a.travel.Record(value)

	case InputTarget:
		delta, err := t.Encode(in.Value)
		if err != nil {
			return nil, err
		}
		a.lastDelta = delta
		a.travel.Record(in.Value)
		return &AxisCommand{
			Delta:   delta,
			Count:   t.Count(),
			Wrapped: t.Wrap(int64(t.Count())),
		}, nil

	case InputReset:
		t.Reset(in.Count, in.Value)
		a.travel.Clear()
		a.travel.Record(in.Value)

	case InputResetValue:
		if err := t.ResetValue(in.Value); err != nil {
			return nil, err
		}
		a.travel.Clear()
		a.travel.Record(in.Value)

	case InputConfigure:
		if err := t.Configure(in.Bits, in.CountsPerRev, in.ValuePerRev); err != nil {
			return nil, err
		}
		a.lastDelta = 0
		a.travel.Clear()

	default:
		return nil, fmt.Errorf("unknown input %v", in.Kind)
	}

	return nil, nil
}

// state returns a snapshot of the axis
func (a *axis) state() AxisState {
	return AxisState{
		Name:       a.config.Name,
		Unit:       a.config.Unit,
		Value:      a.translator.Value(),
		Count:      a.translator.Count(),
		Delta:      a.lastDelta,
		Low:        a.travel.Low(),
		High:       a.travel.High(),
		Configured: a.translator.Configured(),
		UpdatedAt:  time.Now(),
	}
}

// statePayload builds the JSON published on the axis state topic
func statePayload(s AxisState) ([]byte, error) {
	return json.Marshal(map[string]any{
		"value": s.Value,
		"count": s.Count,
		"delta": s.Delta,
		"min":   s.Low,
		"max":   s.High,
	})
}

// axisWorker owns an axis translator and applies inputs to it in order
func axisWorker(
	ctx context.Context,
	inputChan <-chan AxisInput,
	config AxisWorkerConfig,
	sender *MQTTSender,
	stateChan chan<- AxisState,
) {
	a, err := newAxis(config)
	if err != nil {
		// Configs are validated at startup, so this is a programming error
		panic(err)
	}
	log.Printf("%s axis worker started (%d bits, %d counts = %g %s)\n",
		config.Name, config.Bits, config.CountsPerRev, config.ValuePerRev, config.Unit)

	for {
		select {
		case in := <-inputChan:
			cmd, err := a.apply(in)
			if err != nil {
				log.Printf("%s: %s failed: %v\n", config.Name, in.Kind, err)
				continue
			}
			if in.Kind == InputConfigure {
				log.Printf("%s: reconfigured to %d bits, %d counts = %g %s\n",
					config.Name, in.Bits, in.CountsPerRev, in.ValuePerRev, config.Unit)
				// Retained discovery still describes the old counter
				discovery := config.discoveryConfig(in.Bits, in.CountsPerRev, in.ValuePerRev)
				if err := sender.CreateAxisEntities(discovery); err != nil {
					log.Printf("%s: Failed to update entities: %v\n", config.Name, err)
				}
			}

			if cmd != nil && config.CommandTopic != "" {
				if err := sender.PublishCommand(config.CommandTopic, *cmd); err != nil {
					log.Printf("%s: Failed to publish command: %v\n", config.Name, err)
				}
			}

			state := a.state()
			payload, err := statePayload(state)
			if err != nil {
				log.Printf("%s: Failed to marshal state payload: %v\n", config.Name, err)
				continue
			}
			sender.Send(MQTTMessage{
				Topic:   config.StateTopic,
				Payload: payload,
				QoS:     0,
				Retain:  false,
			})

			// Console is optional and must never hold up the axis
			select {
			case stateChan <- state:
			default:
			}

		case <-ctx.Done():
			log.Printf("%s axis worker stopped\n", config.Name)
			return
		}
	}
}
