package main

import (
	"fmt"

	"github.com/ryansname/encoderctl/src/encoder"
)

// AxisConfig holds shared configuration for one encoder axis
type AxisConfig struct {
	Name         string
	Manufacturer string
	Bits         uint8   // Counter bit depth (1-32)
	CountsPerRev uint32  // Counter ticks per revolution
	ValuePerRev  float64 // Scaled units per revolution
	Unit         string  // "deg", "rad", "mm", "m" or free text
	Precision    int     // Suggested display precision

	RawCountTopic string // Raw counter readings (decimal int32)
	TargetTopic   string // Target values to encode
	ResetTopic    string // Reset commands (JSON)
	CommandTopic  string // Where encoded count deltas are published
}

// AxisWorkerConfig holds configuration for the axis worker
type AxisWorkerConfig struct {
	Name         string
	Manufacturer string
	Unit         string
	Precision    int
	Bits         uint8
	CountsPerRev uint32
	ValuePerRev  float64
	StateTopic   string
	CommandTopic string
}

// DeviceID returns the Home Assistant device id, e.g. "Pan Axis" -> "pan_axis"
func (c *AxisConfig) DeviceID() string {
	return axisID(c.Name)
}

// StateTopic returns the topic the axis state is published to
func (c *AxisConfig) StateTopic() string {
	return "homeassistant/sensor/" + c.DeviceID() + "/state"
}

// Topics returns the inbound topics for this axis
func (c *AxisConfig) Topics() []string {
	var topics []string
	for _, topic := range []string{c.RawCountTopic, c.TargetTopic, c.ResetTopic} {
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

// Validate checks the counter and scale settings by building a translator from them
func (c *AxisConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("axis name is required")
	}
	if _, err := encoder.New(c.Bits, c.CountsPerRev, c.ValuePerRev); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	if c.RawCountTopic == "" && c.TargetTopic == "" {
		return fmt.Errorf("%s: needs a raw count topic or a target topic", c.Name)
	}
	if c.TargetTopic != "" && c.CommandTopic == "" {
		return fmt.Errorf("%s: target topic set without a command topic", c.Name)
	}
	return nil
}

// WorkerConfig creates an AxisWorkerConfig from the shared AxisConfig
func (c *AxisConfig) WorkerConfig() AxisWorkerConfig {
	return AxisWorkerConfig{
		Name:         c.Name,
		Manufacturer: c.Manufacturer,
		Unit:         c.Unit,
		Precision:    c.Precision,
		Bits:         c.Bits,
		CountsPerRev: c.CountsPerRev,
		ValuePerRev:  c.ValuePerRev,
		StateTopic:   c.StateTopic(),
		CommandTopic: c.CommandTopic,
	}
}

// discoveryConfig rebuilds the axis description Home Assistant discovery is made from,
// with the given counter settings in place of the startup ones
func (c *AxisWorkerConfig) discoveryConfig(bits uint8, countsPerRev uint32, valuePerRev float64) AxisConfig {
	return AxisConfig{
		Name:         c.Name,
		Manufacturer: c.Manufacturer,
		Bits:         bits,
		CountsPerRev: countsPerRev,
		ValuePerRev:  valuePerRev,
		Unit:         c.Unit,
		Precision:    c.Precision,
		CommandTopic: c.CommandTopic,
	}
}

// buildTopicsList creates the MQTT subscription list from axis configs
func buildTopicsList(axes []AxisConfig) []string {
	var topics []string //nolint:prealloc // small slice, not worth preallocating
	for _, a := range axes {
		topics = append(topics, a.Topics()...)
	}
	return topics
}
