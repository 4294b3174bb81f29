package main

import (
	"testing"

	"github.com/ryansname/encoderctl/src/encoder"
	"github.com/stretchr/testify/assert"
)

func testAxis() AxisConfig {
	return AxisConfig{
		Name:          "Pan Axis",
		Manufacturer:  "CUI Devices",
		Bits:          8,
		CountsPerRev:  128,
		ValuePerRev:   360.0,
		Unit:          "deg",
		Precision:     2,
		RawCountTopic: "encoderctl/pan/raw",
		TargetTopic:   "encoderctl/pan/target",
		ResetTopic:    "encoderctl/pan/reset",
		CommandTopic:  "encoderctl/pan/command",
	}
}

func TestAxisConfig_DeviceIDAndStateTopic(t *testing.T) {
	a := testAxis()
	assert.Equal(t, "pan_axis", a.DeviceID())
	assert.Equal(t, "homeassistant/sensor/pan_axis/state", a.StateTopic())
}

func TestAxisConfig_TopicsSkipsEmpty(t *testing.T) {
	a := testAxis()
	a.TargetTopic = ""
	assert.Equal(t, []string{"encoderctl/pan/raw", "encoderctl/pan/reset"}, a.Topics())
}

func TestAxisConfig_Validate(t *testing.T) {
	a := testAxis()
	assert.NoError(t, a.Validate())

	a = testAxis()
	a.Bits = 0
	assert.ErrorIs(t, a.Validate(), encoder.ErrResolutionIsZero)

	a = testAxis()
	a.Bits = 33
	assert.ErrorIs(t, a.Validate(), encoder.ErrResolutionTooHigh)

	a = testAxis()
	a.CountsPerRev = 0
	assert.ErrorIs(t, a.Validate(), encoder.ErrInvalidScale)

	a = testAxis()
	a.ValuePerRev = 0
	assert.ErrorIs(t, a.Validate(), encoder.ErrInvalidScale)

	a = testAxis()
	a.CommandTopic = ""
	assert.Error(t, a.Validate(), "target without command topic")

	a = testAxis()
	a.RawCountTopic = ""
	a.TargetTopic = ""
	assert.Error(t, a.Validate(), "no inputs")

	a = testAxis()
	a.Name = ""
	assert.Error(t, a.Validate())
}

func TestAxisConfig_WorkerConfig(t *testing.T) {
	a := testAxis()
	assert.Equal(t, AxisWorkerConfig{
		Name:         "Pan Axis",
		Manufacturer: "CUI Devices",
		Unit:         "deg",
		Precision:    2,
		Bits:         8,
		CountsPerRev: 128,
		ValuePerRev:  360.0,
		StateTopic:   "homeassistant/sensor/pan_axis/state",
		CommandTopic: "encoderctl/pan/command",
	}, a.WorkerConfig())
}

func TestAxisWorkerConfig_DiscoveryConfig(t *testing.T) {
	a := testAxis()
	config := a.WorkerConfig()
	discovery := config.discoveryConfig(16, 4096, 90)

	assert.Equal(t, a.DeviceID(), discovery.DeviceID())
	assert.Equal(t, a.StateTopic(), discovery.StateTopic())
	assert.Equal(t, "CUI Devices", discovery.Manufacturer)
	assert.Equal(t, uint8(16), discovery.Bits)
	assert.Equal(t, uint32(4096), discovery.CountsPerRev)
	assert.Equal(t, 90.0, discovery.ValuePerRev)
	assert.Equal(t, 2, discovery.Precision)
}

func TestBuildTopicsList(t *testing.T) {
	pan := testAxis()
	rail := AxisConfig{Name: "Rail", RawCountTopic: "encoderctl/rail/raw"}

	assert.Equal(t, []string{
		"encoderctl/pan/raw",
		"encoderctl/pan/target",
		"encoderctl/pan/reset",
		"encoderctl/rail/raw",
	}, buildTopicsList([]AxisConfig{pan, rail}))
}
