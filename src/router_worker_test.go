package main

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoutes(t *testing.T) {
	pan := testAxis()
	rail := AxisConfig{Name: "Rail", RawCountTopic: "encoderctl/rail/raw"}
	panChan := make(chan AxisInput, 1)
	railChan := make(chan AxisInput, 1)

	routes := buildRoutes([]AxisConfig{pan, rail}, map[string]chan<- AxisInput{
		"Pan Axis": panChan,
		"Rail":     railChan,
	})

	require.Len(t, routes, 4)
	assert.Equal(t, "Pan Axis", routes["encoderctl/pan/raw"].Axis)
	assert.Equal(t, InputRawCount, routes["encoderctl/pan/raw"].Kind)
	assert.Equal(t, InputTarget, routes["encoderctl/pan/target"].Kind)
	assert.Equal(t, InputReset, routes["encoderctl/pan/reset"].Kind)
	assert.Equal(t, "Rail", routes["encoderctl/rail/raw"].Axis)
}

func TestBuildRoutes_DuplicateTopicKeepsFirst(t *testing.T) {
	pan := testAxis()
	tilt := testAxis()
	tilt.Name = "Tilt Axis"

	routes := buildRoutes([]AxisConfig{pan, tilt}, map[string]chan<- AxisInput{})
	assert.Equal(t, "Pan Axis", routes["encoderctl/pan/raw"].Axis)
}

func TestToAxisInput(t *testing.T) {
	in, err := toAxisInput(InputRawCount, "-120")
	require.NoError(t, err)
	assert.Equal(t, AxisInput{Kind: InputRawCount, Raw: -120}, in)

	in, err = toAxisInput(InputTarget, "45.5")
	require.NoError(t, err)
	assert.Equal(t, AxisInput{Kind: InputTarget, Value: 45.5}, in)

	in, err = toAxisInput(InputReset, `{"value": 12}`)
	require.NoError(t, err)
	assert.Equal(t, AxisInput{Kind: InputResetValue, Value: 12}, in)

	_, err = toAxisInput(InputRawCount, "garbage")
	assert.Error(t, err)
}

func TestRouterWorker_RoutesByTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	panChan := make(chan AxisInput, 10)
	railChan := make(chan AxisInput, 10)
	routes := map[string]topicRoute{
		"encoderctl/pan/raw":  {Axis: "Pan Axis", Kind: InputRawCount, Ch: panChan},
		"encoderctl/rail/raw": {Axis: "Rail", Kind: InputRawCount, Ch: railChan},
	}
	msgChan := make(chan SensorMessage, 10)

	go routerWorker(ctx, msgChan, routes)

	msgChan <- SensorMessage{Topic: "encoderctl/unknown", Value: "1"}
	msgChan <- SensorMessage{Topic: "encoderctl/pan/raw", Value: "bad"}
	msgChan <- SensorMessage{Topic: "encoderctl/rail/raw", Value: "7"}
	msgChan <- SensorMessage{Topic: "encoderctl/pan/raw", Value: "5"}

	assert.Equal(t, AxisInput{Kind: InputRawCount, Raw: 7}, receive(t, railChan))
	assert.Equal(t, AxisInput{Kind: InputRawCount, Raw: 5}, receive(t, panChan))
}

func TestRouterWorker_PreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	panChan := make(chan AxisInput, 200)
	routes := map[string]topicRoute{
		"encoderctl/pan/raw": {Axis: "Pan Axis", Kind: InputRawCount, Ch: panChan},
	}
	msgChan := make(chan SensorMessage, 200)

	go routerWorker(ctx, msgChan, routes)

	for i := 0; i < 130; i++ {
		msgChan <- SensorMessage{Topic: "encoderctl/pan/raw", Value: strconv.Itoa(i)}
	}
	for i := 0; i < 130; i++ {
		assert.Equal(t, int32(i), receive(t, panChan).Raw)
	}
}

func TestRouterWorker_FullChannelDropsSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	panChan := make(chan AxisInput, 1)
	panChan <- AxisInput{Kind: InputRawCount, Raw: 1}
	route := topicRoute{Axis: "Pan Axis", Kind: InputRawCount, Ch: panChan}

	assert.True(t, deliver(ctx, route, AxisInput{Kind: InputRawCount, Raw: 2}))
	assert.Equal(t, AxisInput{Kind: InputRawCount, Raw: 1}, <-panChan)
	assert.Empty(t, panChan)
}

func TestRouterWorker_FullChannelKeepsResets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	panChan := make(chan AxisInput, 1)
	routes := map[string]topicRoute{
		"encoderctl/pan/raw":   {Axis: "Pan Axis", Kind: InputRawCount, Ch: panChan},
		"encoderctl/pan/reset": {Axis: "Pan Axis", Kind: InputReset, Ch: panChan},
	}
	msgChan := make(chan SensorMessage, 10)

	go routerWorker(ctx, msgChan, routes)

	msgChan <- SensorMessage{Topic: "encoderctl/pan/raw", Value: "1"}
	msgChan <- SensorMessage{Topic: "encoderctl/pan/reset", Value: `{"count": 10, "value": -5}`}
	msgChan <- SensorMessage{Topic: "encoderctl/pan/reset", Value: `{"value": 90}`}

	// Both resets arrive in order once the axis catches up
	assert.Equal(t, AxisInput{Kind: InputRawCount, Raw: 1}, receive(t, panChan))
	assert.Equal(t, AxisInput{Kind: InputReset, Count: 10, Value: -5}, receive(t, panChan))
	assert.Equal(t, AxisInput{Kind: InputResetValue, Value: 90}, receive(t, panChan))
}

func TestRouterWorker_BlockedResetStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	panChan := make(chan AxisInput, 1)
	panChan <- AxisInput{Kind: InputRawCount, Raw: 1}
	route := topicRoute{Axis: "Pan Axis", Kind: InputReset, Ch: panChan}

	done := make(chan bool, 1)
	go func() {
		done <- deliver(ctx, route, AxisInput{Kind: InputResetValue, Value: 90})
	}()

	cancel()
	assert.False(t, receive(t, done))
}
