package main

import (
	"context"
	"log"
)

// topicRoute maps an inbound topic to the axis that owns it
type topicRoute struct {
	Axis string
	Kind InputKind
	Ch   chan<- AxisInput
}

// buildRoutes creates the topic routing table from axis configs and their input channels
func buildRoutes(axes []AxisConfig, inputChans map[string]chan<- AxisInput) map[string]topicRoute {
	routes := make(map[string]topicRoute)
	add := func(topic string, axis string, kind InputKind) {
		if topic == "" {
			return
		}
		if existing, ok := routes[topic]; ok {
			log.Printf("Warning: topic %s already routed to %s, ignoring for %s\n", topic, existing.Axis, axis)
			return
		}
		routes[topic] = topicRoute{Axis: axis, Kind: kind, Ch: inputChans[axis]}
	}

	for _, a := range axes {
		add(a.RawCountTopic, a.Name, InputRawCount)
		add(a.TargetTopic, a.Name, InputTarget)
		add(a.ResetTopic, a.Name, InputReset)
	}
	return routes
}

// toAxisInput parses a message payload for the given route kind
func toAxisInput(kind InputKind, payload string) (AxisInput, error) {
	switch kind {
	case InputRawCount:
		raw, err := parseRawCount(payload)
		return AxisInput{Kind: InputRawCount, Raw: raw}, err
	case InputTarget:
		value, err := parseTarget(payload)
		return AxisInput{Kind: InputTarget, Value: value}, err
	default:
		return parseReset(payload)
	}
}

// routerWorker receives sensor messages and hands each one to the axis worker that owns the topic.
// Every axis has its own channel so a slow axis can't stall the others.
func routerWorker(ctx context.Context, msgChan <-chan SensorMessage, routes map[string]topicRoute) {
	for {
		select {
		case msg := <-msgChan:
			route, ok := routes[msg.Topic]
			if !ok {
				log.Printf("Warning: no axis for topic %s\n", msg.Topic)
				continue
			}

			in, err := toAxisInput(route.Kind, msg.Value)
			if err != nil {
				log.Printf("%s: dropping %s message: %v\n", route.Axis, route.Kind, err)
				continue
			}

			if !deliver(ctx, route, in) {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// deliver hands an input to its axis. Samples are dropped when the axis is behind
// but resets wait for room. Returns false once ctx is done.
func deliver(ctx context.Context, route topicRoute, in AxisInput) bool {
	select {
	case route.Ch <- in:
		return true
	case <-ctx.Done():
		return false
	default:
	}

	if in.Kind != InputReset && in.Kind != InputResetValue {
		log.Printf("Warning: %s input channel full, dropping %s\n", route.Axis, in.Kind)
		return true
	}

	log.Printf("Warning: %s input channel full, waiting to deliver %s\n", route.Axis, in.Kind)
	select {
	case route.Ch <- in:
		return true
	case <-ctx.Done():
		return false
	}
}
