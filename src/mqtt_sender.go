package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// PublishCommand sends an encoded count delta to a motor/output driver
func (s *MQTTSender) PublishCommand(topic string, cmd AxisCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  false,
	})
	return nil
}

// CreateAxisEntity creates a Home Assistant sensor entity for an axis via MQTT discovery
func (s *MQTTSender) CreateAxisEntity(
	axis AxisConfig,
	entityName, entityMeasure, jsonKey string,
	displayPrecision int,
) error {
	type haDeviceConfig struct {
		Identifiers  []string `json:"identifiers"`
		Name         string   `json:"name"`
		Manufacturer string   `json:"manufacturer,omitempty"`
		Model        string   `json:"model,omitempty"`
	}

	type haEntityConfig struct {
		Name             string         `json:"name,omitempty"`
		StateTopic       string         `json:"state_topic"`
		UnitOfMeasure    string         `json:"unit_of_measurement,omitempty"`
		ValueTemplate    string         `json:"value_template"`
		UniqueId         string         `json:"unique_id"`
		ExpireAfter      uint           `json:"expire_after,omitempty"`
		StateClass       string         `json:"state_class,omitempty"`
		DisplayPrecision int            `json:"suggested_display_precision,omitempty"`
		Device           haDeviceConfig `json:"device"`
	}

	deviceId := axis.DeviceID()

	config := haEntityConfig{
		Name:             entityName,
		StateTopic:       axis.StateTopic(),
		UnitOfMeasure:    entityMeasure,
		ValueTemplate:    "{{ value_json." + jsonKey + "}}",
		UniqueId:         deviceId + "_" + jsonKey,
		ExpireAfter:      60 * 30, // 30 minutes
		StateClass:       "measurement",
		DisplayPrecision: displayPrecision,
		Device: haDeviceConfig{
			Identifiers:  []string{deviceId},
			Name:         axis.Name,
			Manufacturer: axis.Manufacturer,
			Model:        fmt.Sprintf("%d bit, %d counts/rev", axis.Bits, axis.CountsPerRev),
		},
	}

	configTopic := "homeassistant/sensor/" + deviceId + "_" + jsonKey + "/config"

	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   configTopic,
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})

	return nil
}

// CreateAxisEntities creates the position and count sensors for an axis
func (s *MQTTSender) CreateAxisEntities(axis AxisConfig) error {
	if err := s.CreateAxisEntity(axis, "Position", axis.Unit, "value", axis.Precision); err != nil {
		return fmt.Errorf("%s position entity: %w", axis.Name, err)
	}
	if err := s.CreateAxisEntity(axis, "Count", "", "count", 0); err != nil {
		return fmt.Errorf("%s count entity: %w", axis.Name, err)
	}
	return nil
}

// publish sends a message on the client and logs failures
func publish(client mqtt.Client, msg MQTTMessage) {
	token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("Failed to publish to %s: %v\n", msg.Topic, token.Error())
	}
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a client is connected
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Println("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	for {
		select {
		case newClient := <-clientChan:
			log.Println("MQTT sender worker received new client")
			client = newClient

			// Process any queued messages now that we have a client
			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(client, msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Printf("MQTT sender worker processed %d queued messages\n", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(client, msg)
			} else {
				messageQueue = append(messageQueue, msg)
				log.Printf("MQTT sender worker queued message (total queued: %d)\n", len(messageQueue))
			}

		case <-ctx.Done():
			log.Println("MQTT sender worker stopped")
			return
		}
	}
}
