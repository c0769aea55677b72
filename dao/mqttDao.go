package dao

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTTPublisher pushes dashboard updates as retained JSON messages, so a new
// subscriber immediately sees the last state.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Publish sends v to <prefix>/<topic>.
func (p *MQTTPublisher) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	full := p.prefix + "/" + topic
	token := p.client.Publish(full, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("%s: %w", full, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", full, err)
	}
	return nil
}
