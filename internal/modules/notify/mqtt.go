// README: MQTT notifier publishing offers to per-device topics.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const offerQoS = 1

type MQTT struct {
	client mqtt.Client
	prefix string
}

func NewMQTT(client mqtt.Client, topicPrefix string) *MQTT {
	return &MQTT{client: client, prefix: topicPrefix}
}

type mqttEnvelope struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Offer Offer  `json:"offer"`
}

// Topic is where a device with the given token listens for offers.
func (m *MQTT) Topic(token string) string {
	return fmt.Sprintf("%s/%s/offers", m.prefix, token)
}

// Send publishes with QoS 1 and waits for the broker ack or ctx.
func (m *MQTT) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return fmt.Errorf("%w for order %s", ErrEmptyToken, msg.Data.OrderID)
	}
	payload, err := json.Marshal(mqttEnvelope{Title: msg.Title, Body: msg.Body, Offer: msg.Data})
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}

	token := m.client.Publish(m.Topic(msg.Token), offerQoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish offer for order %s: %w", msg.Data.OrderID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish offer for order %s: %w", msg.Data.OrderID, ctx.Err())
	}
}
