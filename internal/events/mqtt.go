// README: MQTT assignment publisher, one topic per driver.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const DefaultMQTTTopicPrefix = "saferide/drivers"

// MQTTClient is the subset of mqtt.Client used for publishing.
type MQTTClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTPublisher struct {
	client      MQTTClient
	topicPrefix string
	qos         byte
}

// ConnectMQTT dials the broker with auto-reconnect enabled.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

func NewMQTTPublisher(client MQTTClient, topicPrefix string, qos byte) *MQTTPublisher {
	if topicPrefix == "" {
		topicPrefix = DefaultMQTTTopicPrefix
	}
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, qos: qos}
}

func (p *MQTTPublisher) Topic(e AssignmentEvent) string {
	return fmt.Sprintf("%s/%s/assignments", p.topicPrefix, e.DriverID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, e AssignmentEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode assignment event: %w", err)
	}
	token := p.client.Publish(p.Topic(e), p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
