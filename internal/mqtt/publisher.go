package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/EspressoLine/internal/events"
)

// Broker is the publishing side of a client. *Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// Publisher is an events.Sink that publishes each event as JSON on
// espressoline/<line>/events/<event name>.
type Publisher struct {
	broker Broker
	prefix string
}

func NewPublisher(b Broker, lineID string) *Publisher {
	return &Publisher{broker: b, prefix: "espressoline/" + lineID + "/events/"}
}

// Topic returns the topic an event name is published on.
func (p *Publisher) Topic(name string) string {
	return p.prefix + name
}

// Write implements events.Sink. It fails while the broker is disconnected.
func (p *Publisher) Write(e events.Event) error {
	if !p.broker.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("mqtt: marshal %s: %w", e.Name, err)
	}
	return p.broker.Publish(p.Topic(e.Name), payload)
}
