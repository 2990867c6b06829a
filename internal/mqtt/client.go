// Package mqtt publishes line events to an MQTT broker.
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	operationTimeout = 10 * time.Second

	// DefaultPublishTimeout bounds a telemetry publish. Publishes run inside
	// the event bus, so a slow broker must not hold up the stages for long.
	DefaultPublishTimeout = 2 * time.Second
)

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// QoS of event publishes. Zero is fire and forget.
	QoS byte
	// PublishTimeout defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// Client wraps the Paho MQTT client.
type Client struct {
	client         paho.Client
	broker         string
	qos            byte
	publishTimeout time.Duration
	mu             sync.Mutex
}

// NewClient creates a client but does not connect.
func NewClient(o Options) *Client {
	opts := paho.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	publishTimeout := o.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	qos := o.QoS
	if qos > 2 {
		qos = 2
	}

	return &Client{
		client:         paho.NewClient(opts),
		broker:         o.BrokerURL,
		qos:            qos,
		publishTimeout: publishTimeout,
	}
}

// Broker returns the broker URL the client was built for.
func (c *Client) Broker() string { return c.broker }

// Connect attempts to connect to the broker without blocking indefinitely.
// On a timeout paho keeps retrying in the background until Disconnect.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(operationTimeout) {
		return &TimeoutError{Op: "connect"}
	}
	return token.Error()
}

// Publish sends payload to topic at the configured QoS.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(c.publishTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// TimeoutError reports a broker operation that did not complete in time.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	if e.Topic != "" {
		return "mqtt " + e.Op + " timeout: " + e.Topic
	}
	return "mqtt " + e.Op + " timeout"
}
