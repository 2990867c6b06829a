package mqtt

import (
	"testing"
	"time"
)

func TestNewClientPublishDefaults(t *testing.T) {
	c := NewClient(Options{BrokerURL: "tcp://localhost:1883", ClientID: "line-1"})
	if c.qos != 0 {
		t.Errorf("qos = %d, want 0", c.qos)
	}
	if c.publishTimeout != DefaultPublishTimeout {
		t.Errorf("publish timeout = %v, want %v", c.publishTimeout, DefaultPublishTimeout)
	}
	if c.Broker() != "tcp://localhost:1883" {
		t.Errorf("broker = %q", c.Broker())
	}
}

func TestNewClientPublishOverrides(t *testing.T) {
	c := NewClient(Options{BrokerURL: "tcp://localhost:1883", QoS: 7, PublishTimeout: 250 * time.Millisecond})
	if c.qos != 2 {
		t.Errorf("qos = %d, want clamp to 2", c.qos)
	}
	if c.publishTimeout != 250*time.Millisecond {
		t.Errorf("publish timeout = %v", c.publishTimeout)
	}
}
