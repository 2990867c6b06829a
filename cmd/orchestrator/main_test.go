package main

import (
	"errors"
	"testing"

	"github.com/AaronLay10/EspressoLine/internal/logging"
)

type fakeConn struct {
	err          error
	disconnected bool
}

func (f *fakeConn) Connect() error { return f.err }
func (f *fakeConn) Disconnect()    { f.disconnected = true }
func (f *fakeConn) Broker() string { return "tcp://broker:1883" }

func TestConnectTelemetryReleasesFailedClient(t *testing.T) {
	c := &fakeConn{err: errors.New("mqtt connect timeout")}
	if connectTelemetry(c, logging.Nop()) {
		t.Fatal("expected a failed connect to be reported")
	}
	if !c.disconnected {
		t.Error("expected the client to be disconnected after a failed connect")
	}
}

func TestConnectTelemetryKeepsConnectedClient(t *testing.T) {
	c := &fakeConn{}
	if !connectTelemetry(c, logging.Nop()) {
		t.Fatal("expected connect to succeed")
	}
	if c.disconnected {
		t.Error("connected client must stay open")
	}
}
