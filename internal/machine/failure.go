package machine

import (
	"errors"
	"fmt"
)

// FailureType classifies a failed check.
type FailureType int

const (
	// Liveness means the probe latency exceeded its timeout.
	Liveness FailureType = iota
	// Capacity means the order needs more material than the subsystem holds.
	Capacity
	// Transport means a message could not be handed to the next stage.
	Transport
)

func (t FailureType) String() string {
	switch t {
	case Liveness:
		return "not_responding"
	case Capacity:
		return "insufficient_material"
	case Transport:
		return "transport"
	default:
		return "internal"
	}
}

var (
	ErrNotResponding        = errors.New("component not responding")
	ErrInsufficientMaterial = errors.New("insufficient material")
	ErrTransport            = errors.New("transport failure")
)

// Failure is the error returned by probes, capacity checks and link sends.
// Error() is the human-readable cause printed on the console.
type Failure struct {
	Type      FailureType
	Subsystem string
	Cause     string
	Err       error
}

func (f *Failure) Error() string { return f.Cause }

// Kind returns the classification string of the failure.
func (f *Failure) Kind() string { return f.Type.String() }

func (f *Failure) Unwrap() []error {
	var sentinel error
	switch f.Type {
	case Liveness:
		sentinel = ErrNotResponding
	case Capacity:
		sentinel = ErrInsufficientMaterial
	case Transport:
		sentinel = ErrTransport
	}
	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// NotResponding builds a liveness failure for the named subsystem.
func NotResponding(subsystem string, cause error) *Failure {
	return &Failure{
		Type:      Liveness,
		Subsystem: subsystem,
		Cause:     subsystem + " Not Responding",
		Err:       cause,
	}
}

// InsufficientMaterial builds a capacity failure for the named subsystem.
func InsufficientMaterial(subsystem, material string) *Failure {
	return &Failure{
		Type:      Capacity,
		Subsystem: subsystem,
		Cause:     fmt.Sprintf("Not enough %s in %s", material, subsystem),
	}
}

// TransportFailure builds a failure for a send that found no consumer.
func TransportFailure(link string, cause error) *Failure {
	msg := "send on " + link + " failed"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Failure{
		Type:      Transport,
		Subsystem: link,
		Cause:     msg,
		Err:       cause,
	}
}

// FailureKind returns the classification of err, or "" for nil.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind()
	}
	return "internal"
}
