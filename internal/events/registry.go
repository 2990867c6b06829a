package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// admission
	"check.failed":     {},
	"order.admitted":   {},
	"order.rejected":   {},
	"order.enqueued":   {},
	"order.slow_start": {},

	// stage
	"stage.started":   {},
	"stage.completed": {},
	"stage.drained":   {},
	"stage.crashed":   {},
	"order.dropped":   {},

	// transport
	"transport.failed": {},

	// pipeline
	"pipeline.started": {},
	"pipeline.drained": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
