package service

import "log"

// Event kinds published to the sink
const (
	EventRegionAllocated      = "region.allocated"
	EventRegionUpdated        = "region.updated"
	EventRegionRetired        = "region.retired"
	EventHostAllocated        = "host.allocated"
	EventHostRetired          = "host.retired"
	EventReservationCreated   = "reservation.created"
	EventReservationConverted = "reservation.converted"
	EventReservationCancelled = "reservation.cancelled"
)

// EventSink receives domain events, fire and forget. Delivery
// guarantees (retry, signing, webhook fan-out) are the sink's problem,
// not the core's.
type EventSink interface {
	Publish(kind string, payload map[string]interface{})
}

// LogEventSink writes events to the process log. Used when no notifier
// endpoint is configured.
type LogEventSink struct{}

func (LogEventSink) Publish(kind string, payload map[string]interface{}) {
	log.Printf("[events] %s %v", kind, payload)
}
