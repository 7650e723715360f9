package events

import (
	"context"

	otelObs "github.com/cloudevents/sdk-go/observability/opentelemetry/v2/client"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
)

// Source used for all events published by the streaming client.
const EventSource = "github.com/gbdevw/purple-gomarket/spot/streaming"

// Data carried by stream_gap events.
type GapData struct {
	// Number of events dropped since the previous event delivered to the consumer.
	Dropped int64 `json:"dropped"`
}

// Data carried by error events.
type ErrorData struct {
	// Kind of error. Cf. ErrorKindEnum for values.
	Kind ErrorKindEnum `json:"kind"`
	// Human readable error message.
	Message string `json:"message"`
	// Optional - asset pair the error relates to (checksum mismatches).
	Pair string `json:"pair,omitempty"`
}

// # Description
//
// Build a new event of the provided type carrying the provided data as JSON. The tracing
// context is injected into the event so consumers can continue the span from the source:
//
//	ctx := otelObs.ExtractDistributedTracingExtension(context.Background(), evt)
//
// # Inputs
//
//   - ctx: Context used to propagate the tracing context into the event.
//   - eventType: Type of the event. Cf. EventTypeEnum for values.
//   - data: Data carried by the event. Marshalled to JSON; consumers parse it back with
//     evt.DataAs(target).
//
// # Return
//
// The built event. Data marshalling errors are reported by the underlying SetData and result in
// an event without data; this cannot happen with the message types published by this module.
func NewEvent(ctx context.Context, eventType EventTypeEnum, data interface{}) event.Event {
	evt := event.New()
	evt.SetID(uuid.NewString())
	evt.SetSource(EventSource)
	evt.SetType(string(eventType))
	// Errors can only stem from the data payload not being marshallable to JSON
	_ = evt.SetData(event.ApplicationJSON, data)
	otelObs.InjectDistributedTracingExtension(ctx, evt)
	return evt
}
