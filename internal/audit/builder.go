package audit

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing events.
//
//	event := audit.For(ctx, "messages").
//		WithAction(audit.ActionCommitted).
//		Change("false", "true").
//		Build()
type EventBuilder struct {
	event Event
}

// For starts an event for feature, taking the request id from ctx when the
// call came in over HTTP.
func For(ctx context.Context, feature string) *EventBuilder {
	return &EventBuilder{event: Event{
		RequestID: middleware.GetReqID(ctx),
		Feature:   feature,
	}}
}

func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

func (b *EventBuilder) Change(from, to string) *EventBuilder {
	b.event.From = from
	b.event.To = to
	return b
}

func (b *EventBuilder) Grant(id string) *EventBuilder {
	b.event.GrantID = id
	return b
}

func (b *EventBuilder) With(key string, value any) *EventBuilder {
	if b.event.Detail == nil {
		b.event.Detail = make(map[string]any)
	}
	b.event.Detail[key] = value
	return b
}

func (b *EventBuilder) Build() Event {
	return b.event
}
