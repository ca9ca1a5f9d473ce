// Package audit carries the domain events the service emits for downstream
// compliance and operations consumers.
package audit

import "context"

// Publisher emits audit events.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
