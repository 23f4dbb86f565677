// Package notify carries farm notifications (plants ready, pots needing
// peat, errors) to whatever channel the operator configured. Delivery
// beyond the log is left to external channel implementations.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind is the notification category.
type Kind string

const (
	KindPlantsReady  Kind = "PlantsReady"
	KindPotsNeedPeat Kind = "PotsNeedPeat"
	KindError        Kind = "Error"
)

// Subject returns the operator-facing subject line for kind.
func (k Kind) Subject() string {
	switch k {
	case KindPlantsReady:
		return "There are plants done."
	case KindPotsNeedPeat:
		return "Some pots need new peat."
	}
	return "An error occurred."
}

// Event is one notification.
type Event struct {
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent stamps an event of kind with its subject line.
func NewEvent(kind Kind, payload map[string]any) Event {
	return Event{
		Kind:      kind,
		Subject:   kind.Subject(),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) error {
	entry := log.Info()
	if event.Kind == KindError {
		entry = log.Warn()
	}
	entry.Str("kind", string(event.Kind)).
		Interface("payload", event.Payload).
		Msg(event.Subject)
	return nil
}

// Fanout delivers each event to every notifier, collecting failures.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, event Event) error {
	var errs []error
	for i, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
