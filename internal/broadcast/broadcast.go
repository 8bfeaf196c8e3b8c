// Package broadcast delivers post-commit domain events and live
// notifications. Delivery is best-effort: nothing here can roll back an
// economic transaction, and failures are only logged.
package broadcast

import (
	"context"
	"log/slog"

	"github.com/warfront/realm-engine/internal/model"
)

// Publisher receives one domain event per resolved combat action.
type Publisher interface {
	PublishEvent(ctx context.Context, ev model.Event)
}

// Notifier pushes a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// Fanout forwards every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) PublishEvent(ctx context.Context, ev model.Event) {
	for _, p := range f {
		if p != nil {
			p.PublishEvent(ctx, ev)
		}
	}
}

// LogPublisher writes each event to the default logger at debug level.
type LogPublisher struct{}

func (LogPublisher) PublishEvent(_ context.Context, ev model.Event) {
	slog.Debug("event", "type", ev.Type, "outcome", ev.Outcome, "report", ev.ReportID, "attacker", ev.AttackerID, "defender", ev.DefenderID)
}
