package notifier

import (
	"context"
	"errors"
	"log"

	"SignalSentinel/internal/model"
)

// Notifier delivers a batch of alerts. Implementations must not block indefinitely.
type Notifier interface {
	Dispatch(ctx context.Context, events []model.AlertEvent) error
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Dispatch(_ context.Context, events []model.AlertEvent) error {
	for _, e := range events {
		log.Printf("[ALERT] %s %s %s: %s", e.Time.Format("2006-01-02"), e.Kind, e.Symbol, e.Message)
	}
	return nil
}

// Multi fans a batch out to several notifiers. Every notifier is tried;
// the joined error reports the ones that failed.
type Multi []Notifier

func (m Multi) Dispatch(ctx context.Context, events []model.AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Dispatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending sums the queued alerts of every member that keeps a queue.
func (m Multi) Pending() int {
	total := 0
	for _, n := range m {
		if p, ok := n.(Pender); ok {
			total += p.Pending()
		}
	}
	return total
}
