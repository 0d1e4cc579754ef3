package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"SignalSentinel/internal/model"
)

// DefaultMaxPending caps the undelivered alerts a Buffered sink keeps.
const DefaultMaxPending = 500

// PartialDeliveryError reports that the first Delivered events of a batch
// reached the sink before Err stopped delivery.
type PartialDeliveryError struct {
	Delivered int
	Err       error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("delivered %d alerts before failure: %v", e.Delivered, e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// Pender reports how many alerts are waiting for redelivery.
type Pender interface {
	Pending() int
}

// Buffered keeps the alerts its sink failed to take and sends them ahead of
// the next batch. Each sink gets its own Buffered so a healthy sink never
// sees an alert twice.
type Buffered struct {
	Sink       Notifier
	MaxPending int

	mu      sync.Mutex
	pending []model.AlertEvent
}

// NewBuffered wraps sink with a redelivery queue of at most maxPending alerts.
func NewBuffered(sink Notifier, maxPending int) *Buffered {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Buffered{Sink: sink, MaxPending: maxPending}
}

// Dispatch sends the queued alerts followed by events. On failure the
// undelivered part is queued, dropping the oldest beyond MaxPending.
func (b *Buffered) Dispatch(ctx context.Context, events []model.AlertEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := append(append([]model.AlertEvent(nil), b.pending...), events...)
	if len(batch) == 0 {
		return nil
	}
	err := b.Sink.Dispatch(ctx, batch)
	if err == nil {
		b.pending = nil
		return nil
	}
	var partial *PartialDeliveryError
	if errors.As(err, &partial) && partial.Delivered > 0 && partial.Delivered <= len(batch) {
		batch = batch[partial.Delivered:]
	}
	if len(batch) > b.MaxPending {
		dropped := len(batch) - b.MaxPending
		log.Printf("[WARN] dropping %d undelivered alerts", dropped)
		batch = batch[dropped:]
	}
	b.pending = batch
	return err
}

// Pending returns the number of queued alerts.
func (b *Buffered) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Reliable gives every sink of n its own redelivery queue. A Multi is
// wrapped member by member; sinks that already queue are left alone.
func Reliable(n Notifier, maxPending int) Notifier {
	switch v := n.(type) {
	case Multi:
		out := make(Multi, len(v))
		for i, member := range v {
			out[i] = Reliable(member, maxPending)
		}
		return out
	case *Buffered:
		return v
	default:
		return NewBuffered(n, maxPending)
	}
}
