// Package tracker runs the live polling loop and the on-demand divergence
// and signal scans over the price store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"SignalSentinel/internal/alert"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
)

// ErrDataUnavailable marks a symbol that could not be read this cycle.
var ErrDataUnavailable = errors.New("data unavailable")

// Source reads close series from the price store.
type Source interface {
	Fetch(ctx context.Context, symbol string, limit int) (model.PriceSeries, error)
	FetchSince(ctx context.Context, symbol string, since time.Time) (model.PriceSeries, error)
}

// State is the last observed price per symbol. A missing key means the
// symbol has not been seen yet.
type State map[string]float64

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Options configures a Tracker. Zero values fall back to defaults.
type Options struct {
	Symbols         []string
	Interval        time.Duration
	FetchLimit      int
	RSIPeriod       int
	ConcurrentFetch bool
	MaxConcurrency  int
	// MaxPending caps the undelivered alerts each sink carries to the next
	// cycle; the oldest are dropped.
	MaxPending int
	Strategy   strategy.Config
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = 50
	}
	if o.RSIPeriod <= 0 {
		o.RSIPeriod = 14
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	if o.MaxPending <= 0 {
		o.MaxPending = notifier.DefaultMaxPending
	}
	if o.Strategy == (strategy.Config{}) {
		o.Strategy = strategy.DefaultConfig()
	}
}

// Tracker polls the price store and dispatches alerts.
type Tracker struct {
	Source    Source
	Evaluator *alert.Evaluator
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	opts      Options

	mu        sync.RWMutex
	published State

	now func() time.Time
}

// New creates a Tracker. Every sink of n gets its own redelivery queue.
// Recorder and Metrics may be replaced after construction.
func New(src Source, ev *alert.Evaluator, n notifier.Notifier, opts Options) *Tracker {
	opts.defaults()
	return &Tracker{
		Source:    src,
		Evaluator: ev,
		Notifier:  notifier.Reliable(n, opts.MaxPending),
		Recorder:  recorder.NewNoopRecorder(),
		Metrics:   metrics.NewMetrics(nil),
		opts:      opts,
		published: State{},
		now:       time.Now,
	}
}

// Symbols returns the symbols polled by the live loop.
func (t *Tracker) Symbols() []string {
	return append([]string(nil), t.opts.Symbols...)
}

// Snapshot returns a copy of the state published by the last cycle.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.published.Clone()
}

// Pending returns how many undelivered alerts are queued across all sinks.
func (t *Tracker) Pending() int {
	if p, ok := t.Notifier.(notifier.Pender); ok {
		return p.Pending()
	}
	return 0
}

type fetchResult struct {
	series model.PriceSeries
	err    error
}

// fetchWindow reads the newest window for one symbol. Any failure or an
// empty window is reported as ErrDataUnavailable.
func (t *Tracker) fetchWindow(ctx context.Context, symbol string) (model.PriceSeries, error) {
	s, err := t.Source.Fetch(ctx, symbol, t.opts.FetchLimit)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w: %w", symbol, ErrDataUnavailable, err)
	}
	if s.Len() == 0 {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w: no rows", symbol, ErrDataUnavailable)
	}
	if err := s.Validate(); err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w: %w", symbol, ErrDataUnavailable, err)
	}
	return s, nil
}

func (t *Tracker) fetchAll(ctx context.Context, symbols []string) []fetchResult {
	results := make([]fetchResult, len(symbols))
	if !t.opts.ConcurrentFetch {
		for i, sym := range symbols {
			results[i].series, results[i].err = t.fetchWindow(ctx, sym)
		}
		return results
	}
	var g errgroup.Group
	g.SetLimit(t.opts.MaxConcurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			// each goroutine owns results[i]
			results[i].series, results[i].err = t.fetchWindow(ctx, sym)
			return nil
		})
	}
	g.Wait()
	return results
}

// RunCycle performs one polling pass over the tracked symbols. The input
// state is not modified; the returned state carries the latest price of
// every symbol that was read successfully.
func (t *Tracker) RunCycle(ctx context.Context, prev State) (State, []model.AlertEvent) {
	started := t.now()
	next := prev.Clone()
	summary := recorder.CycleSummary{StartedAt: started, Symbols: len(t.opts.Symbols)}

	var events []model.AlertEvent
	results := t.fetchAll(ctx, t.opts.Symbols)
	for i, sym := range t.opts.Symbols {
		res := results[i]
		if res.err != nil {
			log.Printf("[WARN] skipping %s this cycle: %v", sym, res.err)
			t.Metrics.FetchFailures.WithLabelValues(sym).Inc()
			summary.Skipped++
			continue
		}
		summary.Fetched++
		latest, _ := res.series.Latest()

		in := alert.Input{Symbol: sym, Series: res.series, RSIPeriod: t.opts.RSIPeriod}
		if last, seen := prev[sym]; seen {
			in.LastPrice = &last
		} else {
			log.Printf("[INFO] %s seeded at %.2f", sym, latest.Close)
		}
		events = append(events, t.Evaluator.Evaluate(in)...)

		next[sym] = latest.Close
		t.Metrics.LastPrice.WithLabelValues(sym).Set(latest.Close)
	}

	summary.Alerts = len(events)
	summary.Dispatched = t.dispatch(ctx, events)

	t.mu.Lock()
	t.published = next.Clone()
	t.mu.Unlock()

	summary.Duration = t.now().Sub(started)
	t.Metrics.ObserveCycle(started, summary.Duration)
	if err := t.Recorder.RecordCycle(&summary); err != nil {
		log.Printf("[ERROR] record cycle: %v", err)
	}
	return next, events
}

// dispatch sends this cycle's events. Sinks that failed earlier resend
// their own backlog first. It reports whether every sink took its batch.
func (t *Tracker) dispatch(ctx context.Context, events []model.AlertEvent) bool {
	for _, e := range events {
		t.Metrics.AlertsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	if err := t.Recorder.RecordAlerts(events); err != nil {
		log.Printf("[ERROR] record alerts: %v", err)
	}

	if len(events) == 0 && t.Pending() == 0 {
		return false
	}
	err := t.Notifier.Dispatch(ctx, events)
	t.Metrics.PendingAlerts.Set(float64(t.Pending()))
	if err != nil {
		log.Printf("[ERROR] dispatch %d alerts: %v", len(events), err)
		t.Metrics.DispatchFailures.Inc()
		return false
	}
	return true
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (t *Tracker) Run(ctx context.Context) error {
	log.Printf("[INFO] live tracker started: %v every %v", t.opts.Symbols, t.opts.Interval)
	state := State{}
	for {
		if err := ctx.Err(); err != nil {
			log.Println("[INFO] live tracker stopped")
			return err
		}
		state, _ = t.RunCycle(ctx, state)

		timer := time.NewTimer(t.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[INFO] live tracker stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
