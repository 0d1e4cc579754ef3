package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/strategy"
)

// windowChange returns the first-to-last percentage change over the lookback
// window ending now. A zero lookback uses the full history.
func (t *Tracker) windowChange(ctx context.Context, symbol string, lookback time.Duration) (float64, model.PricePoint, error) {
	var since time.Time
	if lookback > 0 {
		since = t.now().Add(-lookback)
	}
	s, err := t.Source.FetchSince(ctx, symbol, since)
	if err != nil {
		return 0, model.PricePoint{}, fmt.Errorf("fetch %s: %w: %w", symbol, ErrDataUnavailable, err)
	}
	first, ok := s.First()
	if !ok {
		return 0, model.PricePoint{}, fmt.Errorf("fetch %s: %w: no rows", symbol, ErrDataUnavailable)
	}
	last, _ := s.Latest()
	change, err := calculator.PercentageChange(first.Close, last.Close)
	if err != nil {
		return 0, model.PricePoint{}, fmt.Errorf("change %s: %w", symbol, err)
	}
	return change, last, nil
}

// ScanDivergence compares every ticker against every benchmark over the
// lookback window and dispatches the divergence alerts. A symbol that cannot
// be read is skipped. The error is the notifier's.
func (t *Tracker) ScanDivergence(ctx context.Context, tickers, benchmarks []string, lookback time.Duration) ([]model.AlertEvent, error) {
	changes := make(map[string]float64)
	points := make(map[string]model.PricePoint)
	failed := make(map[string]bool)
	read := func(sym string) bool {
		if _, ok := changes[sym]; ok {
			return true
		}
		if failed[sym] {
			return false
		}
		change, last, err := t.windowChange(ctx, sym, lookback)
		if err != nil {
			log.Printf("[WARN] divergence: %v", err)
			t.Metrics.FetchFailures.WithLabelValues(sym).Inc()
			failed[sym] = true
			return false
		}
		changes[sym], points[sym] = change, last
		return true
	}

	var events []model.AlertEvent
	for _, bench := range benchmarks {
		if ctx.Err() != nil {
			break
		}
		if !read(bench) {
			continue
		}
		for _, sym := range tickers {
			if sym == bench || !read(sym) {
				continue
			}
			if evt, ok := t.Evaluator.Divergence(sym, bench, points[sym].Time, changes[sym], changes[bench]); ok {
				events = append(events, evt)
			}
		}
	}
	log.Printf("[INFO] divergence scan: %d tickers, %d benchmarks, %d alerts", len(tickers), len(benchmarks), len(events))

	for _, e := range events {
		t.Metrics.AlertsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	if err := t.Recorder.RecordAlerts(events); err != nil {
		log.Printf("[ERROR] record alerts: %v", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	if err := t.Notifier.Dispatch(ctx, events); err != nil {
		t.Metrics.DispatchFailures.Inc()
		return events, fmt.Errorf("dispatch divergence alerts: %w", err)
	}
	return events, nil
}

// Signals builds the full signal table for a symbol from its stored history
// and the composite alerts for the newest row. A non-positive limit reads
// the full history.
func (t *Tracker) Signals(ctx context.Context, symbol string, limit int) ([]model.SignalRow, []model.AlertEvent, error) {
	var (
		s   model.PriceSeries
		err error
	)
	if limit > 0 {
		s, err = t.Source.Fetch(ctx, symbol, limit)
	} else {
		s, err = t.Source.FetchSince(ctx, symbol, time.Time{})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w: %w", symbol, ErrDataUnavailable, err)
	}
	if s.Len() == 0 {
		return nil, nil, fmt.Errorf("fetch %s: %w: no rows", symbol, ErrDataUnavailable)
	}
	g, err := strategy.NewGenerator(s, t.opts.Strategy)
	if err != nil {
		return nil, nil, fmt.Errorf("signals %s: %w", symbol, err)
	}
	rows := g.GetFinalSignals()
	return rows, t.Evaluator.Composite(symbol, rows[len(rows)-1]), nil
}
