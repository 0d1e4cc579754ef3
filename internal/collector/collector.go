package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"SignalSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData map[string][]model.OHLCV
	// Fail lists symbols whose fetch returns an error.
	Fail map[string]bool
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if m.Fail[symbol] {
		return nil, fmt.Errorf("mock: no data for %s", symbol)
	}
	if bars, ok := m.DailyData[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, days, time.Now()), nil
}

func generateMockBars(basePrice float64, count int, now time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:     day.AddDate(0, 0, -(count - i)),
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p,
			Volume:   1000000,
		}
	}
	return bars
}

// BarSink persists fetched bars.
type BarSink interface {
	SaveBars(ctx context.Context, symbol string, bars []model.OHLCV) (int, error)
}

// DownloadResult reports one symbol's download.
type DownloadResult struct {
	Symbol string
	Rows   int
	Err    error
}

// Collector downloads daily history into the price store.
type Collector struct {
	Fetcher Fetcher
	Sink    BarSink
	Days    int
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, sink BarSink, days int) *Collector {
	if days <= 0 {
		days = 30
	}
	return &Collector{Fetcher: fetcher, Sink: sink, Days: days}
}

// Download fetches and stores each symbol. A failing symbol is logged and
// skipped; the returned error joins every failure and is nil when all succeeded.
func (c *Collector) Download(ctx context.Context, symbols []string) ([]DownloadResult, error) {
	results := make([]DownloadResult, 0, len(symbols))
	var errs []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := DownloadResult{Symbol: sym}
		bars, err := c.Fetcher.FetchDailyBars(ctx, sym, c.Days)
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("no bars returned")
		}
		if err == nil {
			res.Rows, err = c.Sink.SaveBars(ctx, sym, bars)
		}
		if err != nil {
			res.Err = fmt.Errorf("download %s from %s: %w", sym, c.Fetcher.Name(), err)
			errs = append(errs, res.Err)
			log.Printf("[WARN] %v", res.Err)
		} else {
			log.Printf("[INFO] downloaded %s: %d rows", sym, res.Rows)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
