package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/store"
)

func TestYahooFetchDailyBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/%5EGSPC", r.URL.EscapedPath())
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1704240000,1704153600,1704326400],
			"indicators":{
				"quote":[{"open":[11,10,null],"high":[12,11,null],"low":[10,9,null],"close":[11.5,10.5,null],"volume":[200,100,null]}],
				"adjclose":[{"adjclose":[11.4,10.4,null]}]
			}}],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	bars, err := f.FetchDailyBars(context.Background(), "SPX", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2, "null bar skipped")
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 10.4, bars[0].AdjClose)
	assert.Equal(t, 200.0, bars[1].Volume)
}

func TestYahooErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	_, err := f.FetchDailyBars(context.Background(), "XBI", 5)
	assert.ErrorContains(t, err, "status 429")
}

func TestVsTraderFetchDailyBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "XBI", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[{"timestamp":1704240000,"close":2},{"timestamp":1704153600,"close":1,"adj_close":0.9}]`))
	}))
	defer srv.Close()

	f := NewVsTraderFetcher(srv.URL, "k", "")
	bars, err := f.FetchDailyBars(context.Background(), "XBI", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 0.9, bars[0].AdjClose)
	assert.Equal(t, 2.0, bars[1].AdjClose, "falls back to close")
}

func TestDownloadSkipsFailingSymbol(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	defer st.Close()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f := &MockFetcher{
		Price: 100,
		DailyData: map[string][]model.OHLCV{
			"XBI": {{Time: day, Close: 90}, {Time: day.AddDate(0, 0, 1), Close: 91}},
		},
		Fail: map[string]bool{"BAD": true},
	}
	c := NewCollector(f, st, 5)

	results, err := c.Download(context.Background(), []string{"XBI", "BAD", "SPY"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "download BAD from mock")
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Rows)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 5, results[2].Rows)

	s, err := st.Fetch(context.Background(), "XBI", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{90, 91}, s.Closes())

	_, err = st.Fetch(context.Background(), "BAD", 10)
	assert.ErrorIs(t, err, store.ErrSymbolNotFound)
}

func TestDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollector(&MockFetcher{Price: 1}, nil, 1)
	results, err := c.Download(ctx, []string{"XBI"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
