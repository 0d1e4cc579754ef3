package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the tracker.
type Metrics struct {
	CyclesTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
	FetchFailures     *prometheus.CounterVec // labels: symbol
	AlertsTotal       *prometheus.CounterVec // labels: kind
	DispatchFailures  prometheus.Counter
	PendingAlerts     prometheus.Gauge
	LastPrice         *prometheus.GaugeVec // labels: symbol
	DownloadRowsTotal *prometheus.CounterVec // labels: symbol

	mu        sync.RWMutex
	lastCycle time.Time
	startedAt time.Time
}

// NewMetrics creates the metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_tracker_cycles_total",
			Help: "Total live tracker cycles completed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_tracker_cycle_duration_seconds",
			Help:    "Live tracker cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_fetch_failures_total",
			Help: "Symbols skipped because no data could be read",
		}, []string{"symbol"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_alerts_total",
			Help: "Alerts produced (by kind)",
		}, []string{"kind"}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_dispatch_failures_total",
			Help: "Alert batches the notifier failed to deliver",
		}),
		PendingAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_pending_alerts",
			Help: "Undelivered alerts queued for the next dispatch",
		}),
		LastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_last_price",
			Help: "Last observed close per symbol",
		}, []string{"symbol"}),
		DownloadRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_download_rows_total",
			Help: "Rows written by the history download",
		}, []string{"symbol"}),
		startedAt: time.Now(),
	}
	if reg != nil {
		reg.MustRegister(
			m.CyclesTotal,
			m.CycleDuration,
			m.FetchFailures,
			m.AlertsTotal,
			m.DispatchFailures,
			m.PendingAlerts,
			m.LastPrice,
			m.DownloadRowsTotal,
		)
	}
	return m
}

// ObserveCycle records a completed cycle.
func (m *Metrics) ObserveCycle(started time.Time, d time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.mu.Lock()
	m.lastCycle = started.Add(d)
	m.mu.Unlock()
}

// LastCycle returns when the last cycle finished; zero before the first.
func (m *Metrics) LastCycle() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCycle
}

// healthHandler serves /healthz. The tracker is stale when no
// cycle finished within staleAfter.
func (m *Metrics) healthHandler(staleAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := m.LastCycle()
		status := "healthy"
		code := http.StatusOK
		if staleAfter > 0 && !last.IsZero() && time.Since(last) > staleAfter {
			status = "stale"
			code = http.StatusServiceUnavailable
		}
		lastStr := ""
		if !last.IsZero() {
			lastStr = last.Format(time.RFC3339)
		}
		body := struct {
			Status    string `json:"status"`
			Uptime    string `json:"uptime"`
			LastCycle string `json:"last_cycle"`
		}{
			Status:    status,
			Uptime:    time.Since(m.startedAt).Round(time.Second).String(),
			LastCycle: lastStr,
		}
		w.Header().Set("Content-Type", "application/json")
		if code != http.StatusOK {
			w.WriteHeader(code)
		}
		json.NewEncoder(w).Encode(body)
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server backed by gatherer.
func NewServer(addr string, m *Metrics, gatherer prometheus.Gatherer, staleAfter time.Duration) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", m.healthHandler(staleAfter))
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
