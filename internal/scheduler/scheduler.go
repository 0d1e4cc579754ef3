package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/tracker"
)

// Messenger sends a free-form text message.
type Messenger interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// SymbolLister lists every symbol held in the price store.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// Jobs holds the symbol sets the scheduled tasks work on.
type Jobs struct {
	Tracked    []string
	Benchmarks []string
	Lookback   time.Duration
	SignalRows int
}

// Scheduler manages all cron tasks and chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Tracker   *tracker.Tracker
	Store     SymbolLister
	Messenger Messenger
	Metrics   *metrics.Metrics
	Jobs      Jobs
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. Messenger may be nil.
func NewScheduler(ctx context.Context, col *collector.Collector, tr *tracker.Tracker, st SymbolLister, msg Messenger, jobs Jobs) *Scheduler {
	if jobs.SignalRows <= 0 {
		jobs.SignalRows = 60
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Tracker:   tr,
		Store:     st,
		Messenger: msg,
		Metrics:   tr.Metrics,
		Jobs:      jobs,
		Ctx:       ctx,
	}
}

// RegisterAll registers the download and divergence tasks.
func (s *Scheduler) RegisterAll(downloadCron, divergenceCron string) error {
	if _, err := s.Cron.AddFunc(downloadCron, s.downloadTask); err != nil {
		return fmt.Errorf("register download task: %w", err)
	}
	if _, err := s.Cron.AddFunc(divergenceCron, s.divergenceTask); err != nil {
		return fmt.Errorf("register divergence task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDownloadNow executes the download task immediately.
func (s *Scheduler) RunDownloadNow() {
	s.downloadTask()
}

// RunDivergenceNow executes the divergence task immediately.
func (s *Scheduler) RunDivergenceNow() {
	s.divergenceTask()
}

// downloadSymbols is every tracked and benchmark symbol, deduplicated in order.
func (s *Scheduler) downloadSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sym := range append(append([]string{}, s.Jobs.Tracked...), s.Jobs.Benchmarks...) {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

// tickers returns the configured tickers, or every stored symbol when none are configured.
func (s *Scheduler) tickers() ([]string, error) {
	if len(s.Jobs.Tracked) > 0 {
		return s.Jobs.Tracked, nil
	}
	return s.Store.Symbols(s.Ctx)
}

func (s *Scheduler) downloadTask() {
	log.Println("[INFO] running download task")
	results, err := s.Collector.Download(s.Ctx, s.downloadSymbols())
	for _, r := range results {
		if r.Err == nil {
			s.Metrics.DownloadRowsTotal.WithLabelValues(r.Symbol).Add(float64(r.Rows))
		}
	}
	if err != nil {
		log.Printf("[ERROR] download: %v", err)
		s.trySend(fmt.Sprintf("❌ download finished with errors:\n%v", err))
	}
}

func (s *Scheduler) divergenceTask() {
	log.Println("[INFO] running divergence task")
	if _, err := s.scanDivergence(); err != nil {
		log.Printf("[ERROR] divergence: %v", err)
	}
}

func (s *Scheduler) scanDivergence() (int, error) {
	tickers, err := s.tickers()
	if err != nil {
		return 0, fmt.Errorf("list tickers: %w", err)
	}
	events, err := s.Tracker.ScanDivergence(s.Ctx, tickers, s.Jobs.Benchmarks, s.Jobs.Lookback)
	return len(events), err
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "/status":
		return notifier.FormatState(s.Tracker.Snapshot())
	case "/signals":
		if len(fields) < 2 {
			return "usage: /signals SYMBOL"
		}
		sym := strings.ToUpper(fields[1])
		rows, _, err := s.Tracker.Signals(ctx, sym, s.Jobs.SignalRows)
		if err != nil {
			return fmt.Sprintf("❌ %s: %v", sym, err)
		}
		return notifier.FormatSignalRow(sym, rows[len(rows)-1])
	case "/divergence":
		n, err := s.scanDivergence()
		if err != nil {
			return fmt.Sprintf("❌ divergence: %v", err)
		}
		return fmt.Sprintf("divergence scan done: %d alert(s)", n)
	case "/download":
		go s.downloadTask()
		return "download started"
	default:
		return "commands:\n• /status\n• /signals SYMBOL\n• /divergence\n• /download"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Messenger == nil {
		return
	}
	if err := s.Messenger.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
