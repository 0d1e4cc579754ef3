package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"SignalSentinel/internal/alert"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/scheduler"
	"SignalSentinel/internal/store"
	"SignalSentinel/internal/tracker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	cfgPath := flag.String("config", defaultCfg, "path to the YAML config")
	mode := flag.String("mode", "live", "live | download | divergence | signals")
	symbol := flag.String("symbol", "XBI", "symbol for signals mode")
	limit := flag.Int("limit", 0, "rows for signals mode (0 = full history)")
	flag.Parse()

	log.Printf("[INFO] SignalSentinel starting (mode=%s)...", *mode)
	if err := run(*cfgPath, *mode, strings.ToUpper(*symbol), *limit); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	log.Println("[INFO] SignalSentinel stopped")
}

// run owns every resource it opens so deferred cleanup happens before main
// exits, including on error.
func run(cfgPath, mode, symbol string, limit int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// Price store
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open price store: %w", err)
	}
	defer st.Close()

	// Fetcher
	var fetcher collector.Fetcher
	if cfg.DataSource.BaseURL != "" {
		fetcher = collector.NewVsTraderFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, st, cfg.DataSource.HistoryDays)

	// Notifiers
	var tn *notifier.TelegramNotifier
	notifiers := notifier.Multi{notifier.NewLogNotifier()}
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notifiers = append(notifiers, tn)
	}
	if cfg.Email.SMTPHost != "" {
		notifiers = append(notifiers, notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		}))
	}

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.HistoryPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.HistoryPath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.NewMetrics(reg)

	tr := tracker.New(st, alert.NewEvaluator(cfg.Policy()), notifiers, tracker.Options{
		Symbols:         cfg.Symbols.Live,
		Interval:        cfg.PollInterval(),
		FetchLimit:      cfg.Tracker.FetchLimit,
		RSIPeriod:       cfg.Indicators.RSIPeriod,
		ConcurrentFetch: cfg.Tracker.ConcurrentFetch,
		MaxConcurrency:  cfg.Tracker.MaxConcurrency,
		Strategy:        cfg.StrategyConfig(),
	})
	tr.Recorder = rec
	tr.Metrics = met

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var messenger scheduler.Messenger
	if tn != nil {
		messenger = tn
	}
	sched := scheduler.NewScheduler(ctx, col, tr, st, messenger, scheduler.Jobs{
		Tracked:    cfg.Symbols.Tracked,
		Benchmarks: cfg.Symbols.Benchmarks,
		Lookback:   cfg.DivergenceLookback(),
	})

	switch mode {
	case "download":
		sched.RunDownloadNow()
	case "divergence":
		sched.RunDivergenceNow()
	case "signals":
		if err := printSignals(ctx, tr, notifiers, symbol, limit); err != nil {
			return fmt.Errorf("signals: %w", err)
		}
	case "live":
		return runLive(ctx, cfg, sched, tr, tn, met, reg)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

func runLive(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler, tr *tracker.Tracker,
	tn *notifier.TelegramNotifier, met *metrics.Metrics, reg *prometheus.Registry) error {
	if cfg.Metrics.ListenAddr != "" {
		srv := metrics.NewServer(cfg.Metrics.ListenAddr, met, reg, 3*cfg.PollInterval())
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	if err := sched.RegisterAll(cfg.Schedule.DownloadCron, cfg.Schedule.DivergenceCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, downloading history now")
		sched.RunDownloadNow()
	}

	log.Println("[INFO] SignalSentinel is running. Press Ctrl+C to stop.")
	if err := tr.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[ERROR] live tracker: %v", err)
	}
	log.Println("[INFO] shutdown signal received, stopping...")
	return nil
}

func printSignals(ctx context.Context, tr *tracker.Tracker, n notifier.Notifier, symbol string, limit int) error {
	rows, events, err := tr.Signals(ctx, symbol, limit)
	if err != nil {
		return err
	}
	fmt.Print(notifier.FormatSignalTable(rows))
	if len(events) > 0 {
		if err := n.Dispatch(ctx, events); err != nil {
			log.Printf("[ERROR] dispatch composite alerts: %v", err)
		}
	}
	return nil
}
