package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalSentinel/internal/alert"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/strategy"
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Config holds all application configuration.
type Config struct {
	Symbols struct {
		Tracked    []string `yaml:"tracked"`
		Benchmarks []string `yaml:"benchmarks"`
		Live       []string `yaml:"live"`
	} `yaml:"symbols"`
	// The RSI zones are pointers so an explicit 0 or 100 survives defaulting.
	Thresholds struct {
		AlertPercent      float64  `yaml:"alert_percent"`
		RSIOversold       *float64 `yaml:"rsi_oversold"`
		RSIOverbought     *float64 `yaml:"rsi_overbought"`
		DivergencePercent float64  `yaml:"divergence_percent"`
	} `yaml:"thresholds"`
	Indicators struct {
		RSIPeriod        int              `yaml:"rsi_period"`
		BollingerPeriod  int              `yaml:"bollinger_period"`
		BollingerDev     float64          `yaml:"bollinger_dev"`
		MACDFast         int              `yaml:"macd_fast"`
		MACDSlow         int              `yaml:"macd_slow"`
		MACDSignal       int              `yaml:"macd_signal"`
		Weights          strategy.Weights `yaml:"weights"`
		CompositeTrigger float64          `yaml:"composite_trigger"`
	} `yaml:"indicators"`
	Tracker struct {
		PollIntervalSeconds    int  `yaml:"poll_interval_seconds"`
		FetchLimit             int  `yaml:"fetch_limit"`
		ConcurrentFetch        bool `yaml:"concurrent_fetch"`
		MaxConcurrency         int  `yaml:"max_concurrency"`
		DivergenceLookbackDays int  `yaml:"divergence_lookback_days"`
	} `yaml:"tracker"`
	Schedule struct {
		DownloadCron   string `yaml:"download_cron"`
		DivergenceCron string `yaml:"divergence_cron"`
	} `yaml:"schedule"`
	DataSource struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		HistoryPath string `yaml:"history_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Email struct {
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		To       string `yaml:"to"`
	} `yaml:"email"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file and the YAML config, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("SENTINEL_SYMBOLS"); v != "" {
		c.Symbols.Tracked = splitList(v)
	}
	if v := os.Getenv("SENTINEL_BENCHMARKS"); v != "" {
		c.Symbols.Benchmarks = splitList(v)
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "POLL_INTERVAL_SECONDS", Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		c.Tracker.PollIntervalSeconds = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := strategy.DefaultConfig()
	p := alert.DefaultPolicy()

	if len(c.Symbols.Benchmarks) == 0 {
		c.Symbols.Benchmarks = []string{"XBI", "SPY"}
	}
	if len(c.Symbols.Live) == 0 {
		c.Symbols.Live = append([]string(nil), c.Symbols.Benchmarks...)
	}

	if c.Thresholds.AlertPercent == 0 {
		c.Thresholds.AlertPercent = p.AlertThresholdPercent
	}
	if c.Thresholds.RSIOversold == nil {
		c.Thresholds.RSIOversold = &p.RSIOversold
	}
	if c.Thresholds.RSIOverbought == nil {
		c.Thresholds.RSIOverbought = &p.RSIOverbought
	}
	if c.Thresholds.DivergencePercent == 0 {
		c.Thresholds.DivergencePercent = p.DivergenceThresholdPercent
	}

	ind := &c.Indicators
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = d.RSIPeriod
	}
	if ind.BollingerPeriod == 0 {
		ind.BollingerPeriod = d.BollingerPeriod
	}
	if ind.BollingerDev == 0 {
		ind.BollingerDev = d.BollingerDev
	}
	if ind.MACDFast == 0 {
		ind.MACDFast = d.MACDFast
	}
	if ind.MACDSlow == 0 {
		ind.MACDSlow = d.MACDSlow
	}
	if ind.MACDSignal == 0 {
		ind.MACDSignal = d.MACDSignal
	}
	if ind.Weights == (strategy.Weights{}) {
		ind.Weights = d.Weights
	}
	if ind.CompositeTrigger == 0 {
		ind.CompositeTrigger = d.CompositeTrigger
	}

	if c.Tracker.PollIntervalSeconds == 0 {
		c.Tracker.PollIntervalSeconds = 60
	}
	if c.Tracker.FetchLimit == 0 {
		c.Tracker.FetchLimit = 50
	}
	if c.Tracker.MaxConcurrency == 0 {
		c.Tracker.MaxConcurrency = 4
	}
	if c.Tracker.DivergenceLookbackDays == 0 {
		c.Tracker.DivergenceLookbackDays = 3
	}

	if c.Schedule.DownloadCron == "" {
		c.Schedule.DownloadCron = "0 0 22 * * 1-5"
	}
	if c.Schedule.DivergenceCron == "" {
		c.Schedule.DivergenceCron = "0 30 22 * * 1-5"
	}
	if c.DataSource.HistoryDays == 0 {
		c.DataSource.HistoryDays = 30
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stock_data.db"
	}
	if c.Database.HistoryPath == "" {
		c.Database.HistoryPath = "data/signal_history.db"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

// Validate checks ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.Thresholds.AlertPercent <= 0 {
		return &ConfigError{Field: "thresholds.alert_percent", Reason: "must be positive"}
	}
	if c.Thresholds.DivergencePercent <= 0 {
		return &ConfigError{Field: "thresholds.divergence_percent", Reason: "must be positive"}
	}
	lower, upper := c.rsiZones()
	if lower >= upper {
		return &ConfigError{Field: "thresholds.rsi_oversold", Reason: "must be below rsi_overbought"}
	}
	if lower < 0 || upper > 100 {
		return &ConfigError{Field: "thresholds", Reason: "rsi zones must lie within 0..100"}
	}
	if err := c.StrategyConfig().Validate(); err != nil {
		return &ConfigError{Field: "indicators", Reason: err.Error()}
	}
	if c.Tracker.PollIntervalSeconds < 0 {
		return &ConfigError{Field: "tracker.poll_interval_seconds", Reason: "must not be negative"}
	}
	if c.Tracker.FetchLimit < 0 {
		return &ConfigError{Field: "tracker.fetch_limit", Reason: "must not be negative"}
	}
	if c.Tracker.MaxConcurrency < 1 {
		return &ConfigError{Field: "tracker.max_concurrency", Reason: "must be at least 1"}
	}
	for _, s := range append(append(append([]string{}, c.Symbols.Tracked...), c.Symbols.Benchmarks...), c.Symbols.Live...) {
		if strings.TrimSpace(s) == "" {
			return &ConfigError{Field: "symbols", Reason: "empty symbol"}
		}
		if !model.ValidSymbol(s) {
			return &ConfigError{Field: "symbols", Reason: fmt.Sprintf("malformed symbol %q", s)}
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return &ConfigError{Field: "telegram", Reason: "bot_token and chat_id must be set together"}
	}
	if c.Email.SMTPHost != "" && (c.Email.From == "" || c.Email.To == "") {
		return &ConfigError{Field: "email", Reason: "from and to are required when smtp_host is set"}
	}
	return nil
}

// rsiZones returns the oversold and overbought levels, falling back to the
// alert defaults for unset values.
func (c *Config) rsiZones() (lower, upper float64) {
	p := alert.DefaultPolicy()
	lower, upper = p.RSIOversold, p.RSIOverbought
	if c.Thresholds.RSIOversold != nil {
		lower = *c.Thresholds.RSIOversold
	}
	if c.Thresholds.RSIOverbought != nil {
		upper = *c.Thresholds.RSIOverbought
	}
	return lower, upper
}

// Policy returns the alert thresholds.
func (c *Config) Policy() alert.Policy {
	lower, upper := c.rsiZones()
	return alert.Policy{
		AlertThresholdPercent:      c.Thresholds.AlertPercent,
		RSIOversold:                lower,
		RSIOverbought:              upper,
		DivergenceThresholdPercent: c.Thresholds.DivergencePercent,
	}
}

// StrategyConfig returns the signal generator setup. The RSI signal zones
// share the alert thresholds.
func (c *Config) StrategyConfig() strategy.Config {
	lower, upper := c.rsiZones()
	return strategy.Config{
		RSIPeriod:        c.Indicators.RSIPeriod,
		RSILower:         lower,
		RSIUpper:         upper,
		BollingerPeriod:  c.Indicators.BollingerPeriod,
		BollingerDev:     c.Indicators.BollingerDev,
		MACDFast:         c.Indicators.MACDFast,
		MACDSlow:         c.Indicators.MACDSlow,
		MACDSignal:       c.Indicators.MACDSignal,
		Weights:          c.Indicators.Weights,
		CompositeTrigger: c.Indicators.CompositeTrigger,
	}
}

// PollInterval returns the tracker sleep between cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracker.PollIntervalSeconds) * time.Second
}

// DivergenceLookback returns the divergence window. A negative
// divergence_lookback_days yields zero, which scans the full history.
func (c *Config) DivergenceLookback() time.Duration {
	if c.Tracker.DivergenceLookbackDays < 0 {
		return 0
	}
	return time.Duration(c.Tracker.DivergenceLookbackDays) * 24 * time.Hour
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
