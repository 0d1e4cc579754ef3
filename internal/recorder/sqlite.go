package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"SignalSentinel/internal/model"
)

// SQLiteRecorder persists alert history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert_events (
			id                  TEXT PRIMARY KEY,
			timestamp           INTEGER NOT NULL,
			symbol              TEXT NOT NULL,
			kind                TEXT NOT NULL,
			direction           TEXT,
			magnitude           REAL,
			message             TEXT,
			benchmark           TEXT,
			benchmark_direction TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_symbol_ts ON alert_events(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS tracker_cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			duration_ms INTEGER,
			symbols     INTEGER,
			fetched     INTEGER,
			skipped     INTEGER,
			alerts      INTEGER,
			dispatched  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON tracker_cycles(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordAlerts stores a batch in one transaction. Re-recording an event ID is a no-op.
func (r *SQLiteRecorder) RecordAlerts(events []model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, e := range events {
		_, err := tx.Exec(`INSERT OR IGNORE INTO alert_events
			(id, timestamp, symbol, kind, direction, magnitude, message, benchmark, benchmark_direction)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			e.ID, e.Time.Unix(), e.Symbol, string(e.Kind), string(e.Direction),
			e.Magnitude, e.Message, e.Benchmark, string(e.BenchmarkDirection),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert alert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordCycle(c *CycleSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := c.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	dispatched := 0
	if c.Dispatched {
		dispatched = 1
	}
	_, err := r.db.Exec(`INSERT INTO tracker_cycles
		(timestamp, duration_ms, symbols, fetched, skipped, alerts, dispatched)
		VALUES (?,?,?,?,?,?,?)`,
		started.Unix(), c.Duration.Milliseconds(), c.Symbols, c.Fetched, c.Skipped, c.Alerts, dispatched,
	)
	return err
}

// AlertCount returns the number of stored alerts for a symbol, or all when symbol is empty.
func (r *SQLiteRecorder) AlertCount(symbol string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	var err error
	if symbol == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM alert_events`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM alert_events WHERE symbol = ?`, symbol).Scan(&n)
	}
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
