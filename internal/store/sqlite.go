// Package store keeps daily bars in a SQLite database with one table per ticker.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"SignalSentinel/internal/model"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var (
	// ErrSymbolNotFound means the ticker has no table in the database.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInvalidSymbol means the ticker cannot be used as a table name.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// ValidSymbol reports whether symbol is usable as a ticker table name.
func ValidSymbol(symbol string) bool {
	return model.ValidSymbol(symbol)
}

func table(symbol string) (string, error) {
	if !ValidSymbol(symbol) {
		return "", fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	return `"` + symbol + `"`, nil
}

// SQLiteStore reads and writes per-ticker bar tables.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the price database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps the pragmas below in force for every query
	db.SetMaxOpenConns(1)
	// WAL lets the tracker read while a download job writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	log.Printf("[INFO] price store opened: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// EnsureTable creates the ticker table if it does not exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context, symbol string) error {
	tbl, err := table(symbol)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+tbl+` (
		Date      TEXT PRIMARY KEY,
		Open      REAL,
		High      REAL,
		Low       REAL,
		Close     REAL,
		Adj_Close REAL,
		Volume    INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", symbol, err)
	}
	return nil
}

// SaveBars upserts bars keyed by date and returns how many rows were written.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, bars []model.OHLCV) (int, error) {
	if err := s.EnsureTable(ctx, symbol); err != nil {
		return 0, err
	}
	tbl, _ := table(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO `+tbl+`
		(Date, Open, High, Low, Close, Adj_Close, Volume)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare insert %s: %w", symbol, err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Time.UTC().Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, b.AdjClose, int64(b.Volume)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert %s %s: %w", symbol, b.Time.Format(dateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", symbol, err)
	}
	return len(bars), nil
}

// Fetch returns the newest limit closes in chronological order.
// A missing table is ErrSymbolNotFound; a table with no rows is an empty series.
func (s *SQLiteStore) Fetch(ctx context.Context, symbol string, limit int) (model.PriceSeries, error) {
	tbl, err := s.existing(ctx, symbol)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if limit <= 0 {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: limit must be positive", symbol)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT Date, Close FROM `+tbl+` ORDER BY Date DESC LIMIT ?`, limit)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("query %s: %w", symbol, err)
	}
	points, err := scanPoints(rows)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("scan %s: %w", symbol, err)
	}
	// rows came back newest first
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return model.PriceSeries{Symbol: symbol, Points: points}, nil
}

// FetchSince returns every close dated on or after since, oldest first.
// A zero since returns the full history.
func (s *SQLiteStore) FetchSince(ctx context.Context, symbol string, since time.Time) (model.PriceSeries, error) {
	tbl, err := s.existing(ctx, symbol)
	if err != nil {
		return model.PriceSeries{}, err
	}
	var rows *sql.Rows
	if since.IsZero() {
		rows, err = s.db.QueryContext(ctx, `SELECT Date, Close FROM `+tbl+` ORDER BY Date ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT Date, Close FROM `+tbl+` WHERE Date >= ? ORDER BY Date ASC`,
			since.UTC().Format(dateLayout))
	}
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("query %s: %w", symbol, err)
	}
	points, err := scanPoints(rows)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("scan %s: %w", symbol, err)
	}
	return model.PriceSeries{Symbol: symbol, Points: points}, nil
}

// Symbols lists every ticker table in the database.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var symbols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		symbols = append(symbols, name)
	}
	sort.Strings(symbols)
	return symbols, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing price store")
	return s.db.Close()
}

func (s *SQLiteStore) existing(ctx context.Context, symbol string) (string, error) {
	tbl, err := table(symbol)
	if err != nil {
		return "", err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, symbol).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", symbol, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}
	return tbl, nil
}

func scanPoints(rows *sql.Rows) ([]model.PricePoint, error) {
	defer rows.Close()
	var points []model.PricePoint
	for rows.Next() {
		var date string
		var closePrice sql.NullFloat64
		if err := rows.Scan(&date, &closePrice); err != nil {
			return nil, err
		}
		if !closePrice.Valid {
			continue
		}
		t, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		points = append(points, model.PricePoint{Time: t, Close: closePrice.Float64})
	}
	return points, rows.Err()
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
