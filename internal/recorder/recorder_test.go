package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

func TestSQLiteRecorderAlerts(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := model.NewAlertEvent("XBI", model.KindPriceMove, model.DirectionDown, at, 10, "XBI went DOWN by 10.00%")
	b := model.NewAlertEvent("SPY", model.KindRSIOverbought, model.DirectionUp, at, 75, "SPY is OVERBOUGHT")

	require.NoError(t, r.RecordAlerts([]model.AlertEvent{a, b}))
	require.NoError(t, r.RecordAlerts([]model.AlertEvent{a}), "duplicate id ignored")
	require.NoError(t, r.RecordAlerts(nil))

	n, err := r.AlertCount("")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = r.AlertCount("XBI")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteRecorderCycle(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordCycle(&CycleSummary{Symbols: 3, Fetched: 2, Skipped: 1, Duration: time.Second}))

	var n, skipped int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*), MAX(skipped) FROM tracker_cycles`).Scan(&n, &skipped))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, skipped)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordAlerts([]model.AlertEvent{{ID: "x"}}))
	assert.NoError(t, r.RecordCycle(&CycleSummary{}))
	assert.NoError(t, r.Close())
}
