package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

func manyEvents(n int) []model.AlertEvent {
	events := make([]model.AlertEvent, n)
	for i := range events {
		sym := fmt.Sprintf("T%03d", i)
		events[i] = model.NewAlertEvent(sym, model.KindPriceMove, model.DirectionUp, at, 6,
			fmt.Sprintf("%s went UP by 6.00%% (100.00 -> 106.00) after a long quiet stretch of trading", sym))
	}
	return events
}

type recordingSink struct {
	batches [][]model.AlertEvent
	errs    []error
}

func (r *recordingSink) Dispatch(_ context.Context, events []model.AlertEvent) error {
	r.batches = append(r.batches, events)
	if len(r.errs) == 0 {
		return nil
	}
	err := r.errs[0]
	r.errs = r.errs[1:]
	return err
}

func TestBufferedRedeliversOnlyUndelivered(t *testing.T) {
	sink := &recordingSink{errs: []error{errors.New("down")}}
	b := NewBuffered(sink, 0)
	events := sampleEvents()

	require.Error(t, b.Dispatch(context.Background(), events[:1]))
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, b.Dispatch(context.Background(), events[1:]))
	assert.Equal(t, 0, b.Pending())
	require.Len(t, sink.batches, 2)
	assert.Equal(t, []string{events[0].ID, events[1].ID}, []string{sink.batches[1][0].ID, sink.batches[1][1].ID})

	require.NoError(t, b.Dispatch(context.Background(), nil))
	assert.Len(t, sink.batches, 2, "nothing queued, nothing sent")
}

func TestBufferedDropsDeliveredPrefix(t *testing.T) {
	sink := &recordingSink{errs: []error{&PartialDeliveryError{Delivered: 1, Err: errors.New("timeout")}}}
	b := NewBuffered(sink, 0)
	events := sampleEvents()

	err := b.Dispatch(context.Background(), events)
	var partial *PartialDeliveryError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, b.Dispatch(context.Background(), nil))
	require.Len(t, sink.batches[1], 1)
	assert.Equal(t, events[1].ID, sink.batches[1][0].ID)
}

func TestBufferedCapsQueue(t *testing.T) {
	sink := &recordingSink{errs: []error{errors.New("down")}}
	b := NewBuffered(sink, 3)
	events := manyEvents(5)

	require.Error(t, b.Dispatch(context.Background(), events))
	require.NoError(t, b.Dispatch(context.Background(), nil))
	got := sink.batches[1]
	require.Len(t, got, 3)
	assert.Equal(t, events[2].ID, got[0].ID, "oldest dropped")
}

type flakySink struct{ calls atomic.Int32 }

func (f *flakySink) Dispatch(context.Context, []model.AlertEvent) error {
	if f.calls.Add(1)%2 == 0 {
		return errors.New("down")
	}
	return nil
}

func TestBufferedPendingIsSafeDuringDispatch(t *testing.T) {
	b := NewBuffered(&flakySink{}, 50)
	events := sampleEvents()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = b.Dispatch(context.Background(), events)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.LessOrEqual(t, b.Pending(), 50)
			}
		}()
	}
	wg.Wait()
}

func TestReliableWrapsEachSink(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{errs: []error{errors.New("down")}}
	n := Reliable(Multi{ok, bad}, 0)

	m, isMulti := n.(Multi)
	require.True(t, isMulti)
	require.Len(t, m, 2)
	assert.IsType(t, &Buffered{}, m[0])
	assert.Same(t, m[0], Reliable(m[0], 0), "already buffered")

	events := sampleEvents()
	require.Error(t, n.Dispatch(context.Background(), events))
	require.NoError(t, n.Dispatch(context.Background(), nil))

	assert.Len(t, ok.batches, 1, "healthy sink is not sent the batch again")
	assert.Len(t, bad.batches, 2)
	assert.Equal(t, 0, m.Pending())
}

func TestChunkAlertsRespectsLimit(t *testing.T) {
	events := manyEvents(100)
	chunks := ChunkAlerts(events, TelegramMessageLimit)
	require.Greater(t, len(chunks), 1)

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), TelegramMessageLimit)
		assert.Contains(t, c.Text, fmt.Sprintf("| %d alert(s)", c.Events))
		total += c.Events
	}
	assert.Equal(t, 100, total)
	assert.Contains(t, chunks[0].Text, "T000")
	assert.Contains(t, chunks[len(chunks)-1].Text, "T099")

	assert.Empty(t, ChunkAlerts(nil, TelegramMessageLimit))
	single := ChunkAlerts(sampleEvents(), TelegramMessageLimit)
	require.Len(t, single, 1)
	assert.Equal(t, FormatAlerts(sampleEvents()), single[0].Text)
}

func TestTelegramDispatchSplitsLongBatches(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		texts = append(texts, body["text"])
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("tok", "42", "")
	tn.APIBase = srv.URL
	require.NoError(t, tn.Dispatch(context.Background(), manyEvents(100)))

	require.Greater(t, len(texts), 1)
	for _, text := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), TelegramMessageLimit)
	}
	assert.Contains(t, texts[len(texts)-1], "T099")
}

func TestTelegramDispatchReportsPartialDelivery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			http.Error(w, "flood", http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("tok", "42", "")
	tn.APIBase = srv.URL
	tn.MaxRetries = 0
	events := manyEvents(100)
	chunks := ChunkAlerts(events, TelegramMessageLimit)

	b := NewBuffered(tn, 0)
	err := b.Dispatch(context.Background(), events)
	var partial *PartialDeliveryError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, chunks[0].Events, partial.Delivered)
	assert.Equal(t, 100-chunks[0].Events, b.Pending())
}
