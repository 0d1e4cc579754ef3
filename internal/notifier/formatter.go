package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"SignalSentinel/internal/model"
)

func kindIcon(k model.AlertKind) string {
	switch k {
	case model.KindPriceMove:
		return "📈"
	case model.KindRSIOverbought:
		return "🔥"
	case model.KindRSIOversold:
		return "🧊"
	case model.KindCompositeBuy:
		return "🟢"
	case model.KindCompositeSell:
		return "🔴"
	case model.KindDivergence:
		return "↔️"
	}
	return "•"
}

// TelegramMessageLimit is the longest text sendMessage accepts.
const TelegramMessageLimit = 4096

// maxMessageRunes bounds one alert's message so a single entry always fits.
const maxMessageRunes = 1000

func alertHeader(n int) string {
	return fmt.Sprintf("🚨 <b>SignalSentinel</b> | %d alert(s)\n\n", n)
}

func alertEntry(e model.AlertEvent) string {
	msg := e.Message
	if r := []rune(msg); len(r) > maxMessageRunes {
		msg = string(r[:maxMessageRunes]) + "…"
	}
	return fmt.Sprintf("%s <b>%s</b> %s\n   %s\n   %s\n",
		kindIcon(e.Kind), html.EscapeString(e.Symbol), e.Kind, html.EscapeString(msg), e.Time.Format("2006-01-02"))
}

// FormatAlerts formats a batch of alerts into a Telegram HTML message.
func FormatAlerts(events []model.AlertEvent) string {
	var b strings.Builder
	b.WriteString(alertHeader(len(events)))
	for _, e := range events {
		b.WriteString(alertEntry(e))
	}
	return b.String()
}

// AlertChunk is one message of a split batch and the number of alerts it carries.
type AlertChunk struct {
	Text   string
	Events int
}

// ChunkAlerts splits a batch into messages of at most limit characters,
// breaking only between alerts. Order is preserved.
func ChunkAlerts(events []model.AlertEvent, limit int) []AlertChunk {
	headerRunes := utf8.RuneCountInString(alertHeader(len(events)))
	var chunks []AlertChunk
	var body strings.Builder
	bodyRunes, n := 0, 0
	flush := func() {
		if n == 0 {
			return
		}
		chunks = append(chunks, AlertChunk{Text: alertHeader(n) + body.String(), Events: n})
		body.Reset()
		bodyRunes, n = 0, 0
	}
	for _, e := range events {
		entry := alertEntry(e)
		entryRunes := utf8.RuneCountInString(entry)
		if n > 0 && headerRunes+bodyRunes+entryRunes > limit {
			flush()
		}
		body.WriteString(entry)
		bodyRunes += entryRunes
		n++
	}
	flush()
	return chunks
}

// FormatPlain formats alerts as plain text, one per line.
func FormatPlain(events []model.AlertEvent) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(fmt.Sprintf("ALERT [%s] %s %s: %s\n", e.Time.Format("2006-01-02"), e.Kind, e.Symbol, e.Message))
	}
	return b.String()
}

// FormatState formats the tracker's last observed prices.
func FormatState(state map[string]float64) string {
	if len(state) == 0 {
		return "📦 <b>Tracker</b>\n\nno prices observed yet"
	}
	symbols := make([]string, 0, len(state))
	for s := range state {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	var b strings.Builder
	b.WriteString("📦 <b>Tracker</b>\n\n")
	for _, s := range symbols {
		b.WriteString(fmt.Sprintf("%s: %.2f\n", html.EscapeString(s), state[s]))
	}
	return b.String()
}

// FormatSignalRow summarises the newest signal row for a symbol.
func FormatSignalRow(symbol string, r model.SignalRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(symbol), r.Time.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Close: %.2f\n", r.Close))
	b.WriteString(fmt.Sprintf("RSI: %s %s\n", num(r.RSI), marks(r.RSIBuy, r.RSISell)))
	b.WriteString(fmt.Sprintf("Bollinger: %s / %s %s\n", num(r.BollingerLower), num(r.BollingerUpper), marks(r.BollingerBuy, r.BollingerSell)))
	b.WriteString(fmt.Sprintf("MACD: %s / %s %s\n", num(r.MACD), num(r.MACDSignal), marks(r.MACDBuy, r.MACDSell)))
	b.WriteString(fmt.Sprintf("Composite: buy %.2f sell %.2f %s\n", r.CompositeBuyScore, r.CompositeSellScore, marks(r.CompositeBuy, r.CompositeSell)))
	return b.String()
}

// FormatSignalTable renders the full table as aligned plain text.
func FormatSignalTable(rows []model.SignalRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-10s %9s %7s %9s %9s %8s %8s %3s %3s\n",
		"date", "close", "rsi", "bb_low", "bb_up", "macd", "signal", "B", "S"))
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%-10s %9.2f %7s %9s %9s %8s %8s %3s %3s\n",
			r.Time.Format("2006-01-02"), r.Close, num(r.RSI), num(r.BollingerLower), num(r.BollingerUpper),
			num(r.MACD), num(r.MACDSignal), yes(r.CompositeBuy), yes(r.CompositeSell)))
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func marks(buy, sell bool) string {
	switch {
	case buy && sell:
		return "[BUY+SELL]"
	case buy:
		return "[BUY]"
	case sell:
		return "[SELL]"
	}
	return ""
}

func yes(b bool) string {
	if b {
		return "x"
	}
	return "."
}
