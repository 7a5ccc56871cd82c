// Package tradelog emits the structured event stream consumed by
// reporting: one event per phase transition, entry and exit, carrying the
// instrument, phase and the indicator readings behind the decision.
package tradelog

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/sizing"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
)

// Logger writes structured trade events.
type Logger struct {
	log zerolog.Logger
}

// New builds a trade logger writing JSON lines to w.
func New(w io.Writer) *Logger {
	return &Logger{log: zerolog.New(w).With().Timestamp().Logger()}
}

// NewConsole builds a human-readable trade logger for interactive runs.
func NewConsole(w io.Writer) *Logger {
	return &Logger{log: zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()}
}

// Zerolog exposes the underlying logger so the state machine can share
// the same sink.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.log
}

// Transition records one phase change.
func (l *Logger) Transition(symbol, variant string, tr strategy.Transition) {
	l.log.Info().
		Str("event", "transition").
		Str("symbol", symbol).
		Str("variant", variant).
		Int("bar", tr.BarIndex).
		Time("bar_time", tr.Timestamp).
		Str("from", tr.From.String()).
		Str("to", tr.To.String()).
		Str("cause", tr.Cause).
		Msg("phase transition")
}

// Entry records a filled entry with the snapshot that sized it.
func (l *Logger) Entry(symbol, variant string, trade strategy.Trade, snap indicators.Snapshot) {
	pos := trade.Position
	l.log.Info().
		Str("event", "entry").
		Str("symbol", symbol).
		Str("variant", variant).
		Time("opened_at", pos.OpenedAt).
		Float64("entry", pos.EntryPrice).
		Float64("size", pos.Size).
		Float64("stop", pos.StopPrice).
		Float64("take", pos.TakePrice).
		Float64("atr", snap.ATR).
		Float64("atr_avg", snap.ATRAvg).
		Float64("er", snap.ER).
		Float64("kama", snap.Kama).
		Msg("position opened")
}

// Exit records a completed trade cycle with corrected P&L.
func (l *Logger) Exit(symbol, variant string, trade strategy.Trade) {
	pos := trade.Position
	raw := (pos.ExitPrice - pos.EntryPrice) * pos.Size
	l.log.Info().
		Str("event", "exit").
		Str("symbol", symbol).
		Str("variant", variant).
		Time("closed_at", pos.ClosedAt).
		Float64("entry", pos.EntryPrice).
		Float64("exit", pos.ExitPrice).
		Float64("size", pos.Size).
		Str("reason", pos.ExitReason.String()).
		Float64("pnl", sizing.ReportedPnL(raw, trade.Correction)).
		Msg("position closed")
}
