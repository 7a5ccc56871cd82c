// Package strategy implements the phase state machine that turns detector
// signals into orders. One Machine instance owns one instrument and one
// parameter set; variants differ only in their gate-predicate table.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/exits"
	"github.com/ducminhle1904/forex-phase-bot/internal/gateway"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/sizing"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Phase is the lifecycle stage of one trade cycle.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseConfirming
	PhaseWindowOpen
	PhaseEntered
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "SCANNING"
	case PhaseConfirming:
		return "CONFIRMING"
	case PhaseWindowOpen:
		return "WINDOW_OPEN"
	case PhaseEntered:
		return "ENTERED"
	case PhaseClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// PhaseContext is the working state of a setup between detection and
// entry. It is created when the machine leaves Scanning and cleared on
// reset or successful entry.
type PhaseContext struct {
	DetectedBar   int
	ReferenceHigh float64
	ReferenceLow  float64
	TriggerLevel  float64
	LowerBound    float64
	WindowExpiry  int
	ConfirmCount  int

	// Snapshot holds the indicator values at detection time. Entry
	// sizing and stop placement read this snapshot, not recomputed
	// values, so the entry stays consistent with the detected setup.
	Snapshot indicators.Snapshot

	Metadata map[string]float64
}

// Transition records one phase change and why it happened.
type Transition struct {
	BarIndex  int
	Timestamp time.Time
	From, To  Phase
	Cause     string
}

// Trade is a completed cycle: the closed position plus the P&L
// correction factor recorded at sizing time.
type Trade struct {
	Position   types.Position
	Correction float64
}

// Config wires one machine instance.
type Config struct {
	Variant      Variant
	Instrument   types.Instrument
	RiskFraction float64

	// Equity returns the current account value used for sizing.
	Equity func() float64

	Exec   gateway.ExecutionGateway
	Logger zerolog.Logger
}

// Machine is the per-instrument phase state machine. It is not safe for
// concurrent use; each instance is driven by exactly one bar stream.
type Machine struct {
	variant      Variant
	instrument   types.Instrument
	riskFraction float64
	equity       func() float64
	exec         gateway.ExecutionGateway
	exits        *exits.Manager
	log          zerolog.Logger

	phase      Phase
	setup      *PhaseContext
	correction float64

	journal []Transition
	trades  []Trade
}

// NewMachine validates the wiring and builds a machine in Scanning.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Variant.Detector == nil {
		return nil, errors.New("variant needs a detector")
	}
	if cfg.Variant.WindowBars <= 0 {
		return nil, errors.New("variant needs a positive breakout window")
	}
	if cfg.Exec == nil {
		return nil, errors.New("machine needs an execution gateway")
	}
	if cfg.Equity == nil {
		return nil, errors.New("machine needs an equity source")
	}
	if cfg.RiskFraction <= 0 {
		return nil, fmt.Errorf("risk fraction must be positive, got %.4f", cfg.RiskFraction)
	}

	return &Machine{
		variant:      cfg.Variant,
		instrument:   cfg.Instrument,
		riskFraction: cfg.RiskFraction,
		equity:       cfg.Equity,
		exec:         cfg.Exec,
		exits:        exits.NewManager(cfg.Exec),
		log:          cfg.Logger.With().Str("variant", cfg.Variant.Name).Str("symbol", cfg.Instrument.Symbol).Logger(),
		phase:        PhaseScanning,
		correction:   1,
	}, nil
}

// Phase returns the current lifecycle stage.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Position returns the open position, or nil when flat.
func (m *Machine) Position() *types.Position {
	return m.exits.Position()
}

// Journal returns every phase transition so far, in order.
func (m *Machine) Journal() []Transition {
	return m.journal
}

// Correction returns the reporting correction factor of the open
// position, or 1 when flat.
func (m *Machine) Correction() float64 {
	return m.correction
}

// Trades returns the completed trade cycles so far.
func (m *Machine) Trades() []Trade {
	return m.trades
}

// OnBar advances the machine by exactly one closed bar. window holds the
// most recent bars oldest-first with the just-closed bar last; snap is
// the indicator snapshot derived from that bar. Errors are fatal for the
// instance (unprotected position, broken gateway); recoverable problems
// reset to Scanning instead.
func (m *Machine) OnBar(ctx context.Context, barIndex int, window []types.Bar, snap indicators.Snapshot) error {
	if len(window) == 0 {
		return errors.New("empty bar window")
	}
	bar := window[len(window)-1]

	if m.phase == PhaseEntered {
		closed, err := m.exits.OnBar(ctx, window, snap)
		if err != nil {
			return fmt.Errorf("early exit for %s: %w", m.instrument.Symbol, err)
		}
		if closed != nil {
			m.recordClose(*closed, barIndex)
		}
		return nil
	}

	// Warm-up: the machine never evaluates a not-ready snapshot.
	if !snap.Ready {
		return nil
	}

	// Invalidation wins over phase progress on the same bar.
	if m.phase == PhaseConfirming || m.phase == PhaseWindowOpen {
		if m.variant.Cancel != nil && m.variant.Cancel(snap) {
			m.reset(barIndex, bar.Timestamp, "regime cancel")
		} else if m.variant.Invalidate != nil && m.variant.Invalidate(window, snap) {
			m.reset(barIndex, bar.Timestamp, "setup invalidated")
		}
	}

	switch m.phase {
	case PhaseScanning:
		m.scan(barIndex, window, snap)
	case PhaseConfirming:
		m.confirm(barIndex, window, snap)
	case PhaseWindowOpen:
		return m.monitorWindow(ctx, barIndex, window, snap)
	}
	return nil
}

// OnExitFill consumes a gateway fill. A fill of the managed stop or
// take-profit order closes the trade cycle.
func (m *Machine) OnExitFill(fill types.Fill) (*types.Position, bool) {
	closed, ok := m.exits.OnFill(fill)
	if !ok {
		return nil, false
	}
	// Without a bar in hand, attribute the close to the fill time; the
	// bar index is the last one the journal saw.
	barIndex := 0
	if n := len(m.journal); n > 0 {
		barIndex = m.journal[n-1].BarIndex
	}
	m.recordCloseAt(*closed, barIndex, fill.Timestamp)
	return closed, true
}

func (m *Machine) scan(barIndex int, window []types.Bar, snap indicators.Snapshot) {
	if m.exits.Active() {
		return
	}
	sig := m.variant.Detector.Detect(window, snap)
	if !sig.Present {
		return
	}

	bar := window[len(window)-1]
	m.setup = &PhaseContext{
		DetectedBar:   barIndex,
		ReferenceHigh: sig.ReferenceHigh,
		ReferenceLow:  sig.ReferenceLow,
		Snapshot:      snap,
		Metadata:      sig.Metadata,
	}
	if m.variant.ConfirmGate != nil {
		// The detection bar is the first bar of the sequence.
		m.setup.ConfirmCount = 1
	}
	m.transition(barIndex, bar.Timestamp, PhaseConfirming, "setup detected")

	if m.variant.ConfirmBars <= 0 && m.variant.ConfirmGate == nil {
		m.openWindow(barIndex, bar.Timestamp)
	}
}

func (m *Machine) confirm(barIndex int, window []types.Bar, snap indicators.Snapshot) {
	bar := window[len(window)-1]

	if m.variant.ConfirmGate != nil {
		switch m.variant.ConfirmGate(m.setup, window, snap) {
		case ConfirmHold:
			return
		case ConfirmFail:
			m.reset(barIndex, bar.Timestamp, "confirmation broken")
			return
		}
		m.finishConfirm(barIndex, bar)
		return
	}

	if m.variant.ConfirmStep != nil && !m.variant.ConfirmStep(bar) {
		m.reset(barIndex, bar.Timestamp, "confirmation broken")
		return
	}

	m.setup.ConfirmCount++
	if m.setup.ConfirmCount < m.variant.ConfirmBars {
		return
	}
	m.finishConfirm(barIndex, bar)
}

func (m *Machine) finishConfirm(barIndex int, bar types.Bar) {
	if m.variant.RetargetOnConfirm {
		m.setup.ReferenceHigh = bar.High
		m.setup.ReferenceLow = bar.Low
	}
	m.openWindow(barIndex, bar.Timestamp)
}

func (m *Machine) openWindow(barIndex int, ts time.Time) {
	offset := 0.0
	if m.variant.BreakoutOffset != nil {
		offset = m.variant.BreakoutOffset(m.setup)
	}
	m.setup.TriggerLevel = m.setup.ReferenceHigh + offset
	if m.variant.UseLowerBound {
		m.setup.LowerBound = m.setup.ReferenceLow - offset
	}
	m.setup.WindowExpiry = barIndex + m.variant.WindowBars
	m.transition(barIndex, ts, PhaseWindowOpen, fmt.Sprintf("trigger %.5f, expires bar %d", m.setup.TriggerLevel, m.setup.WindowExpiry))
}

func (m *Machine) monitorWindow(ctx context.Context, barIndex int, window []types.Bar, snap indicators.Snapshot) error {
	bar := window[len(window)-1]

	// Timeout is a strict "exceeds": a breach on the expiry bar itself
	// still enters.
	if barIndex > m.setup.WindowExpiry {
		m.reset(barIndex, bar.Timestamp, "window timeout")
		return nil
	}

	if m.variant.UseLowerBound && bar.Low <= m.setup.LowerBound {
		m.reset(barIndex, bar.Timestamp, "channel bottom breached")
		return nil
	}

	if bar.High > m.setup.TriggerLevel {
		return m.attemptEntry(ctx, barIndex, window, snap)
	}
	return nil
}

func (m *Machine) attemptEntry(ctx context.Context, barIndex int, window []types.Bar, snap indicators.Snapshot) error {
	bar := window[len(window)-1]

	if m.variant.Hours != nil && !m.variant.Hours.Contains(bar.Timestamp) {
		m.reset(barIndex, bar.Timestamp, "outside trading hours")
		return nil
	}
	if !m.variant.dayAllowed(bar.Timestamp) {
		m.reset(barIndex, bar.Timestamp, "weekday not allowed")
		return nil
	}
	if m.variant.RevalidateAtEntry != nil && !m.variant.RevalidateAtEntry(window, snap) {
		m.reset(barIndex, bar.Timestamp, "entry filters failed")
		return nil
	}

	atr := m.variant.atr(m.setup.Snapshot, snap)
	if atr <= 0 {
		m.reset(barIndex, bar.Timestamp, "no volatility reading")
		return nil
	}
	if (m.variant.ATRMin > 0 && atr < m.variant.ATRMin) || (m.variant.ATRMax > 0 && atr > m.variant.ATRMax) {
		m.reset(barIndex, bar.Timestamp, fmt.Sprintf("atr %.5f outside filter", atr))
		return nil
	}

	entry := bar.Close
	var stop, take float64
	if m.variant.AnchorAtBarRange {
		stop = bar.Low - atr*m.variant.StopMult
		take = bar.High + atr*m.variant.TakeMult
	} else {
		stop = entry - atr*m.variant.StopMult
		take = entry + atr*m.variant.TakeMult
	}

	if m.variant.SLPipsMax > 0 {
		pip := m.instrument.PipSize
		if pip <= 0 {
			pip = types.DefaultPipSize(m.instrument.Class)
		}
		slPips := (entry - stop) / pip
		if slPips < m.variant.SLPipsMin || slPips > m.variant.SLPipsMax {
			m.reset(barIndex, bar.Timestamp, fmt.Sprintf("stop distance %.1f pips outside filter", slPips))
			return nil
		}
	}

	result, err := sizing.Calculate(sizing.Request{
		Equity:       m.equity(),
		RiskFraction: m.riskFraction,
		EntryPrice:   entry,
		StopPrice:    stop,
		Instrument:   m.instrument,
	})
	if err != nil {
		m.log.Warn().Err(err).Int("bar", barIndex).Msg("sizing rejected entry")
		m.reset(barIndex, bar.Timestamp, "sizing rejected")
		return nil
	}

	fill, err := m.exec.SubmitEntry(ctx, types.Order{
		Symbol: m.instrument.Symbol,
		Side:   types.OrderBuy,
		Type:   types.OrderMarket,
		Size:   result.Size,
	})
	if err != nil {
		// A rejected entry behaves like a missed window.
		if errors.Is(err, gateway.ErrOrderRejected) {
			m.log.Warn().Err(err).Int("bar", barIndex).Msg("entry order rejected")
			m.reset(barIndex, bar.Timestamp, "entry rejected")
			return nil
		}
		return fmt.Errorf("submit entry for %s: %w", m.instrument.Symbol, err)
	}

	openedAt := fill.Timestamp
	if openedAt.IsZero() {
		openedAt = bar.Timestamp
	}
	pos := types.Position{
		Symbol:     m.instrument.Symbol,
		EntryPrice: fill.Price,
		Size:       fill.Size,
		StopPrice:  stop,
		TakePrice:  take,
		OpenedAt:   openedAt,
	}
	if pos.EntryPrice == 0 {
		pos.EntryPrice = entry
	}

	// An unprotected open position is not a state this machine can
	// continue from.
	if err := m.exits.Arm(ctx, pos, m.variant.EarlyExit); err != nil {
		return fmt.Errorf("arm exits for %s: %w", m.instrument.Symbol, err)
	}

	m.correction = result.CorrectionFactor
	m.setup = nil
	m.transition(barIndex, bar.Timestamp, PhaseEntered, fmt.Sprintf("entry %.5f size %.0f stop %.5f take %.5f", pos.EntryPrice, pos.Size, stop, take))
	return nil
}

func (m *Machine) recordClose(pos types.Position, barIndex int) {
	m.recordCloseAt(pos, barIndex, pos.ClosedAt)
}

func (m *Machine) recordCloseAt(pos types.Position, barIndex int, ts time.Time) {
	m.trades = append(m.trades, Trade{Position: pos, Correction: m.correction})
	m.transition(barIndex, ts, PhaseClosed, pos.ExitReason.String())
	m.transition(barIndex, ts, PhaseScanning, "cycle complete")
	m.correction = 1
}

func (m *Machine) reset(barIndex int, ts time.Time, cause string) {
	m.setup = nil
	m.transition(barIndex, ts, PhaseScanning, cause)
}

func (m *Machine) transition(barIndex int, ts time.Time, to Phase, cause string) {
	from := m.phase
	m.phase = to
	m.journal = append(m.journal, Transition{BarIndex: barIndex, Timestamp: ts, From: from, To: to, Cause: cause})
	m.log.Info().
		Int("bar", barIndex).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("cause", cause).
		Msg("phase transition")
}
