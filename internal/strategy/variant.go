package strategy

import (
	"time"

	"github.com/ducminhle1904/forex-phase-bot/internal/detect"
	"github.com/ducminhle1904/forex-phase-bot/internal/exits"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// ConfirmStep is the per-bar character a confirmation sequence requires,
// for example "bearish pullback bar". A bar that fails the step
// invalidates the whole sequence.
type ConfirmStep func(bar types.Bar) bool

// ConfirmVerdict is the per-bar outcome of a snapshot-aware confirmation
// sequence.
type ConfirmVerdict int

const (
	ConfirmHold ConfirmVerdict = iota // sequence continues
	ConfirmDone                       // sequence complete, open the window
	ConfirmFail                       // sequence broken, back to scanning
)

// GatePredicate is re-evaluated against live indicator values, as opposed
// to the snapshot cached at detection time.
type GatePredicate func(window []types.Bar, snap indicators.Snapshot) bool

// TimeWindow restricts entries to an intraday interval, bounds inclusive.
type TimeWindow struct {
	StartHour, StartMinute int
	EndHour, EndMinute     int
}

// Contains reports whether t falls inside the window. A start later than
// the end spans midnight, so 22:00 to 02:00 covers 23:30 and 01:00.
func (w TimeWindow) Contains(t time.Time) bool {
	cur := t.Hour()*60 + t.Minute()
	start := w.StartHour*60 + w.StartMinute
	end := w.EndHour*60 + w.EndMinute
	if start <= end {
		return cur >= start && cur <= end
	}
	return cur >= start || cur <= end
}

// Variant is the gate-predicate table that turns the generic phase
// machine into one concrete strategy. Behavior differences between
// strategies live entirely in this table; the machine itself never
// branches on a strategy name.
type Variant struct {
	Name     string
	Detector detect.Detector

	// Confirmation. ConfirmBars is the number of consecutive qualifying
	// bars required before the breakout window opens; zero opens the
	// window on the detection bar itself. ConfirmStep may be nil when
	// ConfirmBars is zero.
	ConfirmBars int
	ConfirmStep ConfirmStep

	// ConfirmGate, when set, replaces the fixed-count ConfirmStep
	// sequence with a snapshot-aware one: confirmations that track an
	// indicator level (a reversion band, for example) re-read it every
	// bar. The gate owns ctx.ConfirmCount; the machine seeds it with 1
	// for the detection bar.
	ConfirmGate func(ctx *PhaseContext, window []types.Bar, snap indicators.Snapshot) ConfirmVerdict

	// RetargetOnConfirm moves the pattern reference prices to the bar
	// that completed confirmation (a pullback channel) instead of the
	// original detection bar.
	RetargetOnConfirm bool

	// Breakout window.
	WindowBars     int
	BreakoutOffset func(ctx *PhaseContext) float64

	// UseLowerBound arms the channel bottom: a low at or below
	// ReferenceLow minus the offset abandons the window.
	UseLowerBound bool

	// Invalidate is checked while confirming or waiting for breakout,
	// before any phase progress on the same bar. Variants encode their
	// own conjunction rules inside the closure.
	Invalidate GatePredicate

	// Cancel abandons the setup on regime change regardless of phase
	// progress (for example the efficiency ratio surging past a
	// trend-onset threshold in a range-reversion variant).
	Cancel func(snap indicators.Snapshot) bool

	// RevalidateAtEntry re-applies execution-time filters on the
	// breakout bar. Failing it resets to scanning.
	RevalidateAtEntry GatePredicate

	// Stops. Distances are multiples of the volatility reading; the
	// anchor is either the breakout bar's extremes or the entry price.
	StopMult, TakeMult float64
	AnchorAtBarRange   bool // stop from bar low / take from bar high
	UseATRAvg          bool // averaged true range instead of instantaneous
	UseEntryATR        bool // volatility read on the entry bar, not at detection

	// EarlyExit, when set, is evaluated once per bar while a position is
	// open.
	EarlyExit exits.EarlyExit

	// Entry-time filters.
	Hours       *TimeWindow
	AllowedDays []time.Weekday // empty = every day

	// SL distance filter in pips; zero max disables.
	SLPipsMin, SLPipsMax float64

	// Volatility filter on the stop-distance ATR at entry time; each
	// zero bound disables that side.
	ATRMin, ATRMax float64
}

// dayAllowed applies the weekday filter.
func (v *Variant) dayAllowed(t time.Time) bool {
	if len(v.AllowedDays) == 0 {
		return true
	}
	for _, d := range v.AllowedDays {
		if t.Weekday() == d {
			return true
		}
	}
	return false
}

// atr picks the volatility reading the variant's stop distances use.
func (v *Variant) atr(detected, current indicators.Snapshot) float64 {
	snap := detected
	if v.UseEntryATR {
		snap = current
	}
	if v.UseATRAvg {
		return snap.ATRAvg
	}
	return snap.ATR
}
