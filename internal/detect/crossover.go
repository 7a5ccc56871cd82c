package detect

import (
	"math"

	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Crossover detects the confirm line crossing above any of a set of slower
// reference lines, gated by a long price filter, a slope-angle window and a
// volatility window.
//
// The angle gate rejects both flat crossings (drift, not momentum) and
// near-vertical ones (exhaustion spikes).
type Crossover struct {
	// Indices into Snapshot.EMA for the lines involved.
	ConfirmIdx int
	TargetIdxs []int // fast/medium/slow reference lines
	FilterIdx  int   // long trend filter; close must exceed it

	AngleScale float64 // price-change scaling before atan
	AngleMin   float64 // degrees, strict lower bound
	AngleMax   float64 // degrees, strict upper bound

	ATRMin float64 // strict bounds on the snapshot ATR
	ATRMax float64
}

// Name identifies the detector in logs and reports.
func (d *Crossover) Name() string {
	return "crossover"
}

// Detect reports a qualifying setup on the bar where the confirm line
// crosses above at least one reference line with every gate open.
func (d *Crossover) Detect(window []types.Bar, snap indicators.Snapshot) Signal {
	if len(window) == 0 || !snap.Ready {
		return Signal{}
	}

	crossed := false
	for _, idx := range d.TargetIdxs {
		if crossAbove(snap.EMA[d.ConfirmIdx], snap.EMAPrev[d.ConfirmIdx], snap.EMA[idx], snap.EMAPrev[idx]) {
			crossed = true
			break
		}
	}
	if !crossed {
		return Signal{}
	}

	curr := window[len(window)-1]
	if curr.Close <= snap.EMA[d.FilterIdx] {
		return Signal{}
	}

	angle := SlopeAngle(snap.EMA[d.ConfirmIdx], snap.EMAPrev[d.ConfirmIdx], d.AngleScale)
	if !(angle > d.AngleMin && angle < d.AngleMax) {
		return Signal{}
	}

	if !(snap.ATR > d.ATRMin && snap.ATR < d.ATRMax) {
		return Signal{}
	}

	return Signal{
		Present:       true,
		ReferenceHigh: curr.High,
		ReferenceLow:  curr.Low,
		Metadata: map[string]float64{
			MetaAngle: angle,
			MetaATR:   snap.ATR,
		},
	}
}

// Revalidate re-applies the execution-time gates: price above the long
// filter and the angle window. Used when the breakout fires bars after the
// original crossover.
func (d *Crossover) Revalidate(window []types.Bar, snap indicators.Snapshot) bool {
	if len(window) == 0 || !snap.Ready {
		return false
	}
	curr := window[len(window)-1]
	if curr.Close <= snap.EMA[d.FilterIdx] {
		return false
	}
	angle := SlopeAngle(snap.EMA[d.ConfirmIdx], snap.EMAPrev[d.ConfirmIdx], d.AngleScale)
	return angle > d.AngleMin && angle < d.AngleMax
}

// OppositeCross reports whether the confirm line crossed below any
// reference line on this bar. On its own this is not enough to kill a
// setup; the machine requires a bearish prior bar as well.
func (d *Crossover) OppositeCross(snap indicators.Snapshot) bool {
	for _, idx := range d.TargetIdxs {
		if crossBelow(snap.EMA[d.ConfirmIdx], snap.EMAPrev[d.ConfirmIdx], snap.EMA[idx], snap.EMAPrev[idx]) {
			return true
		}
	}
	return false
}

// SlopeAngle converts a scaled bar-to-bar change into degrees.
func SlopeAngle(current, previous, scale float64) float64 {
	rise := (current - previous) * scale
	return math.Atan(rise) * 180.0 / math.Pi
}

// crossAbove reports a strictly-above now, at-or-below before crossing.
func crossAbove(a, aPrev, b, bPrev float64) bool {
	return a > b && aPrev <= bPrev
}

// crossBelow reports a strictly-below now, at-or-above before crossing.
func crossBelow(a, aPrev, b, bPrev float64) bool {
	return a < b && aPrev >= bPrev
}
