package detect

import (
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// TrendGate selects which trend confirmation an engulfing setup requires.
type TrendGate int

const (
	// GateEMAStack requires every configured EMA to be rising bar over
	// bar (the full stack ascending).
	GateEMAStack TrendGate = iota

	// GateKamaHL2 requires the HL2 reference line to sit above the
	// adaptive average.
	GateKamaHL2
)

// Engulfing detects a strict bullish engulfing bar pair combined with a
// trend gate and an optional momentum-oscillator threshold.
type Engulfing struct {
	Gate TrendGate

	// Momentum gate: when UseCCI is set the snapshot CCI must exceed
	// CCIThreshold and stay below CCIMax (both strict).
	UseCCI       bool
	CCIThreshold float64
	CCIMax       float64
}

// Name identifies the detector in logs and reports.
func (d *Engulfing) Name() string {
	return "engulfing"
}

// Detect reports a qualifying setup when the previous bar is strictly
// bearish, the current bar is strictly bullish, and the current body fully
// contains the previous body.
func (d *Engulfing) Detect(window []types.Bar, snap indicators.Snapshot) Signal {
	if len(window) < 2 || !snap.Ready {
		return Signal{}
	}

	prev := window[len(window)-2]
	curr := window[len(window)-1]

	if !prev.Bearish() || !curr.Bullish() {
		return Signal{}
	}
	// True engulfment: the bullish body must open at or below the prior
	// close and close at or above the prior open.
	if curr.Open > prev.Close || curr.Close < prev.Open {
		return Signal{}
	}

	switch d.Gate {
	case GateEMAStack:
		for i := range snap.EMA {
			if snap.EMA[i] <= snap.EMAPrev[i] {
				return Signal{}
			}
		}
	case GateKamaHL2:
		if snap.HL2EMA <= snap.Kama {
			return Signal{}
		}
	}

	if d.UseCCI {
		if snap.CCI <= d.CCIThreshold || snap.CCI >= d.CCIMax {
			return Signal{}
		}
	}

	return Signal{
		Present:       true,
		ReferenceHigh: curr.High,
		ReferenceLow:  curr.Low,
		Metadata: map[string]float64{
			MetaCCI: snap.CCI,
			MetaATR: snap.ATRAvg,
		},
	}
}
