package strategy

import (
	"github.com/ducminhle1904/forex-phase-bot/internal/detect"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// The variant constructors below each build one gate-predicate table.
// Offsets given in pips are converted with the instrument pip size.

// EngulfingMomentumParams configures the engulfing-plus-momentum variant:
// bullish engulfing bar, full rising average stack, momentum oscillator
// above threshold, then a short breakout window above the pattern high.
type EngulfingMomentumParams struct {
	CCIThreshold float64
	CCIMax       float64
	WindowBars   int
	OffsetPips   float64
	PipSize      float64
	StopMult     float64
	TakeMult     float64
	SLPipsMin    float64
	SLPipsMax    float64
	Hours        *TimeWindow
}

// NewEngulfingMomentum builds the variant table.
func NewEngulfingMomentum(p EngulfingMomentumParams) Variant {
	if p.WindowBars <= 0 {
		p.WindowBars = 3
	}
	if p.CCIMax == 0 {
		p.CCIMax = 999
	}
	offset := p.OffsetPips * p.PipSize
	return Variant{
		Name: "engulfing-momentum",
		Detector: &detect.Engulfing{
			Gate:         detect.GateEMAStack,
			UseCCI:       true,
			CCIThreshold: p.CCIThreshold,
			CCIMax:       p.CCIMax,
		},
		WindowBars:     p.WindowBars,
		BreakoutOffset: func(*PhaseContext) float64 { return offset },
		StopMult:       p.StopMult,
		TakeMult:       p.TakeMult,
		SLPipsMin:      p.SLPipsMin,
		SLPipsMax:      p.SLPipsMax,
		Hours:          p.Hours,
	}
}

// EngulfingTrendParams configures the engulfing-plus-adaptive-baseline
// variant: the smoothed midprice line must sit above the adaptive
// average, and stop distances use the averaged true range.
type EngulfingTrendParams struct {
	WindowBars int
	OffsetPips float64
	PipSize    float64
	StopMult   float64
	TakeMult   float64
	UseKamaExit bool
	Hours      *TimeWindow
}

// NewEngulfingTrend builds the variant table.
func NewEngulfingTrend(p EngulfingTrendParams) Variant {
	if p.WindowBars <= 0 {
		p.WindowBars = 3
	}
	offset := p.OffsetPips * p.PipSize
	v := Variant{
		Name:           "engulfing-trend",
		Detector:       &detect.Engulfing{Gate: detect.GateKamaHL2},
		WindowBars:     p.WindowBars,
		BreakoutOffset: func(*PhaseContext) float64 { return offset },
		StopMult:       p.StopMult,
		TakeMult:       p.TakeMult,
		UseATRAvg:      true,
		Hours:          p.Hours,
	}
	if p.UseKamaExit {
		// The mirror of the entry gate: the adaptive average rising back
		// above the smoothed midprice closes the trade.
		v.EarlyExit = func(window []types.Bar, snap indicators.Snapshot) bool {
			return snap.Ready && snap.Kama > snap.HL2EMA
		}
	}
	return v
}

// CrossoverPullbackParams configures the crossover variant: a confirm
// line crossing above slower references with slope-angle and volatility
// gates, a counted bearish pullback, then a channel breakout with a
// range-proportional offset.
type CrossoverPullbackParams struct {
	Crossover       *detect.Crossover
	PullbackBars    int
	WindowBars      int
	OffsetRangeMult float64 // offset as a fraction of the pullback bar range
	StopMult        float64
	TakeMult        float64
	Hours           *TimeWindow
}

// NewCrossoverPullback builds the variant table.
func NewCrossoverPullback(p CrossoverPullbackParams) Variant {
	if p.PullbackBars <= 0 {
		p.PullbackBars = 2
	}
	if p.WindowBars <= 0 {
		p.WindowBars = 2
	}
	cross := p.Crossover
	return Variant{
		Name:              "crossover-pullback",
		Detector:          cross,
		ConfirmBars:       p.PullbackBars,
		ConfirmStep:       func(bar types.Bar) bool { return bar.Bearish() },
		RetargetOnConfirm: true,
		WindowBars:        p.WindowBars,
		BreakoutOffset: func(ctx *PhaseContext) float64 {
			return (ctx.ReferenceHigh - ctx.ReferenceLow) * p.OffsetRangeMult
		},
		UseLowerBound: true,
		// An opposite crossover alone is not enough evidence the setup
		// is dead; it must coincide with a bearish prior bar.
		Invalidate: func(window []types.Bar, snap indicators.Snapshot) bool {
			if len(window) < 2 {
				return false
			}
			return window[len(window)-2].Bearish() && cross.OppositeCross(snap)
		},
		RevalidateAtEntry: cross.Revalidate,
		StopMult:          p.StopMult,
		TakeMult:          p.TakeMult,
		AnchorAtBarRange:  true,
		UseEntryATR:       true,
		Hours:             p.Hours,
	}
}

// RangeReversionParams configures the mean-reversion variant: a certified
// ranging regime, price extending below the reversion band, a bullish
// reversal bar, then a breakout above the reversal extreme. A surge in
// the efficiency ratio cancels the setup at any stage.
type RangeReversionParams struct {
	Regime            *detect.RangeRegime
	ExtensionMinBars  int // bars the extension must hold below the band
	ExtensionMaxBars  int // bars after which the extension is a breakdown
	WindowBars        int
	OffsetPips        float64
	PipSize           float64
	ERCancelThreshold float64
	StopMult          float64
	TakeMult          float64
}

// NewRangeReversion builds the variant table. Detection is a close below
// the lower reversion band inside a certified range; confirmation is the
// extension holding below the band for at least ExtensionMinBars and then
// a close back above it. An extension that outlives ExtensionMaxBars is a
// range breakdown and abandons the setup.
func NewRangeReversion(p RangeReversionParams) Variant {
	if p.ExtensionMinBars <= 0 {
		p.ExtensionMinBars = 2
	}
	if p.ExtensionMaxBars <= 0 {
		p.ExtensionMaxBars = 20
	}
	if p.WindowBars <= 0 {
		p.WindowBars = 5
	}
	offset := p.OffsetPips * p.PipSize
	v := Variant{
		Name:     "range-reversion",
		Detector: p.Regime,
		ConfirmGate: func(ctx *PhaseContext, window []types.Bar, snap indicators.Snapshot) ConfirmVerdict {
			bar := window[len(window)-1]
			ctx.ConfirmCount++
			if ctx.ConfirmCount > p.ExtensionMaxBars {
				return ConfirmFail
			}
			// The band moves with KAMA and ATR; re-read it every bar.
			lower, _ := p.Regime.Bands(snap)
			if bar.Close > lower && ctx.ConfirmCount >= p.ExtensionMinBars {
				return ConfirmDone
			}
			// A recross before the minimum holds the sequence: price
			// may extend again, and the count keeps running.
			return ConfirmHold
		},
		RetargetOnConfirm: true,
		WindowBars:        p.WindowBars,
		BreakoutOffset:    func(*PhaseContext) float64 { return offset },
		StopMult:          p.StopMult,
		TakeMult:          p.TakeMult,
	}
	if p.ERCancelThreshold > 0 {
		v.Cancel = func(snap indicators.Snapshot) bool {
			return snap.ER > p.ERCancelThreshold
		}
	}
	return v
}

// EntropyStructureParams configures the structure variant: a low
// spectral-entropy window with price above the adaptive average, a short
// bearish pullback, then a breakout above the pullback high.
type EntropyStructureParams struct {
	EntropyMax   float64
	PullbackBars int
	WindowBars   int
	OffsetPips   float64
	PipSize      float64
	StopMult     float64
	TakeMult     float64
	UseKamaExit  bool
}

// NewEntropyStructure builds the variant table.
func NewEntropyStructure(p EntropyStructureParams) Variant {
	if p.PullbackBars <= 0 {
		p.PullbackBars = 1
	}
	if p.WindowBars <= 0 {
		p.WindowBars = 5
	}
	offset := p.OffsetPips * p.PipSize
	v := Variant{
		Name:              "entropy-structure",
		Detector:          &detect.Structure{EntropyMax: p.EntropyMax},
		ConfirmBars:       p.PullbackBars,
		ConfirmStep:       func(bar types.Bar) bool { return bar.Bearish() },
		RetargetOnConfirm: true,
		WindowBars:        p.WindowBars,
		BreakoutOffset:    func(*PhaseContext) float64 { return offset },
		StopMult:          p.StopMult,
		TakeMult:          p.TakeMult,
	}
	if p.UseKamaExit {
		v.EarlyExit = func(window []types.Bar, snap indicators.Snapshot) bool {
			if !snap.Ready || len(window) == 0 {
				return false
			}
			return window[len(window)-1].Close < snap.Kama
		}
	}
	return v
}
