package detect

import (
	"math"

	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// RangeRegime certifies a low-trend regime and emits a signal when price
// extends beyond the lower reversion band. The regime check requires low
// directional efficiency, a weak trend reading and a near-flat adaptive
// baseline all at once; a single hot gate voids the signal.
type RangeRegime struct {
	ERMax       float64 // strict upper bound on efficiency ratio
	ADXRMax     float64 // strict upper bound on ADXR
	SlopeATRMul float64 // |kama slope| must stay under mult*ATR
	BandATRMul  float64 // band half-width in ATR multiples
}

// Name identifies the detector in logs and reports.
func (d *RangeRegime) Name() string {
	return "range_regime"
}

// InRegime reports whether all three range-certification gates hold.
func (d *RangeRegime) InRegime(snap indicators.Snapshot) bool {
	if !snap.Ready {
		return false
	}
	if snap.ER >= d.ERMax {
		return false
	}
	if snap.ADXR >= d.ADXRMax {
		return false
	}
	return math.Abs(snap.KamaSlope) < d.SlopeATRMul*snap.ATR
}

// Bands returns the reversion band edges around the adaptive baseline.
func (d *RangeRegime) Bands(snap indicators.Snapshot) (lower, upper float64) {
	half := d.BandATRMul * snap.ATR
	return snap.Kama - half, snap.Kama + half
}

// Detect reports a long mean-reversion setup: the regime holds and the bar
// closes below the lower band.
func (d *RangeRegime) Detect(window []types.Bar, snap indicators.Snapshot) Signal {
	if len(window) == 0 || !d.InRegime(snap) {
		return Signal{}
	}
	lower, upper := d.Bands(snap)
	curr := window[len(window)-1]
	if curr.Close >= lower {
		return Signal{}
	}
	return Signal{
		Present:       true,
		ReferenceHigh: curr.High,
		ReferenceLow:  curr.Low,
		Metadata: map[string]float64{
			MetaER:        snap.ER,
			MetaADXR:      snap.ADXR,
			MetaKamaSlope: snap.KamaSlope,
			MetaLowerBand: lower,
			MetaUpperBand: upper,
			MetaATR:       snap.ATR,
		},
	}
}
