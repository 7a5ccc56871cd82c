package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

func bar(open, high, low, close float64) types.Bar {
	return types.Bar{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

// engulfPair is a strictly bearish bar followed by a bullish bar whose
// body contains the prior body.
func engulfPair() []types.Bar {
	return []types.Bar{
		bar(1.1010, 1.1015, 1.0995, 1.1000), // bearish
		bar(1.0998, 1.1030, 1.0996, 1.1025), // bullish, engulfs
	}
}

func risingStackSnapshot() indicators.Snapshot {
	return indicators.Snapshot{
		Ready:   true,
		EMA:     []float64{1.1010, 1.1005, 1.1000, 1.0995, 1.0990},
		EMAPrev: []float64{1.1008, 1.1003, 1.0998, 1.0993, 1.0988},
		CCI:     160,
		ATRAvg:  0.0012,
		ATR:     0.0011,
	}
}

func TestEngulfingStackAndMomentum(t *testing.T) {
	d := &Engulfing{Gate: GateEMAStack, UseCCI: true, CCIThreshold: 150, CCIMax: 300}

	sig := d.Detect(engulfPair(), risingStackSnapshot())
	require.True(t, sig.Present)
	assert.Equal(t, 1.1030, sig.ReferenceHigh)
	assert.Equal(t, 1.0996, sig.ReferenceLow)
	assert.Equal(t, 160.0, sig.Metadata[MetaCCI])
}

func TestEngulfingMomentumAtThresholdFails(t *testing.T) {
	d := &Engulfing{Gate: GateEMAStack, UseCCI: true, CCIThreshold: 150, CCIMax: 300}

	snap := risingStackSnapshot()
	snap.CCI = 150 // equality must not pass a strict gate
	assert.False(t, d.Detect(engulfPair(), snap).Present)

	snap.CCI = 300
	assert.False(t, d.Detect(engulfPair(), snap).Present)
}

func TestEngulfingFlatLineBreaksStack(t *testing.T) {
	d := &Engulfing{Gate: GateEMAStack}

	snap := risingStackSnapshot()
	snap.EMAPrev[2] = snap.EMA[2] // one flat line is enough to fail
	assert.False(t, d.Detect(engulfPair(), snap).Present)
}

func TestEngulfingRequiresStrictBodies(t *testing.T) {
	d := &Engulfing{Gate: GateEMAStack}
	snap := risingStackSnapshot()

	doji := []types.Bar{
		bar(1.1000, 1.1015, 1.0995, 1.1000), // doji, not bearish
		bar(1.0998, 1.1030, 1.0996, 1.1025),
	}
	assert.False(t, d.Detect(doji, snap).Present)

	partial := []types.Bar{
		bar(1.1010, 1.1015, 1.0995, 1.1000),
		bar(1.1002, 1.1030, 1.0999, 1.1025), // opens above prior close
	}
	assert.False(t, d.Detect(partial, snap).Present)
}

func TestEngulfingKamaGate(t *testing.T) {
	d := &Engulfing{Gate: GateKamaHL2}

	snap := indicators.Snapshot{Ready: true, HL2EMA: 1.1020, Kama: 1.1010}
	assert.True(t, d.Detect(engulfPair(), snap).Present)

	snap.HL2EMA = snap.Kama // equality fails
	assert.False(t, d.Detect(engulfPair(), snap).Present)
}

func crossSnapshot() indicators.Snapshot {
	return indicators.Snapshot{
		Ready: true,
		// confirm line (idx 0) crosses above the fast reference (idx 1).
		EMA:     []float64{1.1012, 1.1010, 1.1016, 1.1020},
		EMAPrev: []float64{1.1008, 1.1009, 1.1015, 1.1019},
		ATR:     0.0015,
	}
}

func newCrossover() *Crossover {
	return &Crossover{
		ConfirmIdx: 0,
		TargetIdxs: []int{1, 2},
		FilterIdx:  3,
		AngleScale: 10000,
		AngleMin:   30,
		AngleMax:   85,
		ATRMin:     0.0005,
		ATRMax:     0.0050,
	}
}

func TestCrossoverDetects(t *testing.T) {
	d := newCrossover()
	window := []types.Bar{bar(1.1010, 1.1035, 1.1005, 1.1030)}

	sig := d.Detect(window, crossSnapshot())
	require.True(t, sig.Present)
	assert.Equal(t, 1.1035, sig.ReferenceHigh)
	assert.Greater(t, sig.Metadata[MetaAngle], 30.0)
}

func TestCrossoverNoCrossNoSignal(t *testing.T) {
	d := newCrossover()
	window := []types.Bar{bar(1.1010, 1.1035, 1.1005, 1.1030)}

	snap := crossSnapshot()
	snap.EMAPrev[0] = 1.1011 // already above before, no crossing event
	assert.False(t, d.Detect(window, snap).Present)
}

func TestCrossoverAngleGate(t *testing.T) {
	d := newCrossover()
	window := []types.Bar{bar(1.1010, 1.1035, 1.1005, 1.1030)}

	snap := crossSnapshot()
	snap.EMAPrev[0] = snap.EMA[0] - 0.00002 // rise too shallow for 30 degrees
	snap.EMAPrev[1] = snap.EMAPrev[0]       // keep the crossing event itself
	assert.False(t, d.Detect(window, snap).Present)
}

func TestCrossoverATRBoundsAreStrict(t *testing.T) {
	d := newCrossover()
	window := []types.Bar{bar(1.1010, 1.1035, 1.1005, 1.1030)}

	snap := crossSnapshot()
	snap.ATR = d.ATRMax
	assert.False(t, d.Detect(window, snap).Present)

	snap.ATR = d.ATRMin
	assert.False(t, d.Detect(window, snap).Present)
}

func TestCrossoverFilterGate(t *testing.T) {
	d := newCrossover()
	// close below the long filter line
	window := []types.Bar{bar(1.1010, 1.1020, 1.1005, 1.1015)}
	assert.False(t, d.Detect(window, crossSnapshot()).Present)
}

func TestCrossoverOppositeCross(t *testing.T) {
	d := newCrossover()

	snap := crossSnapshot()
	assert.False(t, d.OppositeCross(snap))

	snap.EMA[0] = 1.1005 // now below the fast reference, was at-or-above
	snap.EMAPrev[0] = 1.1010
	assert.True(t, d.OppositeCross(snap))
}

func TestSlopeAngle(t *testing.T) {
	assert.InDelta(t, 45.0, SlopeAngle(1.0001, 1.0000, 10000), 1e-9)
	assert.InDelta(t, 0.0, SlopeAngle(1.0, 1.0, 10000), 1e-9)
	assert.Less(t, SlopeAngle(0.9999, 1.0000, 10000), 0.0)
}

func rangeSnapshot() indicators.Snapshot {
	return indicators.Snapshot{
		Ready:     true,
		ER:        0.15,
		ADXR:      18,
		Kama:      100.0,
		KamaSlope: 0.02,
		ATR:       0.5,
	}
}

func TestRangeRegimeDetects(t *testing.T) {
	d := &RangeRegime{ERMax: 0.3, ADXRMax: 25, SlopeATRMul: 0.1, BandATRMul: 2.0}

	lower, upper := d.Bands(rangeSnapshot())
	assert.InDelta(t, 99.0, lower, 1e-9)
	assert.InDelta(t, 101.0, upper, 1e-9)

	window := []types.Bar{bar(99.2, 99.3, 98.8, 98.9)} // closes below the band
	sig := d.Detect(window, rangeSnapshot())
	require.True(t, sig.Present)
	assert.InDelta(t, 99.0, sig.Metadata[MetaLowerBand], 1e-9)
}

func TestRangeRegimeOneHotGateVoids(t *testing.T) {
	d := &RangeRegime{ERMax: 0.3, ADXRMax: 25, SlopeATRMul: 0.1, BandATRMul: 2.0}
	window := []types.Bar{bar(99.2, 99.3, 98.8, 98.9)}

	trending := rangeSnapshot()
	trending.ER = 0.3 // equality fails the strict bound
	assert.False(t, d.Detect(window, trending).Present)

	strong := rangeSnapshot()
	strong.ADXR = 25
	assert.False(t, d.Detect(window, strong).Present)

	sloped := rangeSnapshot()
	sloped.KamaSlope = 0.06 // 0.1 * 0.5 ATR = 0.05 cap
	assert.False(t, d.Detect(window, sloped).Present)
}

func TestRangeRegimeCloseInsideBandNoSignal(t *testing.T) {
	d := &RangeRegime{ERMax: 0.3, ADXRMax: 25, SlopeATRMul: 0.1, BandATRMul: 2.0}

	window := []types.Bar{bar(99.5, 99.8, 99.2, 99.4)}
	assert.False(t, d.Detect(window, rangeSnapshot()).Present)
}

func TestStructureDetects(t *testing.T) {
	d := &Structure{EntropyMax: 0.6}

	snap := indicators.Snapshot{Ready: true, Entropy: 0.45, Kama: 1.1000, ATR: 0.001}
	window := []types.Bar{bar(1.1005, 1.1025, 1.1000, 1.1020)}

	sig := d.Detect(window, snap)
	require.True(t, sig.Present)
	assert.Equal(t, 0.45, sig.Metadata[MetaEntropy])

	// threshold is inclusive
	snap.Entropy = 0.6
	assert.True(t, d.Detect(window, snap).Present)

	snap.Entropy = 0.61
	assert.False(t, d.Detect(window, snap).Present)
}

func TestStructureRequiresCloseAboveBaseline(t *testing.T) {
	d := &Structure{EntropyMax: 0.6}

	snap := indicators.Snapshot{Ready: true, Entropy: 0.4, Kama: 1.1050}
	window := []types.Bar{bar(1.1005, 1.1025, 1.1000, 1.1020)}
	assert.False(t, d.Detect(window, snap).Present)
}

func TestDetectorsIgnoreUnreadySnapshots(t *testing.T) {
	window := engulfPair()
	snap := risingStackSnapshot()
	snap.Ready = false

	detectors := []Detector{
		&Engulfing{Gate: GateEMAStack},
		newCrossover(),
		&RangeRegime{ERMax: 0.3, ADXRMax: 25, SlopeATRMul: 0.1, BandATRMul: 2.0},
		&Structure{EntropyMax: 0.6},
	}
	for _, d := range detectors {
		assert.False(t, d.Detect(window, snap).Present, d.Name())
	}
}
