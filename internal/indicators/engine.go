package indicators

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

var (
	// ErrOutOfOrderBar is returned when a bar does not advance the stream
	// timestamp. The engine state is left untouched.
	ErrOutOfOrderBar = errors.New("bar timestamp not after previous bar")

	// ErrMalformedBar is returned for bars with inconsistent or
	// non-finite prices. The engine state is left untouched.
	ErrMalformedBar = errors.New("malformed bar")
)

// Config selects which derived values the engine produces and their
// lookbacks. Zero-valued optional sections (ADXR, entropy, CCI, HL2 EMA)
// are disabled.
type Config struct {
	EMAPeriods   []int // close-price EMAs, exposed in Snapshot.EMA in this order
	HL2EMAPeriod int   // EMA on HL2 used against the adaptive average

	KamaPeriod        int
	KamaFast          int
	KamaSlow          int
	KamaSlopeLookback int // bars for Snapshot.KamaSlope; 0 defaults to 1
	KamaOnHL2         bool

	ERPeriod int

	ADXPeriod    int
	ADXRLookback int

	EntropyPeriod int

	ATRPeriod    int
	ATRAvgPeriod int // 0 = instantaneous ATR only

	CCIPeriod int
	CCIOnHL2  bool
}

// Snapshot is the fixed set of derived values produced for one bar.
// Consumers must check Ready before acting on any numeric field: during
// warm-up the values are unset, not zeroes with meaning.
type Snapshot struct {
	BarIndex  int
	Timestamp time.Time
	Bar       types.Bar
	Ready     bool

	EMA     []float64 // one value per Config.EMAPeriods entry
	EMAPrev []float64 // same EMAs one bar earlier

	HL2EMA     float64
	HL2EMAPrev float64

	Kama      float64
	KamaPrev  float64
	KamaSlope float64

	ER      float64
	ADXR    float64
	Entropy float64

	ATR    float64
	ATRAvg float64

	CCI float64
}

// Engine maintains the rolling bar history for one stream and derives a
// Snapshot per bar. One engine is owned by exactly one strategy instance;
// it is not safe for concurrent use and is never shared.
type Engine struct {
	cfg      Config
	capacity int

	emas    []*EMA
	hl2EMA  *EMA
	kama    *KAMA
	er      *EfficiencyRatio
	adxr    *ADXR
	entropy *SpectralEntropy
	atr     *ATR
	cci     *CCI

	bars     []types.Bar
	barIndex int
	lastTS   time.Time
}

// NewEngine creates an engine for the given indicator configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ATRPeriod <= 0 {
		return nil, errors.New("ATR period is required")
	}
	if cfg.KamaPeriod <= 0 {
		return nil, errors.New("KAMA period is required")
	}
	if cfg.ERPeriod <= 0 {
		return nil, errors.New("efficiency ratio period is required")
	}
	if cfg.KamaSlopeLookback <= 0 {
		cfg.KamaSlopeLookback = 1
	}

	e := &Engine{cfg: cfg}

	for _, p := range cfg.EMAPeriods {
		if p <= 0 {
			return nil, fmt.Errorf("invalid EMA period %d", p)
		}
		e.emas = append(e.emas, NewEMA(p))
	}
	if cfg.HL2EMAPeriod > 0 {
		e.hl2EMA = NewEMAWithSource(cfg.HL2EMAPeriod, SourceHL2)
	}

	kamaSource := SourceClose
	if cfg.KamaOnHL2 {
		kamaSource = SourceHL2
	}
	e.kama = NewKAMAWithSource(cfg.KamaPeriod, cfg.KamaFast, cfg.KamaSlow, kamaSource)

	e.er = NewEfficiencyRatio(cfg.ERPeriod)
	e.atr = NewATR(cfg.ATRPeriod)

	if cfg.ADXPeriod > 0 {
		e.adxr = NewADXR(cfg.ADXPeriod, cfg.ADXRLookback)
	}
	if cfg.EntropyPeriod > 0 {
		e.entropy = NewSpectralEntropy(cfg.EntropyPeriod)
	}
	if cfg.CCIPeriod > 0 {
		if cfg.CCIOnHL2 {
			e.cci = NewCCIHL2(cfg.CCIPeriod)
		} else {
			e.cci = NewCCI(cfg.CCIPeriod)
		}
	}

	e.capacity = e.maxLookback()
	e.bars = make([]types.Bar, 0, e.capacity)
	e.barIndex = -1
	return e, nil
}

// maxLookback returns the bar-history length every enabled indicator can be
// computed from, including the one-bar-back values the detectors compare
// against.
func (e *Engine) maxLookback() int {
	required := e.atr.GetRequiredPeriods() + e.cfg.ATRAvgPeriod
	grow := func(n int) {
		if n > required {
			required = n
		}
	}

	for _, ema := range e.emas {
		grow(ema.GetRequiredPeriods() + 1)
	}
	if e.hl2EMA != nil {
		grow(e.hl2EMA.GetRequiredPeriods() + 1)
	}
	grow(e.kama.GetRequiredPeriods() + e.cfg.KamaSlopeLookback + 1)
	grow(e.er.GetRequiredPeriods())
	if e.adxr != nil {
		grow(e.adxr.GetRequiredPeriods())
	}
	if e.entropy != nil {
		grow(e.entropy.GetRequiredPeriods())
	}
	if e.cci != nil {
		grow(e.cci.GetRequiredPeriods() + 1)
	}

	return required
}

// WarmupBars returns how many bars the engine consumes before snapshots
// become ready.
func (e *Engine) WarmupBars() int {
	return e.capacity
}

// BarIndex returns the index of the most recently accepted bar, starting
// at 0. Timeouts are measured against this counter, never wall clock.
func (e *Engine) BarIndex() int {
	return e.barIndex
}

// Window returns the current bar history, oldest first. The returned slice
// is owned by the engine and valid until the next Update call.
func (e *Engine) Window() []types.Bar {
	return e.bars
}

// Update accepts the next closed bar and derives its snapshot. It must be
// called exactly once per bar in timestamp order. Rejected bars (out of
// order or malformed) do not advance any state.
func (e *Engine) Update(bar types.Bar) (Snapshot, error) {
	if err := validateBar(bar); err != nil {
		return Snapshot{}, err
	}
	if !e.lastTS.IsZero() && !bar.Timestamp.After(e.lastTS) {
		return Snapshot{}, fmt.Errorf("%w: %s <= %s",
			ErrOutOfOrderBar, bar.Timestamp.Format(time.RFC3339), e.lastTS.Format(time.RFC3339))
	}

	if len(e.bars) == e.capacity {
		copy(e.bars, e.bars[1:])
		e.bars = e.bars[:e.capacity-1]
	}
	e.bars = append(e.bars, bar)
	e.barIndex++
	e.lastTS = bar.Timestamp

	snap := Snapshot{
		BarIndex:  e.barIndex,
		Timestamp: bar.Timestamp,
		Bar:       bar,
	}

	if len(e.bars) < e.capacity {
		return snap, nil
	}

	if err := e.fill(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("deriving snapshot at bar %d: %w", e.barIndex, err)
	}
	snap.Ready = true
	return snap, nil
}

// fill computes every enabled derived value for the current window.
func (e *Engine) fill(snap *Snapshot) error {
	for _, ema := range e.emas {
		series, err := ema.Series(e.bars)
		if err != nil {
			return err
		}
		snap.EMA = append(snap.EMA, series[len(series)-1])
		snap.EMAPrev = append(snap.EMAPrev, series[len(series)-2])
	}

	if e.hl2EMA != nil {
		series, err := e.hl2EMA.Series(e.bars)
		if err != nil {
			return err
		}
		snap.HL2EMA = series[len(series)-1]
		snap.HL2EMAPrev = series[len(series)-2]
	}

	kamaSeries, err := e.kama.Series(e.bars)
	if err != nil {
		return err
	}
	snap.Kama = kamaSeries[len(kamaSeries)-1]
	snap.KamaPrev = kamaSeries[len(kamaSeries)-2]
	lb := e.cfg.KamaSlopeLookback
	snap.KamaSlope = (kamaSeries[len(kamaSeries)-1] - kamaSeries[len(kamaSeries)-1-lb]) / float64(lb)

	if snap.ER, err = e.er.Calculate(e.bars); err != nil {
		return err
	}

	if snap.ATR, err = e.atr.Calculate(e.bars); err != nil {
		return err
	}
	if e.cfg.ATRAvgPeriod > 1 {
		if snap.ATRAvg, err = e.atr.CalculateAverage(e.bars, e.cfg.ATRAvgPeriod); err != nil {
			return err
		}
	} else {
		snap.ATRAvg = snap.ATR
	}

	if e.adxr != nil {
		if snap.ADXR, err = e.adxr.Calculate(e.bars); err != nil {
			return err
		}
	}
	if e.entropy != nil {
		if snap.Entropy, err = e.entropy.Calculate(e.bars); err != nil {
			return err
		}
	}
	if e.cci != nil {
		if snap.CCI, err = e.cci.Calculate(e.bars); err != nil {
			return err
		}
	}

	return nil
}

// validateBar rejects bars with non-finite or internally inconsistent
// prices.
func validateBar(b types.Bar) error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite field", ErrMalformedBar)
		}
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrMalformedBar)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: high below low", ErrMalformedBar)
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("%w: open/close outside range", ErrMalformedBar)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("%w: non-positive price", ErrMalformedBar)
	}
	return nil
}
