package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// KAMA represents Kaufman's Adaptive Moving Average.
//
// The smoothing constant adapts to the efficiency ratio: net price change
// over the lookback divided by the summed absolute bar-to-bar changes. The
// ratio is mapped between the fast and slow constants and squared, so the
// line hugs price in directional markets and flattens toward the slow
// constant in noise.
type KAMA struct {
	period int
	fast   int
	slow   int
	source Source

	fastSC float64
	slowSC float64
}

// NewKAMA creates a new KAMA indicator on bar closes.
func NewKAMA(period, fast, slow int) *KAMA {
	return NewKAMAWithSource(period, fast, slow, SourceClose)
}

// NewKAMAWithSource creates a new KAMA indicator on a custom price source.
func NewKAMAWithSource(period, fast, slow int, source Source) *KAMA {
	return &KAMA{
		period: period,
		fast:   fast,
		slow:   slow,
		source: source,
		fastSC: 2.0 / float64(fast+1),
		slowSC: 2.0 / float64(slow+1),
	}
}

// Calculate calculates the KAMA value for the last bar of the window.
func (k *KAMA) Calculate(data []types.Bar) (float64, error) {
	series, err := k.Series(data)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the KAMA value for every bar from index period-1 onward.
// The first value is seeded with an SMA over the initial period, matching
// the reference recursive definition.
func (k *KAMA) Series(data []types.Bar) ([]float64, error) {
	if len(data) < k.period+1 {
		return nil, errors.New("insufficient data for KAMA calculation")
	}

	prices := extract(data, k.source)

	sum := 0.0
	for i := 0; i < k.period; i++ {
		sum += prices[i]
	}
	value := sum / float64(k.period)

	series := make([]float64, 0, len(prices)-k.period+1)
	series = append(series, value)

	for i := k.period; i < len(prices); i++ {
		er := efficiencyRatioAt(prices, i, k.period)

		// SC = (ER * (fastSC - slowSC) + slowSC)^2
		sc := er*(k.fastSC-k.slowSC) + k.slowSC
		sc *= sc

		value += sc * (prices[i] - value)
		series = append(series, value)
	}

	return series, nil
}

// Slope returns the per-bar change of KAMA over the given lookback,
// used by the range-regime filter to certify a flat center line.
func (k *KAMA) Slope(data []types.Bar, lookback int) (float64, error) {
	series, err := k.Series(data)
	if err != nil {
		return 0, err
	}
	if lookback < 1 || len(series) < lookback+1 {
		return 0, errors.New("insufficient data for KAMA slope calculation")
	}
	return (series[len(series)-1] - series[len(series)-1-lookback]) / float64(lookback), nil
}

// GetName returns the indicator name.
func (k *KAMA) GetName() string {
	return "KAMA"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (k *KAMA) GetRequiredPeriods() int {
	return k.period + 1
}

// efficiencyRatioAt computes the efficiency ratio ending at index i.
func efficiencyRatioAt(prices []float64, i, period int) float64 {
	change := math.Abs(prices[i] - prices[i-period])
	volatility := 0.0
	for j := i - period + 1; j <= i; j++ {
		volatility += math.Abs(prices[j] - prices[j-1])
	}
	if volatility == 0 {
		return 0
	}
	return change / volatility
}

// EfficiencyRatio exposes the displacement-over-path-length ratio directly.
// Values near 1 indicate a directional market, values near 0 a choppy one.
type EfficiencyRatio struct {
	period int
	source Source
}

// NewEfficiencyRatio creates a new efficiency ratio indicator on closes.
func NewEfficiencyRatio(period int) *EfficiencyRatio {
	return &EfficiencyRatio{period: period, source: SourceClose}
}

// Calculate calculates the efficiency ratio for the last bar of the window.
func (er *EfficiencyRatio) Calculate(data []types.Bar) (float64, error) {
	if len(data) < er.period+1 {
		return 0, errors.New("insufficient data for efficiency ratio calculation")
	}
	prices := extract(data, er.source)
	return efficiencyRatioAt(prices, len(prices)-1, er.period), nil
}

// GetName returns the indicator name.
func (er *EfficiencyRatio) GetName() string {
	return "EfficiencyRatio"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (er *EfficiencyRatio) GetRequiredPeriods() int {
	return er.period + 1
}
