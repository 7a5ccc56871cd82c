package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// ATR represents the Average True Range technical indicator.
// ATR measures volatility by decomposing the full price range of each bar,
// smoothed with Wilder's method.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate calculates the ATR value for the last bar of the window.
func (a *ATR) Calculate(data []types.Bar) (float64, error) {
	series, err := a.Series(data)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// CalculateAverage returns the mean of the last avgPeriod ATR values.
// Averaging over recent true-range readings removes single-bar spikes
// before the value is used for stop placement or range filters. If fewer
// than avgPeriod values are available the instantaneous ATR is returned.
func (a *ATR) CalculateAverage(data []types.Bar, avgPeriod int) (float64, error) {
	series, err := a.Series(data)
	if err != nil {
		return 0, err
	}
	if avgPeriod <= 1 || len(series) < avgPeriod {
		return series[len(series)-1], nil
	}

	sum := 0.0
	for _, v := range series[len(series)-avgPeriod:] {
		sum += v
	}
	return sum / float64(avgPeriod), nil
}

// Series returns the ATR value for every bar from index period onward.
func (a *ATR) Series(data []types.Bar) ([]float64, error) {
	if len(data) < a.period+1 {
		return nil, errors.New("insufficient data for ATR calculation")
	}

	// Seed with the simple average of the first 'period' true ranges.
	sum := 0.0
	for i := 1; i <= a.period; i++ {
		sum += trueRange(data[i], data[i-1].Close)
	}
	value := sum / float64(a.period)

	series := make([]float64, 0, len(data)-a.period)
	series = append(series, value)

	// Wilder smoothing: ATR = (PrevATR*(period-1) + TR) / period
	for i := a.period + 1; i < len(data); i++ {
		tr := trueRange(data[i], data[i-1].Close)
		value = (value*float64(a.period-1) + tr) / float64(a.period)
		series = append(series, value)
	}

	return series, nil
}

// GetName returns the indicator name.
func (a *ATR) GetName() string {
	return "ATR"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (a *ATR) GetRequiredPeriods() int {
	return a.period + 1
}

// trueRange calculates max(High-Low, |High-PrevClose|, |Low-PrevClose|).
func trueRange(current types.Bar, prevClose float64) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-prevClose),
			math.Abs(current.Low-prevClose)))
}
