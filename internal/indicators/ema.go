package indicators

import (
	"errors"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// EMA represents the Exponential Moving Average technical indicator.
// Calculate is pure over the supplied window: the first value is seeded
// with an SMA and the rest of the window is folded in recursively, so the
// same window always produces the same value.
type EMA struct {
	period int
	alpha  float64
	source Source
}

// NewEMA creates a new EMA indicator on bar closes.
func NewEMA(period int) *EMA {
	return NewEMAWithSource(period, SourceClose)
}

// NewEMAWithSource creates a new EMA indicator on a custom price source.
func NewEMAWithSource(period int, source Source) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1), // Standard EMA alpha calculation
		source: source,
	}
}

// Calculate calculates the EMA value for the last bar of the window.
func (e *EMA) Calculate(data []types.Bar) (float64, error) {
	series, err := e.Series(data)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the EMA value for every bar from index period-1 onward.
// series[i] corresponds to data[period-1+i].
func (e *EMA) Series(data []types.Bar) ([]float64, error) {
	if len(data) < e.period {
		return nil, errors.New("insufficient data for EMA calculation")
	}

	prices := extract(data, e.source)

	// Seed with the SMA of the first 'period' values.
	sum := 0.0
	for i := 0; i < e.period; i++ {
		sum += prices[i]
	}
	value := sum / float64(e.period)

	series := make([]float64, 0, len(prices)-e.period+1)
	series = append(series, value)

	// EMA = (Price * Alpha) + (Previous EMA * (1 - Alpha))
	for i := e.period; i < len(prices); i++ {
		value = (prices[i] * e.alpha) + (value * (1 - e.alpha))
		series = append(series, value)
	}

	return series, nil
}

// GetName returns the indicator name.
func (e *EMA) GetName() string {
	return "EMA"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}
