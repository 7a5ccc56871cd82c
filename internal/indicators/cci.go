package indicators

import (
	"errors"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// CCI represents the Commodity Channel Index momentum oscillator.
// CCI = (Price - SMA(Price)) / (0.015 * MeanDeviation), where Price is the
// typical price by default or HL2 for the adaptive-average variants.
type CCI struct {
	period int
	source Source
}

// NewCCI creates a new CCI indicator on the typical price (H+L+C)/3.
func NewCCI(period int) *CCI {
	return &CCI{
		period: period,
		source: func(b types.Bar) float64 { return (b.High + b.Low + b.Close) / 3.0 },
	}
}

// NewCCIHL2 creates a new CCI indicator on the bar median price.
func NewCCIHL2(period int) *CCI {
	return &CCI{period: period, source: SourceHL2}
}

// Calculate calculates the CCI value for the last bar of the window.
func (c *CCI) Calculate(data []types.Bar) (float64, error) {
	if len(data) < c.period {
		return 0, errors.New("insufficient data for CCI calculation")
	}

	prices := extract(data[len(data)-c.period:], c.source)

	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	sma := sum / float64(c.period)

	meanDev := 0.0
	for _, p := range prices {
		if p >= sma {
			meanDev += p - sma
		} else {
			meanDev += sma - p
		}
	}
	meanDev /= float64(c.period)

	if meanDev == 0 {
		return 0, nil
	}

	current := prices[len(prices)-1]
	return (current - sma) / (0.015 * meanDev), nil
}

// GetName returns the indicator name.
func (c *CCI) GetName() string {
	return "CCI"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (c *CCI) GetRequiredPeriods() int {
	return c.period
}
