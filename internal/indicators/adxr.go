package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// ADXR represents the Average Directional Movement Rating.
//
// ADXR averages the current ADX with its value 'lookback' periods back,
// which removes much of the raw indicator's whipsaw: a spike has to persist
// before the rating follows it. The range-regime filter reads low ADXR as
// "no trend strength in either direction".
type ADXR struct {
	period   int
	lookback int
}

// NewADXR creates a new ADXR indicator.
func NewADXR(period, lookback int) *ADXR {
	return &ADXR{period: period, lookback: lookback}
}

// Calculate calculates the ADXR value for the last bar of the window.
// ADXR = (ADX[now] + ADX[now-lookback]) / 2
func (a *ADXR) Calculate(data []types.Bar) (float64, error) {
	adxSeries, err := a.adxSeries(data)
	if err != nil {
		return 0, err
	}
	if len(adxSeries) < a.lookback+1 {
		return 0, errors.New("insufficient data for ADXR calculation")
	}

	current := adxSeries[len(adxSeries)-1]
	back := adxSeries[len(adxSeries)-1-a.lookback]
	return (current + back) / 2.0, nil
}

// adxSeries computes the Wilder ADX sequence over the window.
func (a *ADXR) adxSeries(data []types.Bar) ([]float64, error) {
	if len(data) < a.GetRequiredPeriods() {
		return nil, errors.New("insufficient data for ADX calculation")
	}

	n := len(data)
	p := float64(a.period)

	// Seed Wilder sums over the first 'period' movements.
	var trSum, plusSum, minusSum float64
	for i := 1; i <= a.period; i++ {
		tr, plusDM, minusDM := directionalMovement(data[i], data[i-1])
		trSum += tr
		plusSum += plusDM
		minusSum += minusDM
	}

	dx := make([]float64, 0, n)
	appendDX := func() {
		var plusDI, minusDI float64
		if trSum > 0 {
			plusDI = 100.0 * plusSum / trSum
			minusDI = 100.0 * minusSum / trSum
		}
		sumDI := plusDI + minusDI
		if sumDI == 0 {
			dx = append(dx, 0)
			return
		}
		dx = append(dx, 100.0*math.Abs(plusDI-minusDI)/sumDI)
	}
	appendDX()

	// Wilder continuation: Sum = Sum - Sum/period + Current
	for i := a.period + 1; i < n; i++ {
		tr, plusDM, minusDM := directionalMovement(data[i], data[i-1])
		trSum = trSum - trSum/p + tr
		plusSum = plusSum - plusSum/p + plusDM
		minusSum = minusSum - minusSum/p + minusDM
		appendDX()
	}

	if len(dx) < 2*a.period {
		return nil, errors.New("insufficient data for ADX smoothing")
	}

	// ADX seeds with the mean of the first 'period' DX values, then
	// continues with Wilder smoothing.
	seed := 0.0
	for i := 0; i < a.period; i++ {
		seed += dx[i]
	}
	adx := seed / p

	series := make([]float64, 0, len(dx)-a.period+1)
	series = append(series, adx)
	for i := a.period; i < len(dx); i++ {
		adx = (adx*(p-1) + dx[i]) / p
		series = append(series, adx)
	}

	return series, nil
}

// GetName returns the indicator name.
func (a *ADXR) GetName() string {
	return "ADXR"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (a *ADXR) GetRequiredPeriods() int {
	// One bar of history for the first movement, 'period' movements to seed
	// the Wilder sums, 'period' DX values to seed ADX, plus the lookback.
	return 2*a.period + a.lookback + 1
}

// directionalMovement returns the true range and the +DM/-DM components
// for a bar against its predecessor.
func directionalMovement(current, previous types.Bar) (tr, plusDM, minusDM float64) {
	tr = trueRange(current, previous.Close)

	upMove := current.High - previous.High
	downMove := previous.Low - current.Low

	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	return tr, plusDM, minusDM
}
