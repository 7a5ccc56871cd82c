package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// SpectralEntropy represents a frequency-domain randomness measure over a
// rolling return window.
//
// The return window is transformed to its power spectrum, the spectrum is
// normalized to a probability distribution, and the Shannon entropy of that
// distribution is divided by the maximum entropy for the window length so
// the result lands in [0,1]. A low reading means one frequency dominates
// (structured price action); a reading near 1 means the window is
// indistinguishable from noise.
type SpectralEntropy struct {
	period int
	source Source
}

// NewSpectralEntropy creates a new spectral entropy indicator over close
// returns.
func NewSpectralEntropy(period int) *SpectralEntropy {
	return &SpectralEntropy{period: period, source: SourceClose}
}

// Calculate calculates the normalized spectral entropy for the last bar of
// the window.
func (se *SpectralEntropy) Calculate(data []types.Bar) (float64, error) {
	if len(data) < se.period+1 {
		return 0, errors.New("insufficient data for spectral entropy calculation")
	}

	// Bar-to-bar returns over the last 'period' intervals.
	prices := extract(data[len(data)-se.period-1:], se.source)
	returns := make([]float64, se.period)
	for i := 0; i < se.period; i++ {
		returns[i] = prices[i+1] - prices[i]
	}

	spectrum := powerSpectrum(returns)

	total := 0.0
	for _, p := range spectrum {
		total += p
	}
	if total == 0 {
		// A perfectly flat window carries no spectral information;
		// report maximum randomness so the structure gate stays closed.
		return 1.0, nil
	}

	// Shannon entropy of the normalized spectrum.
	entropy := 0.0
	for _, p := range spectrum {
		if p <= 0 {
			continue
		}
		prob := p / total
		entropy -= prob * math.Log(prob)
	}

	maxEntropy := math.Log(float64(len(spectrum)))
	if maxEntropy == 0 {
		return 0, nil
	}
	return entropy / maxEntropy, nil
}

// GetName returns the indicator name.
func (se *SpectralEntropy) GetName() string {
	return "SpectralEntropy"
}

// GetRequiredPeriods returns the minimum number of bars needed.
func (se *SpectralEntropy) GetRequiredPeriods() int {
	return se.period + 1
}

// powerSpectrum returns the squared DFT magnitudes for the positive,
// non-DC frequency bins. Windows are short enough that the direct
// transform is cheaper than maintaining an FFT plan.
func powerSpectrum(x []float64) []float64 {
	n := len(x)
	bins := n / 2
	out := make([]float64, 0, bins)

	for k := 1; k <= bins; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := -2.0 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x[t] * math.Cos(angle)
			im += x[t] * math.Sin(angle)
		}
		out = append(out, re*re+im*im)
	}

	return out
}
