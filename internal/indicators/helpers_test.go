package indicators

import (
	"math"
	"time"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// barAt builds a bar i five-minute intervals after the test start.
func barAt(i int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Timestamp: testStart.Add(time.Duration(i) * 5 * time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

// generateTrendBars produces a strictly rising series.
func generateTrendBars(count int) []types.Bar {
	bars := make([]types.Bar, count)
	for i := 0; i < count; i++ {
		base := 100.0 + float64(i)*0.5
		bars[i] = barAt(i, base, base+0.3, base-0.1, base+0.25)
	}
	return bars
}

// generateFlatBars produces a series with a constant close.
func generateFlatBars(count int) []types.Bar {
	bars := make([]types.Bar, count)
	for i := 0; i < count; i++ {
		bars[i] = barAt(i, 100.0, 100.2, 99.8, 100.0)
	}
	return bars
}

// generateSineBars produces a clean periodic series, dominated by a single
// frequency.
func generateSineBars(count int, period float64) []types.Bar {
	bars := make([]types.Bar, count)
	for i := 0; i < count; i++ {
		base := 100.0 + 2.0*math.Sin(2.0*math.Pi*float64(i)/period)
		bars[i] = barAt(i, base, base+0.2, base-0.2, base+0.05)
	}
	return bars
}

// generateNoiseBars produces a deterministic pseudo-random walk.
func generateNoiseBars(count int) []types.Bar {
	bars := make([]types.Bar, count)
	seed := uint64(42)
	price := 100.0
	for i := 0; i < count; i++ {
		// xorshift keeps the sequence reproducible without math/rand
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		step := (float64(seed%2000)/1000.0 - 1.0) * 0.4
		open := price
		price += step
		high := math.Max(open, price) + 0.1
		low := math.Min(open, price) - 0.1
		bars[i] = barAt(i, open, high, low, price)
	}
	return bars
}
