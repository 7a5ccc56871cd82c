package indicators

import "github.com/ducminhle1904/forex-phase-bot/pkg/types"

// Source extracts the price an indicator operates on from a bar.
type Source func(types.Bar) float64

// SourceClose feeds indicators with the bar close.
func SourceClose(b types.Bar) float64 {
	return b.Close
}

// SourceHL2 feeds indicators with the bar median price.
// The engulfing/adaptive-average variants run their trend stack on HL2.
func SourceHL2(b types.Bar) float64 {
	return b.HL2()
}

func extract(data []types.Bar, src Source) []float64 {
	out := make([]float64, len(data))
	for i, b := range data {
		out[i] = src(b)
	}
	return out
}
