package detect

import (
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Structure detects ordered price action: a spectral-entropy reading at or
// below the threshold marks the window as structured rather than noise,
// and price holding above the adaptive baseline marks the structure as
// bullish.
type Structure struct {
	EntropyMax float64 // inclusive; "at most" threshold
}

// Name identifies the detector in logs and reports.
func (d *Structure) Name() string {
	return "structure"
}

// Detect reports a structured bullish window on the current bar.
func (d *Structure) Detect(window []types.Bar, snap indicators.Snapshot) Signal {
	if len(window) == 0 || !snap.Ready {
		return Signal{}
	}
	if snap.Entropy > d.EntropyMax {
		return Signal{}
	}
	curr := window[len(window)-1]
	if curr.Close <= snap.Kama {
		return Signal{}
	}
	return Signal{
		Present:       true,
		ReferenceHigh: curr.High,
		ReferenceLow:  curr.Low,
		Metadata: map[string]float64{
			MetaEntropy: snap.Entropy,
			MetaATR:     snap.ATR,
		},
	}
}
