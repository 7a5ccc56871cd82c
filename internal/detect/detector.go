// Package detect holds the stateless setup predicates the phase machine
// consults while scanning. Detectors never mutate anything: the same
// window and snapshot always produce the same Signal.
package detect

import (
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Metadata keys reported by the built-in detectors.
const (
	MetaAngle     = "angle"
	MetaATR       = "atr"
	MetaCCI       = "cci"
	MetaER        = "er"
	MetaADXR      = "adxr"
	MetaEntropy   = "entropy"
	MetaKamaSlope = "kama_slope"
	MetaUpperBand = "upper_band"
	MetaLowerBand = "lower_band"
)

// Signal is the result of one detector evaluation against the bar that
// just closed.
type Signal struct {
	Present bool

	// ReferenceHigh/ReferenceLow are the pattern extremes the breakout
	// trigger and invalidation bound are built from.
	ReferenceHigh float64
	ReferenceLow  float64

	// Metadata carries the gate readings that qualified (or disqualified)
	// the setup, keyed by the Meta* constants.
	Metadata map[string]float64
}

// Detector is a pure predicate over the latest bars and their indicator
// snapshot.
type Detector interface {
	// Detect answers "does a qualifying setup exist right now?". Only
	// closed bars are visible; window[len(window)-1] is the bar the
	// snapshot was derived from.
	Detect(window []types.Bar, snap indicators.Snapshot) Signal

	// Name identifies the detector in logs and reports.
	Name() string
}
