// Package data loads historical bar series for replay.
package data

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Provider loads a complete historical bar series from a source path.
type Provider interface {
	// LoadData loads bars from the specified source
	LoadData(source string) ([]types.Bar, error)

	// ValidateData validates the integrity of the loaded series
	ValidateData(bars []types.Bar) error

	// GetName returns the name of the provider
	GetName() string
}

// ValidateSequence checks that the series is strictly ordered by
// timestamp and each bar is internally consistent. Replay feeds bars to
// the engine in this order, so a broken sequence here would mean silent
// lookahead later.
func ValidateSequence(bars []types.Bar) error {
	var prev time.Time
	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return fmt.Errorf("bar %d has no timestamp", i)
		}
		if i > 0 && !b.Timestamp.After(prev) {
			return fmt.Errorf("bar %d out of order: %s not after %s", i, b.Timestamp, prev)
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d at %s: high %.5f below low %.5f", i, b.Timestamp, b.High, b.Low)
		}
		if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
			return fmt.Errorf("bar %d at %s: open/close outside high-low range", i, b.Timestamp)
		}
		prev = b.Timestamp
	}
	return nil
}

// FilterByDateRange returns the bars inside [start, end]. A zero start or
// end leaves that side unbounded.
func FilterByDateRange(bars []types.Bar, start, end time.Time) []types.Bar {
	out := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
