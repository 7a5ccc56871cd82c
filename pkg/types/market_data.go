package types

import "time"

// Bar is one OHLCV sample for a fixed time interval.
// Bars are immutable once produced and are always delivered fully formed,
// ordered by timestamp.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bullish reports whether the bar closed strictly above its open.
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// Bearish reports whether the bar closed strictly below its open.
func (b Bar) Bearish() bool {
	return b.Close < b.Open
}

// HL2 returns the bar's median price.
func (b Bar) HL2() float64 {
	return (b.High + b.Low) / 2.0
}

// Range returns the full high-low extent of the bar.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open-close extent of the bar.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}
