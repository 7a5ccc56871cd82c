package types

import "strings"

// InstrumentClass determines which position-sizing formula applies.
type InstrumentClass int

const (
	// ClassStandard covers pairs quoted in the account currency
	// (EURUSD, GBPUSD, AUDUSD, ...).
	ClassStandard InstrumentClass = iota

	// ClassJPY covers yen-quoted pairs, which need the quote-rate
	// correction described in sizing.
	ClassJPY

	// ClassETF covers exchange-traded instruments sized in shares and
	// capped by a margin constraint.
	ClassETF
)

func (c InstrumentClass) String() string {
	switch c {
	case ClassStandard:
		return "STANDARD"
	case ClassJPY:
		return "JPY"
	case ClassETF:
		return "ETF"
	default:
		return "UNKNOWN"
	}
}

// etfSymbols are the exchange-traded instruments the system trades.
var etfSymbols = map[string]bool{
	"DIA": true, "TLT": true, "GLD": true, "SPY": true, "QQQ": true,
	"IWM": true, "XLE": true, "EWZ": true, "XLU": true, "SLV": true,
}

// ClassifySymbol derives the instrument class from a symbol name.
// Known ETF tickers map to ClassETF, anything quoted in yen to ClassJPY,
// everything else to ClassStandard.
func ClassifySymbol(symbol string) InstrumentClass {
	upper := strings.ToUpper(symbol)
	if etfSymbols[upper] {
		return ClassETF
	}
	if strings.HasSuffix(upper, "JPY") {
		return ClassJPY
	}
	return ClassStandard
}

// Instrument carries the per-symbol constants the sizer and the exit
// accounting need.
type Instrument struct {
	Symbol         string          `json:"symbol"`
	Class          InstrumentClass `json:"-"`
	PipSize        float64         `json:"pip_size"`        // minimum quoted increment (0.0001, 0.01 for JPY)
	ContractSize   float64         `json:"contract_size"`   // units per lot (100000 for FX)
	MarginFraction float64         `json:"margin_fraction"` // collateral fraction for ETFs (0.2 = 20%)
	QuoteRate      float64         `json:"quote_rate"`      // account-currency rate of the quote currency (JPY pairs)
}

// DefaultPipSize returns the conventional pip size for the instrument class.
func DefaultPipSize(class InstrumentClass) float64 {
	if class == ClassJPY {
		return 0.01
	}
	return 0.0001
}
