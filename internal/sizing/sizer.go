// Package sizing converts a per-trade risk budget into an order size,
// with instrument-class specific corrections so the same risk fraction
// means the same account-currency risk across standard pairs, yen-quoted
// pairs and exchange-traded instruments.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

var (
	// ErrNonPositiveRisk means the stop sits at or above the entry, so
	// the price risk per unit is not positive.
	ErrNonPositiveRisk = errors.New("non-positive price risk: stop must be below entry")

	// ErrBelowFloor means the risk budget buys less than the instrument's
	// minimum order size. The entry is aborted rather than rounded up,
	// since rounding up changes the realized risk.
	ErrBelowFloor = errors.New("computed size below instrument floor")

	// ErrInvalidRequest covers non-positive equity or risk fraction.
	ErrInvalidRequest = errors.New("invalid sizing request")
)

// Request carries everything one sizing decision needs. Sizing is a pure
// function of the request; the sizer holds no state.
type Request struct {
	Equity       float64
	RiskFraction float64
	EntryPrice   float64
	StopPrice    float64
	Instrument   types.Instrument
}

// Result is a computed order size.
type Result struct {
	// Size in base units (FX) or shares (ETF).
	Size float64

	// Clamped is set when the margin cap, not the risk budget, decided
	// the size.
	Clamped     bool
	ClampReason string

	// CorrectionFactor is the multiplier that converts the raw simulated
	// P&L of this position into account currency. Sizing divides by it,
	// reporting multiplies by it; for non-yen instruments it is 1.
	CorrectionFactor float64
}

// minJPYUnits is the smallest yen-pair order the broker accepts after the
// quote-rate correction.
const minJPYUnits = 100

// Calculate sizes one entry. It rejects rather than rounds: a request
// whose budget or floor cannot be honored returns an error and no order
// should be sent.
func Calculate(req Request) (Result, error) {
	if req.Equity <= 0 || req.RiskFraction <= 0 {
		return Result{}, fmt.Errorf("%w: equity=%.2f risk_fraction=%.4f", ErrInvalidRequest, req.Equity, req.RiskFraction)
	}
	if req.EntryPrice <= 0 {
		return Result{}, fmt.Errorf("%w: entry_price=%.5f", ErrInvalidRequest, req.EntryPrice)
	}

	priceRisk := req.EntryPrice - req.StopPrice
	if priceRisk <= 0 {
		return Result{}, fmt.Errorf("%w: entry=%.5f stop=%.5f", ErrNonPositiveRisk, req.EntryPrice, req.StopPrice)
	}

	switch req.Instrument.Class {
	case types.ClassJPY:
		return sizeJPY(req, priceRisk)
	case types.ClassETF:
		return sizeETF(req, priceRisk)
	default:
		return sizeStandard(req, priceRisk)
	}
}

// sizeStandard handles pairs quoted directly in the account currency.
// The price risk per unit is already an account-currency amount, so the
// size is the risk budget divided by the per-contract risk, in whole
// contracts.
func sizeStandard(req Request, priceRisk float64) (Result, error) {
	lot := req.Instrument.ContractSize
	if lot <= 0 {
		return Result{}, fmt.Errorf("%w: contract_size=%.0f", ErrInvalidRequest, lot)
	}

	riskAmount := req.Equity * req.RiskFraction
	riskPerContract := priceRisk * lot

	contracts := math.Floor(riskAmount / riskPerContract)
	if contracts < 1 {
		return Result{}, fmt.Errorf("%w: budget %.2f buys %.2f contracts", ErrBelowFloor, riskAmount, riskAmount/riskPerContract)
	}

	return Result{
		Size:             contracts * lot,
		CorrectionFactor: 1,
	}, nil
}

// sizeJPY handles yen-quoted pairs. The budget is converted to pip terms
// and back to lots, then the nominal unit count is divided by the quote
// rate. The simulated broker prices yen pairs as if quoted in account
// currency, so an uncorrected nominal size would carry roughly a
// quote-rate multiple of the intended exposure. The same factor is
// returned so P&L reporting can multiply it back in.
func sizeJPY(req Request, priceRisk float64) (Result, error) {
	inst := req.Instrument
	pip := inst.PipSize
	if pip <= 0 {
		pip = types.DefaultPipSize(types.ClassJPY)
	}
	if inst.ContractSize <= 0 || inst.QuoteRate <= 0 {
		return Result{}, fmt.Errorf("%w: contract_size=%.0f quote_rate=%.2f", ErrInvalidRequest, inst.ContractSize, inst.QuoteRate)
	}

	riskAmount := req.Equity * req.RiskFraction

	pipRisk := priceRisk / pip
	pipValuePerLot := inst.ContractSize * pip
	valuePerPip := pipValuePerLot / req.EntryPrice

	lots := riskAmount / (pipRisk * valuePerPip)
	lots = math.Max(0.01, math.Round(lots*100)/100)

	nominalUnits := math.Floor(lots * inst.ContractSize)
	corrected := math.Floor(nominalUnits / inst.QuoteRate)
	if corrected < minJPYUnits {
		return Result{}, fmt.Errorf("%w: %d units after quote-rate correction (floor %d)", ErrBelowFloor, int(corrected), minJPYUnits)
	}

	return Result{
		Size:             corrected,
		CorrectionFactor: inst.QuoteRate,
	}, nil
}

// sizeETF handles exchange-traded instruments sized in whole shares.
// Risk-based size is capped by the margin constraint
// equity / (entry * margin_fraction); the smaller of the two wins.
func sizeETF(req Request, priceRisk float64) (Result, error) {
	margin := req.Instrument.MarginFraction
	if margin <= 0 {
		return Result{}, fmt.Errorf("%w: margin_fraction=%.2f", ErrInvalidRequest, margin)
	}

	riskAmount := req.Equity * req.RiskFraction
	shares := riskAmount / priceRisk
	maxShares := req.Equity / (req.EntryPrice * margin)

	res := Result{CorrectionFactor: 1}
	if shares > maxShares {
		shares = maxShares
		res.Clamped = true
		res.ClampReason = fmt.Sprintf("margin cap %.0f shares at %.0f%% margin", maxShares, margin*100)
	}

	shares = math.Floor(shares)
	if shares < 1 {
		return Result{}, fmt.Errorf("%w: %.2f shares", ErrBelowFloor, shares)
	}
	res.Size = shares
	return res, nil
}

// ReportedPnL converts a raw position P&L into account currency using the
// correction factor recorded at sizing time. The correction is symmetric
// with sizing: sizing divided the unit count, reporting multiplies the
// raw P&L.
func ReportedPnL(rawPnL, correctionFactor float64) float64 {
	if correctionFactor == 0 {
		return rawPnL
	}
	return rawPnL * correctionFactor
}
