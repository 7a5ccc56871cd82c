// Package backtest replays historical bars through a strategy instance
// under the same bar-at-a-time contract the live runner uses. Replay is
// single threaded and fully deterministic: the same bars and the same
// configuration always produce the same transition journal and trades.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/sizing"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Config assembles one replay run.
type Config struct {
	InitialBalance float64
	Instrument     types.Instrument
	RiskFraction   float64
	Variant        strategy.Variant
	Indicators     indicators.Config
	Logger         zerolog.Logger
}

// Result summarizes a completed replay.
type Result struct {
	InitialBalance float64
	FinalBalance   float64
	BarsProcessed  int
	WarmupBars     int

	Trades      []strategy.Trade
	Transitions []strategy.Transition

	TotalTrades int
	Wins        int
	Losses      int
	TotalPnL    float64
}

// Engine drives one (instrument, variant) pair over a bar series.
type Engine struct {
	cfg     Config
	broker  *SimBroker
	ind     *indicators.Engine
	machine *strategy.Machine

	balance       float64
	appliedTrades int
}

// NewEngine wires broker, indicator engine and state machine together.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", cfg.InitialBalance)
	}

	ind, err := indicators.NewEngine(cfg.Indicators)
	if err != nil {
		return nil, fmt.Errorf("indicator engine: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		broker:  NewSimBroker(),
		ind:     ind,
		balance: cfg.InitialBalance,
	}

	machine, err := strategy.NewMachine(strategy.Config{
		Variant:      cfg.Variant,
		Instrument:   cfg.Instrument,
		RiskFraction: cfg.RiskFraction,
		Equity:       func() float64 { return e.balance },
		Exec:         e.broker,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("state machine: %w", err)
	}
	e.machine = machine
	return e, nil
}

// Run replays the bar series to completion. Bars must be in timestamp
// order; an out-of-order or malformed bar aborts the run.
func (e *Engine) Run(ctx context.Context, bars []types.Bar) (*Result, error) {
	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		e.broker.SetBar(i, bar)

		// Pending exits are matched against the bar before the machine
		// sees it, mirroring a venue that triggers resting orders on
		// traded prices.
		if fill, ok := e.broker.EvaluateExits(i, bar); ok {
			e.machine.OnExitFill(fill)
		}

		snap, err := e.ind.Update(bar)
		if err != nil {
			return nil, fmt.Errorf("bar %d at %s: %w", i, bar.Timestamp, err)
		}

		if err := e.machine.OnBar(ctx, i, e.ind.Window(), snap); err != nil {
			return nil, fmt.Errorf("bar %d at %s: %w", i, bar.Timestamp, err)
		}

		e.settleNewTrades()
	}

	return e.result(len(bars)), nil
}

// settleNewTrades applies the P&L of trades closed this bar, with the
// instrument-class correction recorded at sizing time.
func (e *Engine) settleNewTrades() {
	trades := e.machine.Trades()
	for ; e.appliedTrades < len(trades); e.appliedTrades++ {
		t := trades[e.appliedTrades]
		raw := (t.Position.ExitPrice - t.Position.EntryPrice) * t.Position.Size
		e.balance += sizing.ReportedPnL(raw, t.Correction)
	}
}

func (e *Engine) result(barsProcessed int) *Result {
	res := &Result{
		InitialBalance: e.cfg.InitialBalance,
		FinalBalance:   e.balance,
		BarsProcessed:  barsProcessed,
		WarmupBars:     e.ind.WarmupBars(),
		Trades:         e.machine.Trades(),
		Transitions:    e.machine.Journal(),
		TotalTrades:    len(e.machine.Trades()),
		TotalPnL:       e.balance - e.cfg.InitialBalance,
	}
	for _, t := range res.Trades {
		raw := (t.Position.ExitPrice - t.Position.EntryPrice) * t.Position.Size
		if sizing.ReportedPnL(raw, t.Correction) > 0 {
			res.Wins++
		} else {
			res.Losses++
		}
	}
	return res
}

// Balance returns the running account value; sizing reads it mid-replay.
func (e *Engine) Balance() float64 {
	return e.balance
}
