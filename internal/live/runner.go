package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/backtest"
	"github.com/ducminhle1904/forex-phase-bot/internal/gateway"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/monitoring"
	"github.com/ducminhle1904/forex-phase-bot/internal/sizing"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
	"github.com/ducminhle1904/forex-phase-bot/internal/tradelog"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// RunnerConfig wires one live strategy instance.
type RunnerConfig struct {
	Instrument     types.Instrument
	Variant        strategy.Variant
	Indicators     indicators.Config
	InitialBalance float64
	RiskFraction   float64

	Feed     gateway.MarketGateway
	Health   *monitoring.HealthChecker
	TradeLog *tradelog.Logger
	Logger   zerolog.Logger
}

// Runner drives one machine from a live bar stream, paper-filling its
// orders at stream prices. It is single threaded: the only blocking
// point is waiting for the next bar, so a shutdown signal always lets
// the bar in flight finish before the runner stops. An armed exit pair
// is never left half submitted.
type Runner struct {
	cfg     RunnerConfig
	log     zerolog.Logger
	ind     *indicators.Engine
	broker  *backtest.SimBroker
	machine *strategy.Machine

	balance       float64
	barIndex      int
	lastBarTime   time.Time
	appliedTrades int
	loggedTrans   int
	wasFlat       bool
}

// NewRunner assembles a runner around a paper broker.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Feed == nil {
		return nil, errors.New("runner needs a market feed")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", cfg.InitialBalance)
	}

	ind, err := indicators.NewEngine(cfg.Indicators)
	if err != nil {
		return nil, fmt.Errorf("indicator engine: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("symbol", cfg.Instrument.Symbol).Str("variant", cfg.Variant.Name).Logger(),
		ind:     ind,
		broker:  backtest.NewSimBroker(),
		balance: cfg.InitialBalance,
		wasFlat: true,
	}

	machine, err := strategy.NewMachine(strategy.Config{
		Variant:      cfg.Variant,
		Instrument:   cfg.Instrument,
		RiskFraction: cfg.RiskFraction,
		Equity:       func() float64 { return r.balance },
		Exec:         r.broker,
		Logger:       r.log,
	})
	if err != nil {
		return nil, err
	}
	r.machine = machine
	return r, nil
}

// Run consumes bars until the context is cancelled or the feed ends.
// Cancellation is only observed between bars; the current bar is always
// processed to completion first.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().
		Float64("balance", r.balance).
		Int("warmup_bars", r.ind.WarmupBars()).
		Msg("📊 Runner started")

	for {
		bar, ok, err := r.cfg.Feed.Next(ctx, r.cfg.Instrument.Symbol)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.log.Info().Msg("✅ Runner stopped")
				return nil
			}
			monitoring.RecordError("feed")
			return fmt.Errorf("feed: %w", err)
		}
		if !ok {
			r.log.Info().Msg("✅ Feed ended, runner stopped")
			return nil
		}

		// A reconnect can replay the bar the venue already delivered.
		// Stale bars are dropped here; they must not take the runner
		// down.
		if !r.lastBarTime.IsZero() && !bar.Timestamp.After(r.lastBarTime) {
			r.log.Warn().Time("bar_time", bar.Timestamp).Msg("⚠️ Skipping stale bar from feed")
			monitoring.RecordError("feed_stale")
			continue
		}

		if err := r.processBar(ctx, bar); err != nil {
			monitoring.RecordError("strategy")
			return err
		}
		r.lastBarTime = bar.Timestamp
	}
}

// processBar runs the same per-bar sequence the replay engine uses:
// resting exits first, then indicators, then the machine.
func (r *Runner) processBar(ctx context.Context, bar types.Bar) error {
	symbol := r.cfg.Instrument.Symbol

	r.broker.SetBar(r.barIndex, bar)
	if fill, hit := r.broker.EvaluateExits(r.barIndex, bar); hit {
		r.machine.OnExitFill(fill)
	}

	snap, err := r.ind.Update(bar)
	if err != nil {
		return fmt.Errorf("bar %d at %s: %w", r.barIndex, bar.Timestamp, err)
	}

	if err := r.machine.OnBar(ctx, r.barIndex, r.ind.Window(), snap); err != nil {
		return fmt.Errorf("bar %d at %s: %w", r.barIndex, bar.Timestamp, err)
	}

	monitoring.RecordBar(symbol, bar.Close)
	if r.cfg.Health != nil {
		r.cfg.Health.RecordBar(bar.Timestamp, bar.Close)
	}

	r.publishTransitions()
	r.settleTrades()

	if pos := r.machine.Position(); pos != nil && r.wasFlat {
		r.wasFlat = false
		if r.cfg.TradeLog != nil {
			trade := strategy.Trade{Position: *pos, Correction: r.machine.Correction()}
			r.cfg.TradeLog.Entry(symbol, r.cfg.Variant.Name, trade, snap)
		}
	}

	r.barIndex++
	return nil
}

func (r *Runner) publishTransitions() {
	journal := r.machine.Journal()
	for ; r.loggedTrans < len(journal); r.loggedTrans++ {
		tr := journal[r.loggedTrans]
		monitoring.RecordTransition(r.cfg.Instrument.Symbol, r.cfg.Variant.Name, tr.To.String(), float64(tr.To))
		if r.cfg.TradeLog != nil {
			r.cfg.TradeLog.Transition(r.cfg.Instrument.Symbol, r.cfg.Variant.Name, tr)
		}
	}
}

func (r *Runner) settleTrades() {
	trades := r.machine.Trades()
	for ; r.appliedTrades < len(trades); r.appliedTrades++ {
		t := trades[r.appliedTrades]
		raw := (t.Position.ExitPrice - t.Position.EntryPrice) * t.Position.Size
		pnl := sizing.ReportedPnL(raw, t.Correction)
		r.balance += pnl
		r.wasFlat = true

		monitoring.RecordTrade(r.cfg.Instrument.Symbol, r.cfg.Variant.Name, t.Position.ExitReason.String(), pnl)
		if r.cfg.TradeLog != nil {
			r.cfg.TradeLog.Exit(r.cfg.Instrument.Symbol, r.cfg.Variant.Name, t)
		}

		if pnl >= 0 {
			r.log.Info().Float64("pnl", pnl).Float64("balance", r.balance).Msg("💰 Trade closed")
		} else {
			r.log.Info().Float64("pnl", pnl).Float64("balance", r.balance).Msg("❌ Trade closed")
		}
	}
}

// Balance returns the running paper account value.
func (r *Runner) Balance() float64 {
	return r.balance
}

// Supervisor runs a set of runners to completion and stops them all
// when any one fails.
type Supervisor struct {
	runners []*Runner
	log     zerolog.Logger
}

// NewSupervisor groups runners under one lifecycle.
func NewSupervisor(runners []*Runner, logger zerolog.Logger) *Supervisor {
	return &Supervisor{runners: runners, log: logger}
}

// Run starts every runner and blocks until all have stopped. The first
// runner error cancels the rest; each still finishes its current bar.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(s.runners))

	for _, r := range s.runners {
		wg.Add(1)
		go func(r *Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				s.log.Error().Err(err).Msg("❌ Runner failed")
				errCh <- err
				cancel()
			}
		}(r)
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}
