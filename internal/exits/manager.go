// Package exits tracks the protective orders of an open position: the
// linked stop/take-profit pair and an optional indicator-driven early
// exit. It records how the position ultimately closed.
package exits

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/forex-phase-bot/internal/gateway"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// EarlyExit is an optional once-per-bar predicate evaluated while a
// position is open. Returning true closes the position at market.
type EarlyExit func(window []types.Bar, snap indicators.Snapshot) bool

// Manager owns the exit side of exactly one position at a time.
type Manager struct {
	exec gateway.ExecutionGateway

	position  *types.Position
	stopID    string
	takeID    string
	predicate EarlyExit
}

// NewManager builds an exit manager over the given execution gateway.
func NewManager(exec gateway.ExecutionGateway) *Manager {
	return &Manager{exec: exec}
}

// Active reports whether a position is currently being managed.
func (m *Manager) Active() bool {
	return m.position != nil
}

// Position returns the managed position, or nil when flat.
func (m *Manager) Position() *types.Position {
	return m.position
}

// Arm submits the OCA stop/take pair for a freshly opened position and
// begins managing it. A gateway rejection here is fatal for the caller:
// the position is open without protection and the error must escalate.
func (m *Manager) Arm(ctx context.Context, pos types.Position, early EarlyExit) error {
	if m.position != nil {
		return fmt.Errorf("exit manager already armed for %s", m.position.Symbol)
	}

	group := fmt.Sprintf("oca-%s-%d", pos.Symbol, pos.OpenedAt.Unix())
	stop := types.Order{
		Symbol:   pos.Symbol,
		Side:     types.OrderSell,
		Type:     types.OrderStop,
		Size:     pos.Size,
		Price:    pos.StopPrice,
		OCAGroup: group,
	}
	take := types.Order{
		Symbol:   pos.Symbol,
		Side:     types.OrderSell,
		Type:     types.OrderLimit,
		Size:     pos.Size,
		Price:    pos.TakePrice,
		OCAGroup: group,
	}

	stopID, takeID, err := m.exec.SubmitOCAPair(ctx, stop, take)
	if err != nil {
		return fmt.Errorf("submit exit pair for %s: %w", pos.Symbol, err)
	}

	m.position = &pos
	m.stopID = stopID
	m.takeID = takeID
	m.predicate = early
	return nil
}

// OnBar evaluates the early-exit predicate against the bar that just
// closed. When it fires, both pending exit orders are cancelled and the
// position is flattened at market. The closed position is returned with
// its exit reason set; nil means the position stays open.
func (m *Manager) OnBar(ctx context.Context, window []types.Bar, snap indicators.Snapshot) (*types.Position, error) {
	if m.position == nil || m.predicate == nil {
		return nil, nil
	}
	if !m.predicate(window, snap) {
		return nil, nil
	}

	// Cancelling either member tears down the whole OCA group.
	if err := m.exec.Cancel(ctx, m.stopID); err != nil {
		return nil, fmt.Errorf("cancel exit pair for %s: %w", m.position.Symbol, err)
	}
	fill, err := m.exec.CloseMarket(ctx, m.position.Symbol, m.position.Size)
	if err != nil {
		return nil, fmt.Errorf("market close for %s: %w", m.position.Symbol, err)
	}

	closed := *m.position
	closed.ExitPrice = fill.Price
	closed.ClosedAt = fill.Timestamp
	closed.ExitReason = types.ExitEarlyReversal
	m.release()
	return &closed, nil
}

// OnFill consumes a fill reported by the gateway. When it matches one of
// the managed exit orders the position is closed with the corresponding
// reason; fills for other orders are ignored.
func (m *Manager) OnFill(fill types.Fill) (*types.Position, bool) {
	if m.position == nil {
		return nil, false
	}

	var reason types.ExitReason
	switch fill.OrderID {
	case m.stopID:
		reason = types.ExitStopLoss
	case m.takeID:
		reason = types.ExitTakeProfit
	default:
		return nil, false
	}

	closed := *m.position
	closed.ExitPrice = fill.Price
	closed.ClosedAt = fill.Timestamp
	closed.ExitReason = reason
	m.release()
	return &closed, true
}

func (m *Manager) release() {
	m.position = nil
	m.stopID = ""
	m.takeID = ""
	m.predicate = nil
}
