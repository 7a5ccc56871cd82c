package backtest

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// SimBroker is the replay-side execution gateway. Market orders fill at
// the current bar's close; pending stop/limit exits are evaluated against
// each subsequent bar's range. OCA linkage is honored: a fill or cancel
// of either exit order clears both.
type SimBroker struct {
	nextID int

	barIndex int
	current  types.Bar

	entryBarIndex int
	openSize      float64
	openSymbol    string

	stopOrder *types.Order
	takeOrder *types.Order
	stopID    string
	takeID    string
}

// NewSimBroker builds an empty broker.
func NewSimBroker() *SimBroker {
	return &SimBroker{entryBarIndex: -1}
}

// SetBar must be called once per replayed bar before any evaluation or
// order submission for that bar.
func (b *SimBroker) SetBar(index int, bar types.Bar) {
	b.barIndex = index
	b.current = bar
}

// SubmitEntry fills a market entry at the current bar's close.
func (b *SimBroker) SubmitEntry(_ context.Context, order types.Order) (types.Fill, error) {
	if order.Size <= 0 {
		return types.Fill{}, fmt.Errorf("entry size must be positive, got %.2f", order.Size)
	}
	b.openSize = order.Size
	b.openSymbol = order.Symbol
	b.entryBarIndex = b.barIndex
	return types.Fill{
		OrderID:   b.id(),
		Symbol:    order.Symbol,
		Price:     b.current.Close,
		Size:      order.Size,
		Timestamp: b.current.Timestamp,
	}, nil
}

// SubmitOCAPair registers the protective stop/limit pair.
func (b *SimBroker) SubmitOCAPair(_ context.Context, stop, take types.Order) (string, string, error) {
	s, tk := stop, take
	b.stopOrder = &s
	b.takeOrder = &tk
	b.stopID = b.id()
	b.takeID = b.id()
	return b.stopID, b.takeID, nil
}

// Cancel withdraws a pending exit order; either ID tears down the pair.
func (b *SimBroker) Cancel(_ context.Context, orderID string) error {
	if orderID == b.stopID || orderID == b.takeID {
		b.clearPair()
		return nil
	}
	return fmt.Errorf("unknown order %s", orderID)
}

// CloseMarket flattens the open position at the current bar's close.
func (b *SimBroker) CloseMarket(_ context.Context, symbol string, size float64) (types.Fill, error) {
	fill := types.Fill{
		OrderID:   b.id(),
		Symbol:    symbol,
		Price:     b.current.Close,
		Size:      size,
		Timestamp: b.current.Timestamp,
	}
	b.flatten()
	return fill, nil
}

// EvaluateExits checks the pending exit pair against the bar's range.
// Exits never trigger on the entry bar itself; when both levels fall
// inside one bar the stop wins, the conservative assumption for a long
// position. The returned fill carries the order's own price.
func (b *SimBroker) EvaluateExits(index int, bar types.Bar) (types.Fill, bool) {
	if b.stopOrder == nil || index <= b.entryBarIndex {
		return types.Fill{}, false
	}

	if bar.Low <= b.stopOrder.Price {
		fill := types.Fill{
			OrderID:   b.stopID,
			Symbol:    b.stopOrder.Symbol,
			Price:     b.stopOrder.Price,
			Size:      b.stopOrder.Size,
			Timestamp: bar.Timestamp,
		}
		b.flatten()
		return fill, true
	}

	if bar.High >= b.takeOrder.Price {
		fill := types.Fill{
			OrderID:   b.takeID,
			Symbol:    b.takeOrder.Symbol,
			Price:     b.takeOrder.Price,
			Size:      b.takeOrder.Size,
			Timestamp: bar.Timestamp,
		}
		b.flatten()
		return fill, true
	}

	return types.Fill{}, false
}

// HasOpenPosition reports whether an entry has filled and not yet exited.
func (b *SimBroker) HasOpenPosition() bool {
	return b.openSize > 0
}

func (b *SimBroker) flatten() {
	b.openSize = 0
	b.openSymbol = ""
	b.entryBarIndex = -1
	b.clearPair()
}

func (b *SimBroker) clearPair() {
	b.stopOrder = nil
	b.takeOrder = nil
	b.stopID = ""
	b.takeID = ""
}

func (b *SimBroker) id() string {
	b.nextID++
	return fmt.Sprintf("sim-%d", b.nextID)
}
