// Package gateway defines the boundary between the trading core and the
// outside world: where bars come from and where orders go. The core only
// ever sees these interfaces; historical replay and live trading plug in
// different implementations.
package gateway

import (
	"context"
	"errors"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// ErrOrderRejected is returned when the venue refuses an order. The core
// treats a rejected entry as a missed window and a rejected exit as fatal.
var ErrOrderRejected = errors.New("order rejected by gateway")

// MarketGateway delivers fully formed, closed bars in timestamp order.
// Partial or in-progress bars are never delivered.
type MarketGateway interface {
	// Next blocks for the next closed bar of the symbol's stream. A nil
	// error and ok=false means the stream ended cleanly.
	Next(ctx context.Context, symbol string) (bar types.Bar, ok bool, err error)
}

// ExecutionGateway accepts order intents and reports fills. OCA linkage
// between a stop and a take-profit order is the gateway's contract: a
// fill of either cancels the other.
type ExecutionGateway interface {
	// SubmitEntry places a market entry order and returns its fill.
	SubmitEntry(ctx context.Context, order types.Order) (types.Fill, error)

	// SubmitOCAPair places a linked stop/limit exit pair and returns the
	// two order IDs. The pair shares one OCA group.
	SubmitOCAPair(ctx context.Context, stop, take types.Order) (stopID, takeID string, err error)

	// Cancel withdraws a pending order by ID. Cancelling one member of
	// an OCA pair cancels the whole group.
	Cancel(ctx context.Context, orderID string) error

	// CloseMarket flattens an open position at market.
	CloseMarket(ctx context.Context, symbol string, size float64) (types.Fill, error)
}
