package types

import "time"

// OrderSide is the direction of an order.
type OrderSide int

const (
	OrderBuy OrderSide = iota
	OrderSell
)

func (s OrderSide) String() string {
	if s == OrderBuy {
		return "BUY"
	}
	return "SELL"
}

// OrderType distinguishes market, stop and limit orders.
type OrderType int

const (
	OrderMarket OrderType = iota
	OrderStop
	OrderLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderMarket:
		return "MARKET"
	case OrderStop:
		return "STOP"
	case OrderLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Order is a single order intent handed to the execution gateway.
// Orders sharing a non-empty OCAGroup are linked: a fill of one cancels
// the others. The linkage itself is the gateway's responsibility.
type Order struct {
	ID       string
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Size     float64
	Price    float64 // trigger/limit price; unused for market orders
	OCAGroup string
}

// Fill reports an executed order back from the gateway.
type Fill struct {
	OrderID   string
	Symbol    string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// ExitReason records how a position was closed.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitStopLoss
	ExitTakeProfit
	ExitEarlyReversal
)

func (r ExitReason) String() string {
	switch r {
	case ExitStopLoss:
		return "STOP_LOSS"
	case ExitTakeProfit:
		return "TAKE_PROFIT"
	case ExitEarlyReversal:
		return "EARLY_REVERSAL"
	default:
		return "NONE"
	}
}

// Position is the single open trade a strategy instance may hold.
// At most one Position exists per instance at any time.
type Position struct {
	Symbol     string
	EntryPrice float64
	Size       float64
	StopPrice  float64
	TakePrice  float64
	OpenedAt   time.Time

	// Populated when the position closes.
	ExitPrice  float64
	ClosedAt   time.Time
	ExitReason ExitReason
}
