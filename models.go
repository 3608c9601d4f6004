package match

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// ParseSide converts a wire-level side tag into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
}

type OrderKind string

const (
	Market OrderKind = "market"
	Limit  OrderKind = "limit"
	IOC    OrderKind = "ioc" // Immediate Or Cancel
	FOK    OrderKind = "fok" // Fill Or Kill
)

// ParseOrderKind converts a wire-level order type tag into an OrderKind.
func ParseOrderKind(s string) (OrderKind, error) {
	switch OrderKind(s) {
	case Market, Limit, IOC, FOK:
		return OrderKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, s)
}

// Priced reports whether the kind carries a limit price.
func (k OrderKind) Priced() bool {
	return k == Limit || k == IOC || k == FOK
}

// Order is the state of an order inside a book. Identity fields are
// immutable after submission; only Remaining is mutated, and only by the
// matching loop.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Kind      OrderKind       `json:"kind"`
	Price     decimal.Decimal `json:"price"` // zero for market orders
	Remaining decimal.Decimal `json:"remaining"`
	Sequence  uint64          `json:"sequence"`  // arrival order, breaks ties within a price level
	Timestamp int64           `json:"timestamp"` // Unix nano, creation time

	// Intrusive FIFO list pointers within a price level (ignored by JSON).
	next *Order
	prev *Order
}

// Execution is one fill between an incoming taker order and a resting
// maker order. The maker defines the trade price.
type Execution struct {
	TradeID      uint64          `json:"trade_id"`
	Symbol       string          `json:"symbol"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	TakerSide    Side            `json:"taker_side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

type EventType string

const (
	EventOpen   EventType = "open"   // a resting order entered the book
	EventMatch  EventType = "match"  // resting liquidity was consumed
	EventCancel EventType = "cancel" // a resting order was removed
)

// BookEvent describes one state change of a book. Sequence is per symbol,
// strictly increasing with no gaps, so downstream consumers can rebuild
// depth and detect lost events.
type BookEvent struct {
	Sequence uint64          `json:"sequence"`
	Type     EventType       `json:"type"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"` // taker side for match events
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"size"`
	OrderID  string          `json:"order_id"`
}

// DepthChange is the side/price/size delta a BookEvent causes.
type DepthChange struct {
	Side     Side
	Price    decimal.Decimal
	SizeDiff decimal.Decimal
}

type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"` // aggregate resting quantity at this price
}

// Depth is a top-N snapshot of both sides, best price first.
type Depth struct {
	Symbol   string       `json:"symbol"`
	UpdateID uint64       `json:"update_id"`
	Bids     []*DepthItem `json:"bids"`
	Asks     []*DepthItem `json:"asks"`
}

// BBO is the best bid and offer. A nil side means no resting liquidity.
type BBO struct {
	Bid *decimal.Decimal `json:"bid"`
	Ask *decimal.Decimal `json:"ask"`
}

// PlaceOrderCommand is the input for submitting an order. Price must be
// set for limit/ioc/fok orders and must be zero for market orders.
type PlaceOrderCommand struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Kind     OrderKind       `json:"kind"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SubmitResult reports the outcome of a submission: the generated order
// id, every execution it produced, whether a residual rested, and the
// quantity left unfilled (zero for a fully filled order, the discarded
// remainder for market/IOC, the full quantity for a killed FOK).
type SubmitResult struct {
	OrderID    string          `json:"order_id"`
	Executions []*Execution    `json:"executions"`
	Resting    bool            `json:"resting"`
	Remaining  decimal.Decimal `json:"remaining"`
}
