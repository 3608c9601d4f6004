package match

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// MatchingEngine is the sole entry point for submitting, cancelling and
// querying orders. It routes every operation to the symbol's OrderBook,
// creating books lazily on first reference; books live for the process
// lifetime and are never removed.
type MatchingEngine struct {
	books  sync.Map // symbol -> *OrderBook
	seq    atomic.Uint64
	trades PublishTrade
	events EventPublisher
}

// NewMatchingEngine creates a new engine. Executions go to trades and
// book state changes to events; either may be nil to discard.
func NewMatchingEngine(trades PublishTrade, events EventPublisher) *MatchingEngine {
	if trades == nil {
		trades = NewDiscardPublishTrade()
	}
	if events == nil {
		events = NewDiscardEventPublisher()
	}

	return &MatchingEngine{
		trades: trades,
		events: events,
	}
}

// SubmitOrder validates the command, constructs the order with a fresh id
// and arrival sequence, and runs it against the symbol's book. It returns
// the executions produced plus the order's final disposition. Validation
// failures are reported before any book state is touched.
func (engine *MatchingEngine) SubmitOrder(cmd *PlaceOrderCommand) (*SubmitResult, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}

	order := &Order{
		ID:        xid.New().String(),
		Symbol:    cmd.Symbol,
		Side:      cmd.Side,
		Kind:      cmd.Kind,
		Price:     cmd.Price,
		Remaining: cmd.Quantity,
		Sequence:  engine.seq.Add(1),
		Timestamp: time.Now().UnixNano(),
	}

	book := engine.orderBook(cmd.Symbol)
	execs := book.AddOrder(order)

	if len(execs) > 0 {
		engine.trades.PublishTrades(execs...)
	}

	return &SubmitResult{
		OrderID:    order.ID,
		Executions: execs,
		Resting:    order.Kind == Limit && order.Remaining.IsPositive(),
		Remaining:  order.Remaining,
	}, nil
}

// CancelOrder removes a resting order. It returns false when the symbol
// has no book or the id is not resting there; cancelling an unknown
// order is a negative result, not an error.
func (engine *MatchingEngine) CancelOrder(symbol string, orderID string) bool {
	value, found := engine.books.Load(symbol)
	if !found {
		return false
	}

	book, _ := value.(*OrderBook)
	return book.Cancel(orderID)
}

// GetBBO returns the best bid and offer for the symbol. A symbol that has
// never been referenced has both sides absent.
func (engine *MatchingEngine) GetBBO(symbol string) BBO {
	value, found := engine.books.Load(symbol)
	if !found {
		return BBO{}
	}

	book, _ := value.(*OrderBook)
	return book.BBO()
}

// GetDepth returns up to levels price levels per side with aggregate
// resting quantity, best price first.
func (engine *MatchingEngine) GetDepth(symbol string, levels int) *Depth {
	value, found := engine.books.Load(symbol)
	if !found {
		return &Depth{Symbol: symbol, Bids: []*DepthItem{}, Asks: []*DepthItem{}}
	}

	book, _ := value.(*OrderBook)
	return book.Depth(levels)
}

// orderBook returns the book for the symbol, creating and registering it
// on first reference. Lookups run lock-free; a concurrent first reference
// is resolved by LoadOrStore, so exactly one book per symbol survives.
func (engine *MatchingEngine) orderBook(symbol string) *OrderBook {
	if value, found := engine.books.Load(symbol); found {
		book, _ := value.(*OrderBook)
		return book
	}

	value, loaded := engine.books.LoadOrStore(symbol, NewOrderBook(symbol, engine.events))
	if !loaded {
		logger.Info("order book created", "symbol", symbol)
	}

	book, _ := value.(*OrderBook)
	return book
}

func validate(cmd *PlaceOrderCommand) error {
	if cmd == nil {
		return fmt.Errorf("%w: missing command", ErrInvalidOrder)
	}

	if len(cmd.Symbol) == 0 {
		return fmt.Errorf("%w: missing symbol", ErrInvalidOrder)
	}

	if cmd.Side != Buy && cmd.Side != Sell {
		return fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	}

	if !cmd.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}

	switch cmd.Kind {
	case Limit, IOC, FOK:
		if !cmd.Price.IsPositive() {
			return fmt.Errorf("%w: %s order requires a positive limit price", ErrInvalidOrder, cmd.Kind)
		}
	case Market:
		if !cmd.Price.IsZero() {
			return fmt.Errorf("%w: market order must not carry a limit price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, cmd.Kind)
	}

	return nil
}
