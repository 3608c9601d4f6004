package match

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// OrderBook holds all resting liquidity for one symbol and owns its
// matching loop. Mutations are serialized by a per-book mutex, so books
// for different symbols run fully in parallel while a single book never
// interleaves two operations.
type OrderBook struct {
	symbol  string
	mu      sync.Mutex
	seqID   atomic.Uint64 // per-symbol BookEvent sequence
	tradeID atomic.Uint64
	bids    *queue
	asks    *queue
	events  EventPublisher
}

// NewOrderBook creates an empty book for the symbol. Events describing
// book state changes are delivered to the publisher in order.
func NewOrderBook(symbol string, events EventPublisher) *OrderBook {
	if events == nil {
		events = NewDiscardEventPublisher()
	}

	return &OrderBook{
		symbol: symbol,
		bids:   newBidQueue(),
		asks:   newAskQueue(),
		events: events,
	}
}

// Symbol returns the instrument this book belongs to.
func (book *OrderBook) Symbol() string {
	return book.symbol
}

// AddOrder runs the incoming order against resting liquidity and returns
// the executions it produced, oldest maker first. Only a limit order with
// remaining quantity rests afterwards; market, IOC and FOK residuals are
// discarded. The call either applies completely or, for an unfillable
// FOK, leaves the book untouched.
func (book *OrderBook) AddOrder(order *Order) []*Execution {
	book.mu.Lock()
	defer book.mu.Unlock()

	now := time.Now().UTC()

	var execs []*Execution
	var evts []*BookEvent

	switch order.Kind {
	case Limit:
		execs, evts = book.matchLoop(order, now)
		if order.Remaining.IsPositive() {
			book.sideQueue(order.Side).insertOrder(order, false)
			evts = append(evts, book.openEvent(order))
		}
	case Market, IOC:
		// Residual quantity is discarded, never rested.
		execs, evts = book.matchLoop(order, now)
	case FOK:
		// All-or-nothing: prove the full quantity is crossable before
		// touching any state. A failed pre-check produces no executions
		// and no events.
		if !book.sideQueue(order.Side.Opposite()).canFill(order.Remaining, order.Price) {
			return nil
		}
		execs, evts = book.matchLoop(order, now)
	}

	if len(evts) > 0 {
		book.events.PublishEvents(evts...)
	}

	return execs
}

// matchLoop consumes resting orders from the opposite side in price-time
// order until the taker is filled, the side is exhausted, or the best
// level no longer crosses the taker's limit price.
func (book *OrderBook) matchLoop(taker *Order, now time.Time) ([]*Execution, []*BookEvent) {
	target := book.sideQueue(taker.Side.Opposite())
	priced := taker.Kind.Priced()

	execs := make([]*Execution, 0, 4)
	evts := make([]*BookEvent, 0, 4)

	for taker.Remaining.IsPositive() {
		maker := target.peekHeadOrder()
		if maker == nil {
			break
		}

		if !target.crosses(maker.Price, taker.Price, priced) {
			break
		}

		target.removeOrder(maker.Price, maker.ID)

		qty := decimal.Min(taker.Remaining, maker.Remaining)
		taker.Remaining = taker.Remaining.Sub(qty)
		maker.Remaining = maker.Remaining.Sub(qty)

		execs = append(execs, &Execution{
			TradeID:      book.tradeID.Add(1),
			Symbol:       book.symbol,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			TakerSide:    taker.Side,
			Price:        maker.Price,
			Quantity:     qty,
			ExecutedAt:   now,
		})

		evts = append(evts, &BookEvent{
			Sequence: book.seqID.Add(1),
			Type:     EventMatch,
			Symbol:   book.symbol,
			Side:     taker.Side,
			Price:    maker.Price,
			Size:     qty,
			OrderID:  taker.ID,
		})

		if maker.Remaining.IsPositive() {
			// Partially filled maker keeps its time priority at the
			// head of its level.
			target.insertOrder(maker, true)
		}
	}

	return execs, evts
}

func (book *OrderBook) openEvent(order *Order) *BookEvent {
	return &BookEvent{
		Sequence: book.seqID.Add(1),
		Type:     EventOpen,
		Symbol:   book.symbol,
		Side:     order.Side,
		Price:    order.Price,
		Size:     order.Remaining,
		OrderID:  order.ID,
	}
}

// Cancel removes a resting order by id. It returns false when the id is
// unknown to this book (already filled, already cancelled, or never
// existed); that is a normal negative result, not an error.
func (book *OrderBook) Cancel(id string) bool {
	book.mu.Lock()
	defer book.mu.Unlock()

	for _, q := range [2]*queue{book.asks, book.bids} {
		order := q.order(id)
		if order == nil {
			continue
		}

		q.removeOrder(order.Price, order.ID)
		book.events.PublishEvents(&BookEvent{
			Sequence: book.seqID.Add(1),
			Type:     EventCancel,
			Symbol:   book.symbol,
			Side:     order.Side,
			Price:    order.Price,
			Size:     order.Remaining,
			OrderID:  order.ID,
		})
		return true
	}

	return false
}

// BBO returns the best bid and offer; a nil side is empty.
func (book *OrderBook) BBO() BBO {
	book.mu.Lock()
	defer book.mu.Unlock()

	var bbo BBO
	if bid, ok := book.bids.bestPrice(); ok {
		bbo.Bid = &bid
	}
	if ask, ok := book.asks.bestPrice(); ok {
		bbo.Ask = &ask
	}
	return bbo
}

// Depth returns up to limit price levels per side with aggregate resting
// quantity, best price first.
func (book *OrderBook) Depth(limit int) *Depth {
	book.mu.Lock()
	defer book.mu.Unlock()

	return &Depth{
		Symbol:   book.symbol,
		UpdateID: book.seqID.Load(),
		Bids:     book.bids.depth(limit),
		Asks:     book.asks.depth(limit),
	}
}

// BookStats reports queue usage counters.
type BookStats struct {
	BidDepthCount int64
	BidOrderCount int64
	AskDepthCount int64
	AskOrderCount int64
}

// Stats returns usage statistics for the book.
func (book *OrderBook) Stats() BookStats {
	book.mu.Lock()
	defer book.mu.Unlock()

	return BookStats{
		BidDepthCount: book.bids.depthCount(),
		BidOrderCount: book.bids.orderCount(),
		AskDepthCount: book.asks.depthCount(),
		AskOrderCount: book.asks.orderCount(),
	}
}

func (book *OrderBook) sideQueue(side Side) *queue {
	if side == Buy {
		return book.bids
	}
	return book.asks
}
