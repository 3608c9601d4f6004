package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel holds all resting orders at one price as an intrusive FIFO
// linked list, plus the aggregate size the level carries.
type priceLevel struct {
	price     decimal.Decimal
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

// queue is one side of a book. Price levels live in a skip list ordered
// best price first; levels indexes them by canonical price string and
// orders indexes every resting order by id for O(1) cancellation.
// A price key never maps to an empty level: the level is dropped the
// moment its last order leaves.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	levels      map[string]*skiplist.Element
	orders      map[string]*Order
}

// newBidQueue creates the buy side. Levels are sorted by price in
// descending order (highest bid first).
func newBidQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		levels: make(map[string]*skiplist.Element),
		orders: make(map[string]*Order),
	}
}

// newAskQueue creates the sell side. Levels are sorted by price in
// ascending order (lowest ask first).
func newAskQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		levels: make(map[string]*skiplist.Element),
		orders: make(map[string]*Order),
	}
}

// order finds a resting order by its ID.
func (q *queue) order(id string) *Order {
	return q.orders[id]
}

// insertOrder inserts an order into the queue, creating its price level
// if absent. isFront is used when a partially filled maker goes back to
// the head of its level, preserving its time priority.
func (q *queue) insertOrder(order *Order, isFront bool) {
	key := order.Price.String()

	el, ok := q.levels[key]
	if ok {
		level, _ := el.Value.(*priceLevel)
		if isFront {
			order.next = level.head
			order.prev = nil
			if level.head != nil {
				level.head.prev = order
			}
			level.head = order
			if level.tail == nil {
				level.tail = order
			}
		} else {
			order.prev = level.tail
			order.next = nil
			if level.tail != nil {
				level.tail.next = order
			}
			level.tail = order
			if level.head == nil {
				level.head = order
			}
		}

		level.totalSize = level.totalSize.Add(order.Remaining)
		level.count++
		q.orders[order.ID] = order
		q.totalOrders++
	} else {
		level := &priceLevel{
			price:     order.Price,
			head:      order,
			tail:      order,
			totalSize: order.Remaining,
			count:     1,
		}
		order.next = nil
		order.prev = nil

		q.orders[order.ID] = order

		el := q.depthList.Set(order.Price, level)
		q.levels[key] = el

		q.totalOrders++
		q.depths++
	}
}

// removeOrder removes an order from its price level and from the id
// index as one operation, dropping the level if it becomes empty.
func (q *queue) removeOrder(price decimal.Decimal, id string) {
	key := price.String()

	skipElement, ok := q.levels[key]
	if !ok {
		return
	}
	level, _ := skipElement.Value.(*priceLevel)

	order, ok := q.orders[id]
	if !ok {
		return
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		level.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		level.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	level.totalSize = level.totalSize.Sub(order.Remaining)
	level.count--
	delete(q.orders, id)
	q.totalOrders--

	if level.count == 0 {
		q.depthList.RemoveElement(skipElement)
		delete(q.levels, key)
		q.depths--
	}
}

// peekHeadOrder returns the earliest order at the best price without
// removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	level, _ := el.Value.(*priceLevel)
	return level.head
}

// popHeadOrder removes and returns the earliest order at the best price.
func (q *queue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()

	if ord != nil {
		q.removeOrder(ord.Price, ord.ID)
	}

	return ord
}

// bestPrice returns the best price on this side, or false when empty.
func (q *queue) bestPrice() (decimal.Decimal, bool) {
	el := q.depthList.Front()
	if el == nil {
		return decimal.Zero, false
	}

	level, _ := el.Value.(*priceLevel)
	return level.price, true
}

// crosses reports whether a taker with the given limit price may consume
// the given level on this side. Market takers pass priced == false and
// cross everything.
func (q *queue) crosses(levelPrice decimal.Decimal, limit decimal.Decimal, priced bool) bool {
	if !priced {
		return true
	}
	if q.side == Sell {
		// Buy taker against asks.
		return limit.GreaterThanOrEqual(levelPrice)
	}
	// Sell taker against bids.
	return limit.LessThanOrEqual(levelPrice)
}

// canFill reports whether the aggregate resting size at levels crossable
// by the given limit price covers target. It only reads level totals, so
// the book is untouched; used by the fill-or-kill pre-check.
func (q *queue) canFill(target decimal.Decimal, limit decimal.Decimal) bool {
	remaining := target

	el := q.depthList.Front()
	for remaining.IsPositive() {
		if el == nil {
			return false
		}

		level, _ := el.Value.(*priceLevel)
		if !q.crosses(level.price, limit, true) {
			return false
		}

		remaining = remaining.Sub(level.totalSize)
		el = el.Next()
	}

	return true
}

// orderCount returns the total number of resting orders.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels.
func (q *queue) depthCount() int64 {
	return q.depths
}

// depth returns up to limit levels, best price first, with aggregate size.
func (q *queue) depth(limit int) []*DepthItem {
	if limit <= 0 {
		return []*DepthItem{}
	}

	result := make([]*DepthItem, 0, limit)

	el := q.depthList.Front()
	for len(result) < limit && el != nil {
		level, _ := el.Value.(*priceLevel)
		result = append(result, &DepthItem{
			Price: level.price,
			Size:  level.totalSize,
		})

		el = el.Next()
	}

	return result
}
