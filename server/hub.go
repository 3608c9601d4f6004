package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	match "github.com/quantrade/matching-engine"
)

// DepthSource provides authoritative depth for resynchronizing the
// aggregated views after an event gap. *match.MatchingEngine satisfies it.
type DepthSource interface {
	GetDepth(symbol string, levels int) *match.Depth
}

const writeWait = 5 * time.Second

// Hub fans matching engine output out to websocket subscribers: every
// execution to the trades feed, and a top-N aggregated depth snapshot to
// the market-data feed for each symbol whose book changed. It implements
// the core's publisher interfaces; publishing only enqueues, so the
// matching path never waits on a slow client.
type Hub struct {
	logger      *zap.Logger
	source      DepthSource
	depthLevels int

	mu          sync.Mutex
	marketConns map[*websocket.Conn]struct{}
	tradeConns  map[*websocket.Conn]struct{}

	books map[string]*match.AggregatedBook // per-symbol depth views, touched only by run

	queue chan any // []*match.BookEvent or []*match.Execution batches
	done  chan struct{}
	once  sync.Once
}

// NewHub creates a hub broadcasting levels price levels per side.
// BindSource must be called before Run.
func NewHub(logger *zap.Logger, levels int) *Hub {
	return &Hub{
		logger:      logger,
		depthLevels: levels,
		marketConns: make(map[*websocket.Conn]struct{}),
		tradeConns:  make(map[*websocket.Conn]struct{}),
		books:       make(map[string]*match.AggregatedBook),
		queue:       make(chan any, 8192),
		done:        make(chan struct{}),
	}
}

// BindSource sets the authoritative depth source used to prime and
// resynchronize the aggregated views. The hub and the engine reference
// each other, so the source is bound after both are constructed.
func (h *Hub) BindSource(source DepthSource) {
	h.source = source
}

// PublishEvents enqueues a batch of book events. Called by the core while
// a book's lock is held, so it must not block: when the hub is saturated
// the batch is dropped and the affected views resynchronize via the
// depth source on the next gap.
func (h *Hub) PublishEvents(events ...*match.BookEvent) {
	batch := make([]*match.BookEvent, len(events))
	copy(batch, events)

	select {
	case h.queue <- batch:
	default:
		h.logger.Warn("hub queue full, dropping book events", zap.Int("count", len(batch)))
	}
}

// PublishTrades enqueues a batch of executions for the trades feed.
func (h *Hub) PublishTrades(trades ...*match.Execution) {
	batch := make([]*match.Execution, len(trades))
	copy(batch, trades)

	select {
	case h.queue <- batch:
	default:
		h.logger.Warn("hub queue full, dropping trades", zap.Int("count", len(batch)))
	}
}

// Run consumes the queue until Close is called. Call it on its own
// goroutine; all websocket writes happen here, keeping gorilla's
// single-writer requirement.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case item := <-h.queue:
			switch batch := item.(type) {
			case []*match.BookEvent:
				h.applyEvents(batch)
			case []*match.Execution:
				h.broadcastTrades(batch)
			}
		}
	}
}

// Close stops the run loop and disconnects all subscribers.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for conn := range h.marketConns {
			_ = conn.Close()
		}
		for conn := range h.tradeConns {
			_ = conn.Close()
		}
	})
}

// RegisterMarketData subscribes a connection to depth snapshots.
func (h *Hub) RegisterMarketData(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.marketConns[conn] = struct{}{}
}

// RegisterTrades subscribes a connection to the trades feed.
func (h *Hub) RegisterTrades(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tradeConns[conn] = struct{}{}
}

// Unregister drops a connection from both feeds.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.marketConns, conn)
	delete(h.tradeConns, conn)
	_ = conn.Close()
}

type marketDataMessage struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Symbol    string             `json:"symbol"`
	UpdateID  uint64             `json:"update_id"`
	Bids      []*match.DepthItem `json:"bids"`
	Asks      []*match.DepthItem `json:"asks"`
}

type tradeMessage struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Symbol        string    `json:"symbol"`
	TradeID       uint64    `json:"trade_id"`
	Price         string    `json:"price"`
	Quantity      string    `json:"quantity"`
	AggressorSide string    `json:"aggressor_side"`
	MakerOrderID  string    `json:"maker_order_id"`
	TakerOrderID  string    `json:"taker_order_id"`
}

// applyEvents folds a batch into the per-symbol aggregated views and
// broadcasts one snapshot per touched symbol.
func (h *Hub) applyEvents(events []*match.BookEvent) {
	touched := make(map[string]struct{}, 1)

	for _, ev := range events {
		book, ok := h.books[ev.Symbol]
		if !ok {
			book = match.NewAggregatedBook(ev.Symbol)
			book.Rebuild(h.source.GetDepth(ev.Symbol, h.depthLevels))
			h.books[ev.Symbol] = book
		}

		if err := book.Apply(ev); err != nil {
			if errors.Is(err, match.ErrSequenceGap) {
				h.logger.Warn("event gap, rebuilding depth view",
					zap.String("symbol", ev.Symbol),
					zap.Uint64("have", book.Sequence()),
					zap.Uint64("got", ev.Sequence))
				book.Rebuild(h.source.GetDepth(ev.Symbol, h.depthLevels))
			} else {
				h.logger.Error("apply book event", zap.Error(err))
			}
		}

		touched[ev.Symbol] = struct{}{}
	}

	now := time.Now().UTC()
	for symbol := range touched {
		snap := h.books[symbol].Snapshot(h.depthLevels)
		h.broadcastMarketData(&marketDataMessage{
			Type:      "market_data",
			Timestamp: now,
			Symbol:    symbol,
			UpdateID:  snap.UpdateID,
			Bids:      snap.Bids,
			Asks:      snap.Asks,
		})
	}
}

func (h *Hub) broadcastMarketData(msg *marketDataMessage) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.marketConns))
	for conn := range h.marketConns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.Unregister(conn)
		}
	}
}

func (h *Hub) broadcastTrades(trades []*match.Execution) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.tradeConns))
	for conn := range h.tradeConns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, trade := range trades {
		msg := &tradeMessage{
			Type:          "trade",
			Timestamp:     trade.ExecutedAt,
			Symbol:        trade.Symbol,
			TradeID:       trade.TradeID,
			Price:         trade.Price.String(),
			Quantity:      trade.Quantity.String(),
			AggressorSide: trade.TakerSide.String(),
			MakerOrderID:  trade.MakerOrderID,
			TakerOrderID:  trade.TakerOrderID,
		}

		for _, conn := range conns {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.Unregister(conn)
			}
		}
	}
}
