package match

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submit(t *testing.T, engine *MatchingEngine, symbol string, side Side, kind OrderKind, qty string, price string) *SubmitResult {
	t.Helper()

	cmd := &PlaceOrderCommand{
		Symbol:   symbol,
		Side:     side,
		Kind:     kind,
		Quantity: decimal.RequireFromString(qty),
	}
	if price != "" {
		cmd.Price = decimal.RequireFromString(price)
	}

	result, err := engine.SubmitOrder(cmd)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestSubmitOrderValidation(t *testing.T) {
	engine := NewMatchingEngine(nil, nil)

	tests := []struct {
		name string
		cmd  *PlaceOrderCommand
	}{
		{"nil command", nil},
		{"missing symbol", &PlaceOrderCommand{Side: Buy, Kind: Limit, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}},
		{"unknown side", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: 9, Kind: Limit, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}},
		{"zero quantity", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: Limit, Quantity: decimal.Zero, Price: decimal.NewFromInt(10)}},
		{"negative quantity", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: Limit, Quantity: decimal.NewFromInt(-1), Price: decimal.NewFromInt(10)}},
		{"limit without price", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: Limit, Quantity: decimal.NewFromInt(1)}},
		{"ioc without price", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: IOC, Quantity: decimal.NewFromInt(1)}},
		{"fok without price", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: FOK, Quantity: decimal.NewFromInt(1)}},
		{"market with price", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: Market, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}},
		{"unknown kind", &PlaceOrderCommand{Symbol: "BTC-USDT", Side: Buy, Kind: "stop", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.SubmitOrder(tt.cmd)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	// Rejected submissions never create a book.
	bbo := engine.GetBBO("BTC-USDT")
	assert.Nil(t, bbo.Bid)
	assert.Nil(t, bbo.Ask)
}

func TestEngineScenarios(t *testing.T) {
	t.Run("limit buy rests then partially fills", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		buy := submit(t, engine, "BTC-USDT", Buy, Limit, "1.0", "50000")
		assert.Empty(t, buy.Executions)
		assert.True(t, buy.Resting)

		bbo := engine.GetBBO("BTC-USDT")
		require.NotNil(t, bbo.Bid)
		assert.True(t, bbo.Bid.Equal(decimal.NewFromInt(50000)))
		assert.Nil(t, bbo.Ask)

		sell := submit(t, engine, "BTC-USDT", Sell, Limit, "0.5", "50000")
		require.Len(t, sell.Executions, 1)
		assert.True(t, sell.Executions[0].Quantity.Equal(decimal.RequireFromString("0.5")))
		assert.True(t, sell.Executions[0].Price.Equal(decimal.NewFromInt(50000)))
		assert.Equal(t, buy.OrderID, sell.Executions[0].MakerOrderID)
		assert.False(t, sell.Resting)

		depth := engine.GetDepth("BTC-USDT", 1)
		require.Len(t, depth.Bids, 1)
		assert.True(t, depth.Bids[0].Size.Equal(decimal.RequireFromString("0.5")))

		bbo = engine.GetBBO("BTC-USDT")
		require.NotNil(t, bbo.Bid)
		assert.True(t, bbo.Bid.Equal(decimal.NewFromInt(50000)))
		assert.Nil(t, bbo.Ask)
	})

	t.Run("market buy against resting sell", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		submit(t, engine, "BTC-USDT", Sell, Limit, "1.0", "50000")
		result := submit(t, engine, "BTC-USDT", Buy, Market, "0.5", "")

		require.Len(t, result.Executions, 1)
		assert.True(t, result.Executions[0].Quantity.Equal(decimal.RequireFromString("0.5")))
		assert.True(t, result.Executions[0].Price.Equal(decimal.NewFromInt(50000)))
	})

	t.Run("ioc fills available and discards remainder", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		submit(t, engine, "BTC-USDT", Sell, Limit, "1.0", "50000")
		result := submit(t, engine, "BTC-USDT", Buy, IOC, "2.0", "50000")

		require.Len(t, result.Executions, 1)
		assert.True(t, result.Executions[0].Quantity.Equal(decimal.NewFromInt(1)))
		assert.False(t, result.Resting)
		assert.True(t, result.Remaining.Equal(decimal.NewFromInt(1)))
		assert.False(t, engine.CancelOrder("BTC-USDT", result.OrderID))
	})

	t.Run("fok killed leaves maker intact", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		submit(t, engine, "BTC-USDT", Sell, Limit, "1.0", "50000")
		result := submit(t, engine, "BTC-USDT", Buy, FOK, "2.0", "50000")

		assert.Empty(t, result.Executions)
		assert.True(t, result.Remaining.Equal(decimal.NewFromInt(2)))

		depth := engine.GetDepth("BTC-USDT", 1)
		require.Len(t, depth.Asks, 1)
		assert.True(t, depth.Asks[0].Size.Equal(decimal.NewFromInt(1)))
	})

	t.Run("market buy sweeps two sells in arrival order", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		a := submit(t, engine, "BTC-USDT", Sell, Limit, "1.0", "50000")
		b := submit(t, engine, "BTC-USDT", Sell, Limit, "1.0", "50000")

		result := submit(t, engine, "BTC-USDT", Buy, Market, "1.5", "")
		require.Len(t, result.Executions, 2)
		assert.Equal(t, a.OrderID, result.Executions[0].MakerOrderID)
		assert.True(t, result.Executions[0].Quantity.Equal(decimal.NewFromInt(1)))
		assert.Equal(t, b.OrderID, result.Executions[1].MakerOrderID)
		assert.True(t, result.Executions[1].Quantity.Equal(decimal.RequireFromString("0.5")))

		// A removed, B resting with the remainder.
		assert.False(t, engine.CancelOrder("BTC-USDT", a.OrderID))
		depth := engine.GetDepth("BTC-USDT", 1)
		require.Len(t, depth.Asks, 1)
		assert.True(t, depth.Asks[0].Size.Equal(decimal.RequireFromString("0.5")))
	})
}

func TestEngineRouting(t *testing.T) {
	t.Run("symbols do not share books", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		submit(t, engine, "BTC-USDT", Sell, Limit, "1", "50000")
		result := submit(t, engine, "ETH-USDT", Buy, Limit, "1", "50000")

		assert.Empty(t, result.Executions)
		assert.True(t, result.Resting)
	})

	t.Run("cancel on unknown symbol returns false", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)
		assert.False(t, engine.CancelOrder("NO-SUCH", "id"))
	})

	t.Run("cancel routes to the right book", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		result := submit(t, engine, "BTC-USDT", Buy, Limit, "1", "100")
		assert.False(t, engine.CancelOrder("ETH-USDT", result.OrderID))
		assert.True(t, engine.CancelOrder("BTC-USDT", result.OrderID))
		assert.False(t, engine.CancelOrder("BTC-USDT", result.OrderID))
	})

	t.Run("depth of unknown symbol is empty", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)
		depth := engine.GetDepth("NO-SUCH", 10)
		assert.Empty(t, depth.Bids)
		assert.Empty(t, depth.Asks)
	})

	t.Run("order ids are unique", func(t *testing.T) {
		engine := NewMatchingEngine(nil, nil)

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			result := submit(t, engine, "BTC-USDT", Buy, Limit, "1", "1")
			assert.False(t, seen[result.OrderID])
			seen[result.OrderID] = true
		}
	})
}

func TestEnginePublishesTrades(t *testing.T) {
	trades := NewMemoryPublishTrade()
	engine := NewMatchingEngine(trades, nil)

	submit(t, engine, "BTC-USDT", Sell, Limit, "1", "50000")
	assert.Equal(t, 0, trades.Count())

	result := submit(t, engine, "BTC-USDT", Buy, Limit, "1", "50000")
	require.Len(t, result.Executions, 1)
	require.Equal(t, 1, trades.Count())

	trade := trades.Get(0)
	assert.Equal(t, "BTC-USDT", trade.Symbol)
	assert.Equal(t, result.OrderID, trade.TakerOrderID)
	assert.Equal(t, Buy, trade.TakerSide)
}

func TestEngineConcurrentSymbols(t *testing.T) {
	engine := NewMatchingEngine(nil, nil)

	const symbols = 8
	const ordersPerSymbol = 200

	var wg sync.WaitGroup
	for s := 0; s < symbols; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			symbol := fmt.Sprintf("SYM-%d", s)
			for i := 0; i < ordersPerSymbol; i++ {
				side := Buy
				if i%2 == 1 {
					side = Sell
				}
				_, err := engine.SubmitOrder(&PlaceOrderCommand{
					Symbol:   symbol,
					Side:     side,
					Kind:     Limit,
					Quantity: decimal.NewFromInt(1),
					Price:    decimal.NewFromInt(100),
				})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	// Each symbol is driven by a single goroutine, so its alternating
	// one-unit orders cross in pairs and the book ends empty.
	for s := 0; s < symbols; s++ {
		symbol := fmt.Sprintf("SYM-%d", s)
		depth := engine.GetDepth(symbol, 10)
		assert.Empty(t, depth.Bids, "symbol %s", symbol)
		assert.Empty(t, depth.Asks, "symbol %s", symbol)
	}
}
