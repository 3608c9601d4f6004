package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	match "github.com/quantrade/matching-engine"
)

// Server is the HTTP/websocket transport over the matching core. It owns
// no book state: every request is served through the engine's synchronous
// interface and every push message comes from the hub.
type Server struct {
	engine      *match.MatchingEngine
	hub         *Hub
	logger      *zap.Logger
	depthLevels int
	router      *gin.Engine
	upgrader    websocket.Upgrader
}

// New wires the transport routes over the given engine and hub.
func New(engine *match.MatchingEngine, hub *Hub, logger *zap.Logger, depthLevels int) *Server {
	s := &Server{
		engine:      engine,
		hub:         hub,
		logger:      logger,
		depthLevels: depthLevels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	v1.POST("/orders", s.placeOrder)
	v1.DELETE("/orders/:symbol/:id", s.cancelOrder)
	v1.GET("/bbo/:symbol", s.getBBO)
	v1.GET("/depth/:symbol", s.getDepth)

	router.GET("/ws/market-data", s.marketDataWS)
	router.GET("/ws/trades", s.tradesWS)

	s.router = router
	return s
}

// Handler returns the root http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type orderRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Type     string          `json:"type" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type executionResponse struct {
	TradeID      uint64 `json:"trade_id"`
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
}

type orderResponse struct {
	OrderID    string              `json:"order_id"`
	Status     string              `json:"status"`
	Remaining  string              `json:"remaining"`
	Executions []executionResponse `json:"executions"`
}

func (s *Server) placeOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	side, err := match.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := match.ParseOrderKind(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.SubmitOrder(&match.PlaceOrderCommand{
		Symbol:   req.Symbol,
		Side:     side,
		Kind:     kind,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executions := make([]executionResponse, 0, len(result.Executions))
	for _, exec := range result.Executions {
		executions = append(executions, executionResponse{
			TradeID:      exec.TradeID,
			Price:        exec.Price.String(),
			Quantity:     exec.Quantity.String(),
			MakerOrderID: exec.MakerOrderID,
			TakerOrderID: exec.TakerOrderID,
		})
	}

	c.JSON(http.StatusOK, orderResponse{
		OrderID:    result.OrderID,
		Status:     orderStatus(result),
		Remaining:  result.Remaining.String(),
		Executions: executions,
	})
}

// orderStatus names the final disposition of a submission.
func orderStatus(result *match.SubmitResult) string {
	switch {
	case result.Remaining.IsZero():
		return "filled"
	case len(result.Executions) > 0:
		return "partially_filled"
	case result.Resting:
		return "accepted"
	default:
		return "killed"
	}
}

func (s *Server) cancelOrder(c *gin.Context) {
	symbol := c.Param("symbol")
	orderID := c.Param("id")

	success := s.engine.CancelOrder(symbol, orderID)
	c.JSON(http.StatusOK, gin.H{"success": success})
}

func (s *Server) getBBO(c *gin.Context) {
	symbol := c.Param("symbol")
	bbo := s.engine.GetBBO(symbol)

	resp := gin.H{"symbol": symbol, "best_bid": nil, "best_ask": nil}
	if bbo.Bid != nil {
		resp["best_bid"] = bbo.Bid.String()
	}
	if bbo.Ask != nil {
		resp["best_ask"] = bbo.Ask.String()
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) getDepth(c *gin.Context) {
	symbol := c.Param("symbol")

	levels := s.depthLevels
	if raw := c.Query("levels"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "levels must be a positive integer"})
			return
		}
		levels = parsed
	}

	c.JSON(http.StatusOK, s.engine.GetDepth(symbol, levels))
}

func (s *Server) marketDataWS(c *gin.Context) {
	s.serveWS(c, s.hub.RegisterMarketData)
}

func (s *Server) tradesWS(c *gin.Context) {
	s.serveWS(c, s.hub.RegisterTrades)
}

// serveWS upgrades the connection, subscribes it, and drains client
// frames until the peer goes away.
func (s *Server) serveWS(c *gin.Context, register func(*websocket.Conn)) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	register(conn)

	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
