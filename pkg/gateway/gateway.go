// Package gateway broadcasts trade prints and book-top changes to
// WebSocket subscribers, grounded on the reference engine's
// api.WebSocketServer client/hub pattern. It is read-only with
// respect to the Exchange: the only inbound framing it accepts is
// subscribe/unsubscribe, never order placement.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lxbook/matchcore/pkg/matchcore"
)

// Envelope is the JSON shape broadcast to subscribed clients. Symbol
// is carried on every message even though this gateway only ever
// serves one instrument, matching the reference server's per-message
// symbol field so a future multi-instrument gateway could reuse the
// wire format unchanged.
type Envelope struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type tradePayload struct {
	Sequence     uint64 `json:"sequence"`
	BuyOrderID   string `json:"buy_order_id"`
	SellOrderID  string `json:"sell_order_id"`
	BuyTraderID  string `json:"buy_trader_id"`
	SellTraderID string `json:"sell_trader_id"`
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
}

type bookTopPayload struct {
	Side  string `json:"side"`
	Price string `json:"price,omitempty"`
	Qty   string `json:"quantity,omitempty"`
	Empty bool   `json:"empty"`
}

// client is one connected WebSocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is a WebSocket broadcaster for one Exchange's trade/book-top
// feed. The zero value is not usable; construct with New.
type Server struct {
	symbol   string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a broadcaster for symbol. Attach it to an Exchange via
// TradeHook/BookTopHook passed to matchcore.WithTradeHook /
// matchcore.WithBookTopHook at construction time.
func New(symbol string) *Server {
	return &Server{
		symbol: symbol,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and starts the client's read/write
// pumps. Implements http.Handler so it can be mounted directly, e.g.
// mux.Handle("/ws", gatewayServer).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

// readPump only exists to process subscribe/unsubscribe framing and
// detect disconnects; there is exactly one implicit subscription (the
// gateway's single symbol) so the frames are currently no-ops beyond
// keeping the connection alive, but the read loop is what notices a
// closed socket and removes the client.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer; drop the frame rather than block the
			// matching goroutine that triggered this broadcast.
		}
	}
}

// TradeHook returns a matchcore.TradeHook that broadcasts every trade
// to subscribed clients.
func (s *Server) TradeHook() matchcore.TradeHook {
	return func(tr matchcore.Trade) {
		s.broadcast(Envelope{
			Type:   "trade",
			Symbol: s.symbol,
			Data: tradePayload{
				Sequence:     tr.Sequence,
				BuyOrderID:   tr.BuyOrderID,
				SellOrderID:  tr.SellOrderID,
				BuyTraderID:  tr.BuyTraderID,
				SellTraderID: tr.SellTraderID,
				Price:        tr.Price.String(),
				Quantity:     tr.Quantity.String(),
			},
			Timestamp: tr.Timestamp,
		})
	}
}

// BookTopHook returns a matchcore.BookTopHook that broadcasts book-top
// changes to subscribed clients.
func (s *Server) BookTopHook() matchcore.BookTopHook {
	return func(side matchcore.Side, best *matchcore.Order, ok bool) {
		payload := bookTopPayload{Side: side.String(), Empty: !ok}
		if ok {
			payload.Price = best.Price().String()
			payload.Qty = best.Quantity().String()
		}
		s.broadcast(Envelope{
			Type:      "book_top",
			Symbol:    s.symbol,
			Data:      payload,
			Timestamp: time.Now(),
		})
	}
}
