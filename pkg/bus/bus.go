// Package bus publishes trade and book-top events to NATS subjects for
// downstream consumers (a simulation driver, an analysis pipeline)
// that would otherwise have to poll the engine. Grounded on the
// reference dex-server's NATS announcer: connect once at startup,
// publish fire-and-forget, never let publish failures affect the
// caller.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/lxbook/matchcore/pkg/matchcore"
)

const (
	// SubjectTrades is where individual fills are announced.
	SubjectTrades = "matchcore.trades"
	// SubjectBookTop is where best-bid/best-ask changes are announced.
	SubjectBookTop = "matchcore.book.top"
)

// Publisher wraps a NATS connection bound to the trades/book-top
// subjects for one Exchange.
type Publisher struct {
	nc     *nats.Conn
	symbol string
	logger *zap.Logger
}

// Connect dials url and returns a Publisher for symbol. A connection
// failure here is a real, returned error: without a bus there is
// nothing to build, unlike a runtime publish failure which is merely
// logged and swallowed (see Publisher.PublishTrade).
func Connect(url, symbol string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", url, err)
	}
	return &Publisher{nc: nc, symbol: symbol, logger: logger}, nil
}

// Close closes the underlying NATS connection without draining it.
func (p *Publisher) Close() {
	p.nc.Close()
}

type tradeMessage struct {
	Symbol       string    `json:"symbol"`
	Sequence     uint64    `json:"sequence"`
	BuyOrderID   string    `json:"buy_order_id"`
	SellOrderID  string    `json:"sell_order_id"`
	BuyTraderID  string    `json:"buy_trader_id"`
	SellTraderID string    `json:"sell_trader_id"`
	Price        string    `json:"price"`
	Quantity     string    `json:"quantity"`
	Timestamp    time.Time `json:"timestamp"`
}

type bookTopMessage struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Price  string `json:"price,omitempty"`
	Qty    string `json:"quantity,omitempty"`
	Empty  bool   `json:"empty"`
}

func tradeMessageFor(symbol string, tr matchcore.Trade) tradeMessage {
	return tradeMessage{
		Symbol:       symbol,
		Sequence:     tr.Sequence,
		BuyOrderID:   tr.BuyOrderID,
		SellOrderID:  tr.SellOrderID,
		BuyTraderID:  tr.BuyTraderID,
		SellTraderID: tr.SellTraderID,
		Price:        tr.Price.String(),
		Quantity:     tr.Quantity.String(),
		Timestamp:    tr.Timestamp,
	}
}

// PublishTrade announces a single fill. Marshal or publish failures
// are logged and otherwise ignored: the bus is a notification
// channel, not a source of truth, and must never block or fail
// Exchange.Submit.
func (p *Publisher) PublishTrade(tr matchcore.Trade) {
	data, err := json.Marshal(tradeMessageFor(p.symbol, tr))
	if err != nil {
		p.logger.Warn("bus: marshal trade failed", zap.Error(err))
		return
	}
	if err := p.nc.Publish(SubjectTrades, data); err != nil {
		p.logger.Warn("bus: publish trade failed", zap.Error(err))
	}
}

func bookTopMessageFor(symbol string, side matchcore.Side, best *matchcore.Order, ok bool) bookTopMessage {
	msg := bookTopMessage{Symbol: symbol, Side: side.String(), Empty: !ok}
	if ok {
		msg.Price = best.Price().String()
		msg.Qty = best.Quantity().String()
	}
	return msg
}

// PublishBookTop announces a change to the best quote on one side.
func (p *Publisher) PublishBookTop(side matchcore.Side, best *matchcore.Order, ok bool) {
	data, err := json.Marshal(bookTopMessageFor(p.symbol, side, best, ok))
	if err != nil {
		p.logger.Warn("bus: marshal book top failed", zap.Error(err))
		return
	}
	if err := p.nc.Publish(SubjectBookTop, data); err != nil {
		p.logger.Warn("bus: publish book top failed", zap.Error(err))
	}
}

// TradeHook adapts PublishTrade to matchcore.TradeHook.
func (p *Publisher) TradeHook() matchcore.TradeHook { return p.PublishTrade }

// BookTopHook adapts PublishBookTop to matchcore.BookTopHook.
func (p *Publisher) BookTopHook() matchcore.BookTopHook { return p.PublishBookTop }
