package matchcore

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TradeHook is invoked once per fill, in execution order, after the
// trade has already been appended to the engine's trade log. Hooks
// are how the ambient telemetry/gateway/bus layers observe activity
// without the core importing any of them.
type TradeHook func(Trade)

// BookTopHook is invoked when a Submit call changes the best quote on
// a side (including clearing it to none).
type BookTopHook func(side Side, best *Order, hasBest bool)

// SubmitHook is invoked once per completed Submit call with the
// number of trades it produced and the wall-clock time spent inside
// the matching loop. This is the seam telemetry uses to observe
// per-order/per-trade counters and matching latency without the core
// importing a metrics library itself.
type SubmitHook func(trades int, elapsed time.Duration)

// Exchange owns the order book, the trade log, and the trader
// registry for one instrument. All exported methods are safe to call
// concurrently: a single mutex enforces the "one exclusive mutable
// reference to the engine at a time" discipline described for the
// core, so the ambient stack (an HTTP metrics handler, a WebSocket
// broadcaster) can share an *Exchange with the code driving Submit.
type Exchange struct {
	mu      sync.Mutex
	book    *OrderBook
	trades  []Trade
	traders map[string]*Trader

	orderIDs  *idGenerator
	traderIDs *idGenerator
	tradeSeq  uint64

	logger    Logger
	onTrade   []TradeHook
	onBookTop []BookTopHook
	onSubmit  []SubmitHook
}

// Option configures an Exchange at construction time.
type Option func(*Exchange)

// WithLogger attaches a structured logger for the engine's defensive
// diagnostic paths. Without one, the engine logs nothing.
func WithLogger(l Logger) Option {
	return func(e *Exchange) { e.logger = l }
}

// WithTradeHook registers a callback invoked once per trade.
func WithTradeHook(h TradeHook) Option {
	return func(e *Exchange) { e.onTrade = append(e.onTrade, h) }
}

// WithBookTopHook registers a callback invoked when the best quote on
// a side changes.
func WithBookTopHook(h BookTopHook) Option {
	return func(e *Exchange) { e.onBookTop = append(e.onBookTop, h) }
}

// WithSubmitHook registers a callback invoked once per completed
// Submit call with its trade count and matching latency.
func WithSubmitHook(h SubmitHook) Option {
	return func(e *Exchange) { e.onSubmit = append(e.onSubmit, h) }
}

// NewExchange creates a single-instrument matching engine. With no
// options it has zero external dependencies: no logger, no telemetry,
// no network — matching the core's "no knowledge of time, randomness,
// I/O" requirement for the algorithms themselves.
func NewExchange(symbol string, opts ...Option) *Exchange {
	e := &Exchange{
		book:      NewOrderBook(symbol),
		traders:   make(map[string]*Trader),
		orderIDs:  newIDGenerator("ORD-"),
		traderIDs: newIDGenerator("TRD-"),
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OrderBook returns the read-only order book accessor. The returned
// book's own methods do not take the engine's lock, so reads through
// it are not synchronized with a concurrent Submit, Cancel or Modify.
func (e *Exchange) OrderBook() *OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book
}

// Trades returns a defensive copy of the trade log in execution
// order.
func (e *Exchange) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// RegisterTrader mints a fresh trader id and returns a gateway bound
// to it.
func (e *Exchange) RegisterTrader() *Trader {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.traderIDs.next()
	t := &Trader{id: id, exchange: e}
	e.traders[id] = t
	return t
}

// nextOrderID mints a fresh order id. Id generation is independently
// atomic, so callers need not hold e.mu.
func (e *Exchange) nextOrderID() string { return e.orderIDs.next() }

// Submit runs the matching protocol against the book, appends any
// residual limit order, records trades, and returns them in execution
// order. Submitting a nil order, an order with a non-positive
// quantity, or a limit order with a non-positive price fails with
// ErrInvalidArgument.
//
// Hooks are dispatched only after e.mu is released: a hook is free to
// call back into any other Exchange method (OrderBook, Trades, ...)
// without deadlocking against the lock Submit held to compute its
// result. The before/after book-top comparison is therefore done
// entirely under the lock, and only the resulting (changed, best, ok)
// tuples cross into the unlocked dispatch below.
func (e *Exchange) Submit(order *Order) ([]Trade, error) {
	if order == nil {
		return nil, wrapf(ErrInvalidArgument, "order must not be nil")
	}
	if order.Quantity().Sign() <= 0 || (order.Kind() == Limit && order.Price().Sign() <= 0) {
		return nil, wrapf(ErrInvalidArgument, "order quantity and limit price must be positive")
	}

	start := time.Now()
	e.mu.Lock()

	bidBefore, bidBeforeOK := e.book.BestBid()
	askBefore, askBeforeOK := e.book.BestAsk()

	trades := e.match(order)

	if order.Kind() == Limit && order.Quantity().Sign() > 0 {
		e.book.Add(order)
	}

	e.trades = append(e.trades, trades...)

	bidChanged, bidAfter, bidAfterOK := e.bookTopChanged(Buy, bidBefore, bidBeforeOK)
	askChanged, askAfter, askAfterOK := e.bookTopChanged(Sell, askBefore, askBeforeOK)
	elapsed := time.Since(start)

	e.mu.Unlock()

	for _, tr := range trades {
		for _, hook := range e.onTrade {
			hook(tr)
		}
	}
	if bidChanged {
		e.notifyBookTop(Buy, bidAfter, bidAfterOK)
	}
	if askChanged {
		e.notifyBookTop(Sell, askAfter, askAfterOK)
	}
	for _, hook := range e.onSubmit {
		hook(len(trades), elapsed)
	}

	return trades, nil
}

// bookTopChanged compares the given pre-match best quote for side
// against the current one and reports whether it changed, along with
// the new value. Callers must hold e.mu.
func (e *Exchange) bookTopChanged(side Side, before *Order, beforeOK bool) (changed bool, after *Order, afterOK bool) {
	if len(e.onBookTop) == 0 {
		return false, nil, false
	}
	if side == Buy {
		after, afterOK = e.book.BestBid()
	} else {
		after, afterOK = e.book.BestAsk()
	}
	if beforeOK != afterOK {
		return true, after, afterOK
	}
	if beforeOK && (before.ID() != after.ID() || !before.Price().Equal(after.Price()) || !before.Quantity().Equal(after.Quantity())) {
		return true, after, afterOK
	}
	return false, after, afterOK
}

func (e *Exchange) notifyBookTop(side Side, best *Order, ok bool) {
	for _, hook := range e.onBookTop {
		hook(side, best, ok)
	}
}

// match runs the crossing loop described by the matching protocol. It
// never returns an error: a defensive violation of a book invariant
// (a locator pointing at a missing level, which should never happen
// given id uniqueness) aborts the loop for this Submit, logs a
// warning, and leaves the book in its current, consistent state.
func (e *Exchange) match(incoming *Order) []Trade {
	oppositeSide := Sell
	if incoming.Side() == Sell {
		oppositeSide = Buy
	}

	var trades []Trade
	for {
		if incoming.Quantity().Sign() <= 0 {
			break
		}

		level, ok := e.book.bestLevelForSide(oppositeSide)
		if !ok {
			break
		}
		best, ok := level.Front()
		if !ok {
			break
		}

		if incoming.Kind() == Limit {
			if incoming.Side() == Buy && incoming.Price().LessThan(best.Price()) {
				break
			}
			if incoming.Side() == Sell && incoming.Price().GreaterThan(best.Price()) {
				break
			}
		}

		qty := decimal.Min(incoming.Quantity(), best.Quantity())

		trade := e.newTrade(incoming, best, qty)
		trades = append(trades, trade)

		incoming.fill(qty)
		best.fill(qty)

		if best.Quantity().Sign() == 0 {
			if !e.book.removeIfExhausted(oppositeSide, level) {
				e.logger.Warnw("matching: failed to remove exhausted resting order",
					"order_id", best.ID(), "side", oppositeSide.String())
				break
			}
		}
	}
	return trades
}

func (e *Exchange) newTrade(incoming, resting *Order, qty decimal.Decimal) Trade {
	e.tradeSeq++
	var buy, sell *Order
	if incoming.Side() == Buy {
		buy, sell = incoming, resting
	} else {
		buy, sell = resting, incoming
	}
	return Trade{
		Sequence:     e.tradeSeq,
		BuyOrderID:   buy.ID(),
		SellOrderID:  sell.ID(),
		BuyTraderID:  buy.TraderID(),
		SellTraderID: sell.TraderID(),
		Price:        resting.Price(),
		Quantity:     qty,
		Timestamp:    time.Now(),
	}
}

// Cancel removes a resting order from the book. Returns whether an
// order was removed.
func (e *Exchange) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Remove(id)
}

// Modify cancels and resubmits an order with an updated price and
// quantity. The modified order loses its original time priority and
// may match immediately if it now crosses. Returns false for an
// unknown id, a non-limit order, or a non-positive price/quantity,
// leaving the book unchanged.
func (e *Exchange) Modify(id string, newPrice, newQuantity decimal.Decimal) bool {
	e.mu.Lock()

	order, ok := e.book.Find(id)
	if !ok {
		e.mu.Unlock()
		return false
	}
	if order.Kind() != Limit {
		e.mu.Unlock()
		return false
	}
	if newPrice.Sign() <= 0 || newQuantity.Sign() <= 0 {
		e.mu.Unlock()
		return false
	}

	e.book.Remove(id)
	_ = order.SetPrice(newPrice)
	_ = order.SetQuantity(newQuantity)
	e.mu.Unlock()

	// Submit re-acquires the lock; Modify's own book mutation above
	// (the Remove) must be released first so Submit observes a
	// consistent, unlocked engine.
	_, _ = e.Submit(order)
	return true
}
