package matchcore

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Side represents which side of the book an order sits on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind distinguishes a limit order from a market order. The core
// models this as a tagged field on a single struct rather than a
// class hierarchy: the matching engine only branches on Kind to read
// price and to decide whether the crossing gate applies.
type Kind int

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	if k == Limit {
		return "limit"
	}
	return "market"
}

// idGenerator produces unique, monotonically increasing ids scoped to
// a single Exchange instance. A package-global counter would make
// tests order-dependent across engines; an engine-scoped one does not.
type idGenerator struct {
	prefix  string
	counter uint64
}

func newIDGenerator(prefix string) *idGenerator {
	return &idGenerator{prefix: prefix}
}

func (g *idGenerator) next() string {
	n := atomic.AddUint64(&g.counter, 1)
	var b strings.Builder
	b.Grow(len(g.prefix) + 20)
	b.WriteString(g.prefix)
	b.WriteString(strconv.FormatUint(n, 10))
	return b.String()
}

// Order is a resting or incoming order. The book holds the canonical
// *Order; callers that only have an id must look the live order back
// up through Exchange/OrderBook to observe fills. Sharing the pointer
// this way is how the reference engine realizes "shared mutable
// orders" without an arena or interior-mutability wrapper.
type Order struct {
	id       string
	traderID string
	side     Side
	kind     Kind
	price    decimal.Decimal // zero/unused for Market
	quantity decimal.Decimal
}

// NewLimitOrder constructs a resting-eligible order bound to price.
func NewLimitOrder(id, traderID string, price, quantity decimal.Decimal, side Side) (*Order, error) {
	if price.Sign() <= 0 {
		return nil, wrapf(ErrInvalidArgument, "price must be positive")
	}
	if quantity.Sign() <= 0 {
		return nil, wrapf(ErrInvalidArgument, "quantity must be positive")
	}
	return &Order{
		id:       id,
		traderID: traderID,
		side:     side,
		kind:     Limit,
		price:    price,
		quantity: quantity,
	}, nil
}

// NewMarketOrder constructs an order with no price constraint that
// never rests.
func NewMarketOrder(id, traderID string, quantity decimal.Decimal, side Side) (*Order, error) {
	if quantity.Sign() <= 0 {
		return nil, wrapf(ErrInvalidArgument, "quantity must be positive")
	}
	return &Order{
		id:       id,
		traderID: traderID,
		side:     side,
		kind:     Market,
		quantity: quantity,
	}, nil
}

func (o *Order) ID() string             { return o.id }
func (o *Order) TraderID() string       { return o.traderID }
func (o *Order) Side() Side             { return o.side }
func (o *Order) Kind() Kind             { return o.kind }
func (o *Order) Quantity() decimal.Decimal { return o.quantity }

// Price returns the limit price, or the unspecified zero sentinel for
// a market order.
func (o *Order) Price() decimal.Decimal { return o.price }

// SetQuantity updates the remaining quantity. Exchange.Modify uses it
// to apply a new quantity; fills go through fill instead, since a
// fully consumed order reaches zero.
func (o *Order) SetQuantity(q decimal.Decimal) error {
	if q.Sign() <= 0 {
		return wrapf(ErrInvalidArgument, "quantity must be positive")
	}
	o.quantity = q
	return nil
}

// fill decrements the order's remaining quantity by qty without the
// SetQuantity>0 validation, since a fully-consumed order legitimately
// reaches zero. Only the matching loop calls this.
func (o *Order) fill(qty decimal.Decimal) {
	o.quantity = o.quantity.Sub(qty)
}

// SetPrice updates the limit price. Fails on a market order.
func (o *Order) SetPrice(p decimal.Decimal) error {
	if o.kind != Limit {
		return wrapf(ErrWrongKind, "market orders have no price")
	}
	if p.Sign() <= 0 {
		return wrapf(ErrInvalidArgument, "price must be positive")
	}
	o.price = p
	return nil
}
