package matchcore

import "github.com/shopspring/decimal"

// Trader is a bound identity that manufactures orders carrying its id
// and forwards lifecycle actions to its Exchange. It does not submit
// orders itself: callers often need to inspect or retain the order
// reference before or after submission (e.g. a market maker tracking
// its own resting bid/ask ids).
type Trader struct {
	id       string
	exchange *Exchange
}

// ID returns the trader's engine-scoped identity.
func (t *Trader) ID() string { return t.id }

// CreateLimit constructs a limit order carrying this trader's id.
func (t *Trader) CreateLimit(price, quantity decimal.Decimal, side Side) (*Order, error) {
	return NewLimitOrder(t.exchange.nextOrderID(), t.id, price, quantity, side)
}

// CreateMarket constructs a market order carrying this trader's id.
func (t *Trader) CreateMarket(quantity decimal.Decimal, side Side) (*Order, error) {
	return NewMarketOrder(t.exchange.nextOrderID(), t.id, quantity, side)
}

// Cancel forwards to the bound exchange.
func (t *Trader) Cancel(id string) bool {
	return t.exchange.Cancel(id)
}

// Modify forwards to the bound exchange.
func (t *Trader) Modify(id string, price, quantity decimal.Decimal) bool {
	return t.exchange.Modify(id, price, quantity)
}
