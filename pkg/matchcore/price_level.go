package matchcore

import "github.com/shopspring/decimal"

// PriceLevel is an ordered, FIFO sequence of resting limit orders that
// share a price on one side of the book. Append is O(1); pop-front is
// O(1) amortized via slicing; removal by id is O(n) in level size,
// which is the tradeoff the original design notes call out as
// acceptable unless level sizes grow pathologically large.
type PriceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{price: price}
}

// Price returns the shared price of every order in the level.
func (l *PriceLevel) Price() decimal.Decimal { return l.price }

// Add appends order to the tail of the level. Callers (OrderBook) are
// responsible for the precondition that order.Kind() == Limit,
// order.Price().Equal(l.price), and order.Quantity() > 0.
func (l *PriceLevel) Add(order *Order) {
	l.orders = append(l.orders, order)
}

// Remove deletes the first order matching id, preserving FIFO order
// of the remainder. Reports whether a removal occurred.
func (l *PriceLevel) Remove(id string) bool {
	for i, o := range l.orders {
		if o.ID() == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the order with the given id, if present.
func (l *PriceLevel) Find(id string) (*Order, bool) {
	for _, o := range l.orders {
		if o.ID() == id {
			return o, true
		}
	}
	return nil, false
}

// Front returns the time-priority-winning order for this level.
func (l *PriceLevel) Front() (*Order, bool) {
	if len(l.orders) == 0 {
		return nil, false
	}
	return l.orders[0], true
}

// popFront removes the head order once it is fully consumed by the
// matching loop. It does nothing on an empty level.
func (l *PriceLevel) popFront() {
	if len(l.orders) == 0 {
		return
	}
	l.orders = l.orders[1:]
}

// IsEmpty reports whether the level has no resting orders.
func (l *PriceLevel) IsEmpty() bool { return len(l.orders) == 0 }

// Orders returns the level's orders in FIFO order. The slice is owned
// by the level; callers must not mutate it.
func (l *PriceLevel) Orders() []*Order { return l.orders }

// TotalQuantity sums the remaining quantity of every order resting in
// the level, used by the depth/telemetry snapshot views.
func (l *PriceLevel) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.orders {
		total = total.Add(o.Quantity())
	}
	return total
}
