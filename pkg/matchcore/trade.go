package matchcore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a single fill between a buy and a
// sell order. It is created once by the matching loop and never
// mutated afterward.
type Trade struct {
	Sequence     uint64
	BuyOrderID   string
	SellOrderID  string
	BuyTraderID  string
	SellTraderID string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Timestamp    time.Time
}

// String renders a single log line: timestamp, quantity, price, and
// both sides' trader+order id. Not a contractual format — consumed
// only by logs and the ambient gateway/bus layers.
func (t Trade) String() string {
	return t.Timestamp.Format(time.RFC3339Nano) + " " +
		t.Quantity.String() + "@" + t.Price.String() +
		" buy=" + t.BuyTraderID + "/" + t.BuyOrderID +
		" sell=" + t.SellTraderID + "/" + t.SellOrderID
}
