package matchcore

import (
	"fmt"
	"math"
	"strings"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/shopspring/decimal"
)

// locator records where a resting order lives so Remove/Find don't
// need to scan both sides of the book.
type locator struct {
	side  Side
	price decimal.Decimal
}

// OrderBook is a price-time priority book for a single instrument.
// Each side is a red-black tree keyed by price with a comparator that
// makes the tree's leftmost node the best quote for that side — bids
// use a descending comparator, asks an ascending one — giving O(log n)
// insert/remove and O(log n) best-quote lookup, the "ordered
// associative container" the design notes call for. Within a level,
// price-time priority is a plain FIFO slice.
type OrderBook struct {
	symbol string
	bids   *rbt.Tree[string, *PriceLevel]
	asks   *rbt.Tree[string, *PriceLevel]
	index  map[string]locator
}

// decimalKey renders a canonical fixed-precision string for use as a
// map/tree key. decimal.Decimal preserves the scale it was
// constructed with, so two decimals equal in value ("100" vs "100.0")
// can otherwise stringify differently and split into separate price
// levels; fixing the precision, the way the reference engine keys its
// price levels with "%.8f", avoids that.
func decimalKey(d decimal.Decimal) string { return d.StringFixed(8) }

// NewOrderBook creates an empty order book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	bidCmp := func(a, b string) int {
		return -decimal.RequireFromString(a).Cmp(decimal.RequireFromString(b))
	}
	askCmp := func(a, b string) int {
		return decimal.RequireFromString(a).Cmp(decimal.RequireFromString(b))
	}
	return &OrderBook{
		symbol: symbol,
		bids:   rbt.NewWith[string, *PriceLevel](bidCmp),
		asks:   rbt.NewWith[string, *PriceLevel](askCmp),
		index:  make(map[string]locator),
	}
}

// Symbol returns the instrument this book is for.
func (b *OrderBook) Symbol() string { return b.symbol }

func (b *OrderBook) treeFor(side Side) *rbt.Tree[string, *PriceLevel] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Add inserts a resting limit order into the matching side, creating
// the price level if absent. Returns false (a silent no-op) for a
// non-limit order or one that fails the precondition; the id-
// uniqueness contract means a duplicate id here is undefined
// behavior, not a checked error, matching the original design.
func (b *OrderBook) Add(order *Order) bool {
	if order == nil || order.Kind() != Limit {
		return false
	}
	if order.Price().Sign() <= 0 || order.Quantity().Sign() <= 0 {
		return false
	}

	tree := b.treeFor(order.Side())
	key := decimalKey(order.Price())
	level, found := tree.Get(key)
	if !found {
		level = newPriceLevel(order.Price())
		tree.Put(key, level)
	}
	level.Add(order)
	b.index[order.ID()] = locator{side: order.Side(), price: order.Price()}
	return true
}

// Remove deletes the order with the given id from its resting level,
// pruning the level from the tree if it becomes empty. Reports
// whether a removal occurred.
func (b *OrderBook) Remove(id string) bool {
	loc, ok := b.index[id]
	if !ok {
		return false
	}
	tree := b.treeFor(loc.side)
	key := decimalKey(loc.price)
	level, found := tree.Get(key)
	if !found {
		delete(b.index, id)
		return false
	}
	removed := level.Remove(id)
	if level.IsEmpty() {
		tree.Remove(key)
	}
	delete(b.index, id)
	return removed
}

// Find looks up an order by id without regard to side.
func (b *OrderBook) Find(id string) (*Order, bool) {
	loc, ok := b.index[id]
	if !ok {
		return nil, false
	}
	tree := b.treeFor(loc.side)
	level, found := tree.Get(decimalKey(loc.price))
	if !found {
		return nil, false
	}
	return level.Find(id)
}

// bestLevel returns the level at the top of tree per its comparator.
func bestLevel(tree *rbt.Tree[string, *PriceLevel]) (*PriceLevel, bool) {
	node := tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value, true
}

// BestBid returns the highest-priced resting buy order, if any.
func (b *OrderBook) BestBid() (*Order, bool) {
	level, ok := bestLevel(b.bids)
	if !ok {
		return nil, false
	}
	return level.Front()
}

// BestAsk returns the lowest-priced resting sell order, if any.
func (b *OrderBook) BestAsk() (*Order, bool) {
	level, ok := bestLevel(b.asks)
	if !ok {
		return nil, false
	}
	return level.Front()
}

// bestLevelForSide is used internally by the matching loop.
func (b *OrderBook) bestLevelForSide(side Side) (*PriceLevel, bool) {
	return bestLevel(b.treeFor(side))
}

// removeIfExhausted pops the head order of level once it reaches zero
// quantity, pruning the level/tree entry if it becomes empty. Used
// only from the matching loop, after a fill has zeroed the head
// order's quantity.
func (b *OrderBook) removeIfExhausted(side Side, level *PriceLevel) bool {
	head, ok := level.Front()
	if !ok {
		return false
	}
	if head.Quantity().Sign() != 0 {
		return false
	}
	level.popFront()
	delete(b.index, head.ID())
	if level.IsEmpty() {
		b.treeFor(side).Remove(decimalKey(level.Price()))
	}
	return true
}

// IsEmpty reports whether both sides of the book are empty.
func (b *OrderBook) IsEmpty() bool {
	return b.bids.Empty() && b.asks.Empty()
}

// LevelSnapshot is an aggregated, order-anonymous view of one price
// level, used by the telemetry/gateway ambient layers.
type LevelSnapshot struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int
}

func levelsInOrder(tree *rbt.Tree[string, *PriceLevel], depth int) []LevelSnapshot {
	capacity := tree.Size()
	if depth < capacity {
		capacity = depth
	}
	out := make([]LevelSnapshot, 0, capacity)
	it := tree.Iterator()
	for it.Next() {
		if len(out) >= depth {
			break
		}
		level := it.Value()
		out = append(out, LevelSnapshot{
			Price:      level.Price(),
			Quantity:   level.TotalQuantity(),
			OrderCount: len(level.Orders()),
		})
	}
	return out
}

// Depth returns up to `levels` aggregated price levels per side, best
// price first. Supplemental to matching; used by telemetry/gateway.
func (b *OrderBook) Depth(levels int) (bids, asks []LevelSnapshot) {
	return levelsInOrder(b.bids, levels), levelsInOrder(b.asks, levels)
}

// Render returns a human-readable snapshot: asks descending above a
// separator, bids descending below, each line the price and the
// per-order quantities in time order. Not a contractual format.
func (b *OrderBook) Render() string {
	var sb strings.Builder
	sb.WriteString("ORDER BOOK\n==========\nASKS:\n")

	askLevels := reversed(levelsInOrder(b.asks, math.MaxInt))
	for _, lvl := range askLevels {
		writeLevelLine(&sb, b.asks, lvl.Price)
	}

	sb.WriteString("----------\nBIDS:\n")
	bidLevels := levelsInOrder(b.bids, math.MaxInt)
	for _, lvl := range bidLevels {
		writeLevelLine(&sb, b.bids, lvl.Price)
	}
	return sb.String()
}

func writeLevelLine(sb *strings.Builder, tree *rbt.Tree[string, *PriceLevel], price decimal.Decimal) {
	level, ok := tree.Get(decimalKey(price))
	if !ok {
		return
	}
	fmt.Fprintf(sb, "%s:", price.String())
	for _, o := range level.Orders() {
		fmt.Fprintf(sb, " %s", o.Quantity().String())
	}
	sb.WriteString("\n")
}

// reversed returns a copy of levels in reverse order, used to print
// asks from farthest-from-market to best (descending), the ASKS block
// convention in the illustrative render format.
func reversed(levels []LevelSnapshot) []LevelSnapshot {
	out := make([]LevelSnapshot, len(levels))
	for i, lvl := range levels {
		out[len(levels)-1-i] = lvl
	}
	return out
}
