package kalshi

import (
	"fmt"
	"sort"
)

// Orderbook reconstructs one market's resting liquidity from the feed's
// snapshot and delta messages. Prices are cents in [1,99]; yes and no are
// the two complementary sides (yes_price + no_price = 100 at a level).
//
// The book does not lock internally. It is safe under a single writer,
// which in practice is the feed's dispatch goroutine; see Feed.On.
type Orderbook struct {
	ticker string
	yes    map[int]int
	no     map[int]int
}

// Side selects one half of the book.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// NewOrderbook returns an empty book for ticker.
func NewOrderbook(ticker string) *Orderbook {
	return &Orderbook{
		ticker: ticker,
		yes:    make(map[int]int),
		no:     make(map[int]int),
	}
}

// Ticker returns the market this book tracks.
func (b *Orderbook) Ticker() string { return b.ticker }

// ApplySnapshot replaces both sides wholesale with the given
// (price, quantity) pairs. Prior state is discarded unconditionally:
// an out-of-order snapshot simply resets the book, there is no merging.
func (b *Orderbook) ApplySnapshot(yes, no [][2]int) {
	b.yes = make(map[int]int, len(yes))
	for _, lvl := range yes {
		if lvl[1] > 0 {
			b.yes[lvl[0]] = lvl[1]
		}
	}
	b.no = make(map[int]int, len(no))
	for _, lvl := range no {
		if lvl[1] > 0 {
			b.no[lvl[0]] = lvl[1]
		}
	}
}

// ApplyDelta adds the signed quantity delta at price on the given side.
// A level whose quantity drops to zero or below is removed, never stored.
// A delta arriving before any snapshot mutates the empty book; the view
// is inconsistent until the next snapshot, which is how the exchange's
// feed protocol defines recovery.
func (b *Orderbook) ApplyDelta(side Side, price, delta int) error {
	if price < 1 || price > 99 {
		return fmt.Errorf("orderbook %s: price %d out of range [1,99]", b.ticker, price)
	}

	var levels map[int]int
	switch side {
	case SideYes:
		levels = b.yes
	case SideNo:
		levels = b.no
	default:
		return fmt.Errorf("orderbook %s: unknown side %q", b.ticker, side)
	}

	levels[price] += delta
	if levels[price] <= 0 {
		delete(levels, price)
	}
	return nil
}

// Apply routes a feed message into the book. Messages for other markets
// or of unrelated types are ignored.
func (b *Orderbook) Apply(msg Message) error {
	switch m := msg.(type) {
	case *OrderbookSnapshotMessage:
		if m.Ticker == b.ticker {
			b.ApplySnapshot(m.Yes, m.No)
		}
	case *OrderbookDeltaMessage:
		if m.Ticker == b.ticker {
			return b.ApplyDelta(Side(m.Side), m.Price, m.Delta)
		}
	}
	return nil
}

// BestBid returns the highest yes price with resting quantity.
// ok is false when the yes side is empty.
func (b *Orderbook) BestBid() (price int, ok bool) {
	return maxPrice(b.yes)
}

// BestAsk returns the lowest price at which yes can be bought, derived
// from the complementary no side: 100 minus the highest no price with
// resting quantity. ok is false when the no side is empty.
func (b *Orderbook) BestAsk() (price int, ok bool) {
	p, ok := maxPrice(b.no)
	if !ok {
		return 0, false
	}
	return 100 - p, true
}

// Spread returns BestAsk − BestBid; ok is false unless both sides have
// resting quantity.
func (b *Orderbook) Spread() (int, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// Depth returns the total resting quantity on one side.
func (b *Orderbook) Depth(side Side) int {
	levels := b.yes
	if side == SideNo {
		levels = b.no
	}
	total := 0
	for _, qty := range levels {
		total += qty
	}
	return total
}

// Levels returns one side as (price, quantity) pairs sorted by ascending
// price. The slice is a copy.
func (b *Orderbook) Levels(side Side) [][2]int {
	levels := b.yes
	if side == SideNo {
		levels = b.no
	}
	if len(levels) == 0 {
		return nil
	}
	out := make([][2]int, 0, len(levels))
	for price, qty := range levels {
		out = append(out, [2]int{price, qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func maxPrice(levels map[int]int) (int, bool) {
	best := 0
	for price, qty := range levels {
		if qty > 0 && price > best {
			best = price
		}
	}
	return best, best != 0
}
