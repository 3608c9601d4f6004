package match

import (
	"fmt"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of one symbol's book,
// tracking only price levels and their aggregated sizes. It is designed
// for downstream consumers (market-data fan-out) that rebuild depth from
// the BookEvent stream instead of querying the matching path.
type AggregatedBook struct {
	symbol string
	seq    uint64 // last applied event sequence, for gap and duplicate detection
	bids   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	asks   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
}

// NewAggregatedBook creates an empty aggregated view for the symbol.
func NewAggregatedBook(symbol string) *AggregatedBook {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}

	return &AggregatedBook{
		symbol: symbol,
		bids:   treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
		asks:   treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
	}
}

// Sequence returns the last applied event sequence.
func (ab *AggregatedBook) Sequence() uint64 {
	return ab.seq
}

// Apply updates the aggregated state with one book event. Events already
// applied are skipped; a gap in the sequence returns ErrSequenceGap and
// leaves the state unchanged, signalling the consumer to resynchronize.
func (ab *AggregatedBook) Apply(ev *BookEvent) error {
	if ev.Sequence <= ab.seq {
		return nil // duplicate, already applied
	}

	if ev.Sequence != ab.seq+1 {
		return fmt.Errorf("%w: have %d, got %d", ErrSequenceGap, ab.seq, ev.Sequence)
	}

	change := CalculateDepthChange(ev)

	tree := ab.asks
	if change.Side == Buy {
		tree = ab.bids
	}

	size := change.SizeDiff
	if current, ok := tree.Get(change.Price); ok {
		size = current.Add(change.SizeDiff)
	}

	if size.IsPositive() {
		tree.Set(change.Price, size)
	} else {
		tree.Del(change.Price)
	}

	ab.seq = ev.Sequence
	return nil
}

// Rebuild replaces the aggregated state with an authoritative depth
// snapshot and adopts its update id as the new sequence position. Used
// to resynchronize after a detected event gap.
func (ab *AggregatedBook) Rebuild(depth *Depth) {
	ab.bids.Clear()
	ab.asks.Clear()

	for _, item := range depth.Bids {
		ab.bids.Set(item.Price, item.Size)
	}
	for _, item := range depth.Asks {
		ab.asks.Set(item.Price, item.Size)
	}

	ab.seq = depth.UpdateID
}

// Depth returns the aggregated size resting at a price level, or zero if
// the level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) decimal.Decimal {
	tree := ab.asks
	if side == Buy {
		tree = ab.bids
	}

	if size, ok := tree.Get(price); ok {
		return size
	}
	return decimal.Zero
}

// Snapshot returns up to limit levels per side, best price first: bids
// descending, asks ascending.
func (ab *AggregatedBook) Snapshot(limit int) *Depth {
	depth := &Depth{
		Symbol:   ab.symbol,
		UpdateID: ab.seq,
		Bids:     make([]*DepthItem, 0, limit),
		Asks:     make([]*DepthItem, 0, limit),
	}

	for it := ab.bids.Reverse(); it.Valid() && len(depth.Bids) < limit; it.Next() {
		depth.Bids = append(depth.Bids, &DepthItem{Price: it.Key(), Size: it.Value()})
	}

	for it := ab.asks.Iterator(); it.Valid() && len(depth.Asks) < limit; it.Next() {
		depth.Asks = append(depth.Asks, &DepthItem{Price: it.Key(), Size: it.Value()})
	}

	return depth
}
