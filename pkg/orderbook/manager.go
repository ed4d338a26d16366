// Package orderbook implements the Order Manager (component C3): a
// price-time-priority book per trading pair with FIFO queues at each price
// level and heap-based best-price tracking. Adapted from the exchange's
// original single-market OrderBook (container/heap price tracking, FIFO
// price-level slices, an owner index for O(1) cancel) generalized to one
// book per entities.Pair and to the spec's limit/market matching rules
// instead of the original's GTC/IOC order types.
package orderbook

import (
	"container/heap"
	"sort"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
)

// Fill is an internal (non-wire) record of one maker/taker match, used by
// ExecuteState to aggregate balance changes and by FullState to know which
// price a touched OrderPriceLevel settled at. It is never serialized onto
// the wire or into the commitment; the committed record of a match is the
// Event[] sequence alone.
type Fill struct {
	TakerOrderID entities.OrderID
	MakerOrderID entities.OrderID
	MakerKey     entities.H256
	MakerSide    entities.Side
	Price        uint64
	Qty          uint64
}

type book struct {
	bidHeap   MaxPriceHeap
	askHeap   MinPriceHeap
	bidQueues map[uint64][]entities.OrderID
	askQueues map[uint64][]entities.OrderID
}

func newBook() *book {
	return &book{
		bidQueues: make(map[uint64][]entities.OrderID),
		askQueues: make(map[uint64][]entities.OrderID),
	}
}

func (b *book) queues(side entities.Side) map[uint64][]entities.OrderID {
	if side == entities.SideBid {
		return b.bidQueues
	}
	return b.askQueues
}

func (b *book) bestPrice(side entities.Side) (uint64, bool) {
	if side == entities.SideBid {
		return b.bidHeap.Peek()
	}
	return b.askHeap.Peek()
}

func (b *book) pushPrice(side entities.Side, price uint64) {
	if side == entities.SideBid {
		heap.Push(&b.bidHeap, price)
	} else {
		heap.Push(&b.askHeap, price)
	}
}

func (b *book) removePrice(side entities.Side, price uint64) {
	h := &b.bidHeap
	if side == entities.SideAsk {
		for i := 0; i < b.askHeap.Len(); i++ {
			if b.askHeap[i] == price {
				heap.Remove(&b.askHeap, i)
				return
			}
		}
		return
	}
	for i := 0; i < h.Len(); i++ {
		if (*h)[i] == price {
			heap.Remove(h, i)
			return
		}
	}
}

// Manager is the price-time-priority order manager for every trading pair.
// It owns all resting orders; it is the only component that mutates the
// book, and per the concurrency model it is always invoked from inside the
// single writer, so it carries no locking of its own.
type Manager struct {
	orders  map[entities.OrderID]*entities.Order
	ownerOf map[entities.OrderID]entities.H256
	books   map[entities.Pair]*book
}

func NewManager() *Manager {
	return &Manager{
		orders:  make(map[entities.OrderID]*entities.Order),
		ownerOf: make(map[entities.OrderID]entities.H256),
		books:   make(map[entities.Pair]*book),
	}
}

// Clone returns a deep copy of the manager, including every resting order
// and per-pair book, so ExecuteState can stage a whole action against a
// throwaway copy before committing it.
func (m *Manager) Clone() *Manager {
	out := &Manager{
		orders:  make(map[entities.OrderID]*entities.Order, len(m.orders)),
		ownerOf: make(map[entities.OrderID]entities.H256, len(m.ownerOf)),
		books:   make(map[entities.Pair]*book, len(m.books)),
	}
	for id, o := range m.orders {
		cp := *o
		out.orders[id] = &cp
	}
	for id, k := range m.ownerOf {
		out.ownerOf[id] = k
	}
	for pair, b := range m.books {
		nb := &book{
			bidHeap:   append(MaxPriceHeap(nil), b.bidHeap...),
			askHeap:   append(MinPriceHeap(nil), b.askHeap...),
			bidQueues: make(map[uint64][]entities.OrderID, len(b.bidQueues)),
			askQueues: make(map[uint64][]entities.OrderID, len(b.askQueues)),
		}
		for price, ids := range b.bidQueues {
			nb.bidQueues[price] = append([]entities.OrderID(nil), ids...)
		}
		for price, ids := range b.askQueues {
			nb.askQueues[price] = append([]entities.OrderID(nil), ids...)
		}
		out.books[pair] = nb
	}
	return out
}

func (m *Manager) bookFor(pair entities.Pair) *book {
	b, ok := m.books[pair]
	if !ok {
		b = newBook()
		m.books[pair] = b
	}
	return b
}

// Order returns the current resting snapshot for id, if any.
func (m *Manager) Order(id entities.OrderID) (*entities.Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// Owner returns the user key that owns resting order id.
func (m *Manager) Owner(id entities.OrderID) (entities.H256, bool) {
	k, ok := m.ownerOf[id]
	return k, ok
}

// PriceLevel reconstructs the current OrderPriceLevel entity for (pair,
// side, price), used by FullState to build SMT entries and witnesses.
func (m *Manager) PriceLevel(pair entities.Pair, side entities.Side, price uint64) *entities.OrderPriceLevel {
	b := m.bookFor(pair)
	ids := b.queues(side)[price]
	out := &entities.OrderPriceLevel{Pair: pair, Price: price}
	out.OrderIDs = append(out.OrderIDs, ids...)
	return out
}

// PriceLevelSnapshot is a read-only (price, aggregate quantity) view of one
// resting queue, for pkg/api's orderbook query endpoint. It is never part of
// any committed structure.
type PriceLevelSnapshot struct {
	Price    uint64
	Quantity uint64
}

// Snapshot returns pair's current depth, bids sorted best-first (highest
// price) and asks sorted best-first (lowest price).
func (m *Manager) Snapshot(pair entities.Pair) (bids, asks []PriceLevelSnapshot) {
	b, ok := m.books[pair]
	if !ok {
		return nil, nil
	}
	bids = m.levelsOf(b.bidQueues)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	asks = m.levelsOf(b.askQueues)
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return bids, asks
}

func (m *Manager) levelsOf(queues map[uint64][]entities.OrderID) []PriceLevelSnapshot {
	out := make([]PriceLevelSnapshot, 0, len(queues))
	for price, ids := range queues {
		var qty uint64
		for _, id := range ids {
			if o, ok := m.orders[id]; ok {
				qty += o.Quantity
			}
		}
		out = append(out, PriceLevelSnapshot{Price: price, Quantity: qty})
	}
	return out
}

// InsertOrder rests a limit order at the tail of its (pair, price) queue.
// Limit-only; price must be non-zero.
func (m *Manager) InsertOrder(order *entities.Order, ownerKey entities.H256) (events.Event, error) {
	if order.Type != entities.OrderTypeLimit {
		return events.Event{}, errs.Validationf("only limit orders can rest")
	}
	if order.Price == 0 {
		return events.Event{}, errs.Validationf("limit order requires a non-zero price")
	}
	if _, exists := m.orders[order.OrderID]; exists {
		return events.Event{}, errs.Validationf("duplicate order id %q", order.OrderID)
	}
	m.insertLocked(order, ownerKey)
	return events.OrderCreated(order), nil
}

func (m *Manager) insertLocked(order *entities.Order, ownerKey entities.H256) {
	b := m.bookFor(order.Pair)
	q := b.queues(order.Side)
	if len(q[order.Price]) == 0 {
		b.pushPrice(order.Side, order.Price)
	}
	q[order.Price] = append(q[order.Price], order.OrderID)
	m.orders[order.OrderID] = order
	m.ownerOf[order.OrderID] = ownerKey
}

// CancelOrder removes a resting order, returning its pre-removal snapshot
// (the caller needs price/side/quantity for refund computation and SMT
// touch collection, both of which run after the order is already gone from
// the live book).
func (m *Manager) CancelOrder(id entities.OrderID) (*entities.Order, events.Event, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, events.Event{}, errs.Preconditionf("unknown order %q", id)
	}
	snapshot := *order

	b := m.bookFor(order.Pair)
	q := b.queues(order.Side)
	queue := q[order.Price]
	for i, qid := range queue {
		if qid == id {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(q, order.Price)
		b.removePrice(order.Side, order.Price)
	} else {
		q[order.Price] = queue
	}
	delete(m.orders, id)
	delete(m.ownerOf, id)

	return &snapshot, events.OrderCancelled(id, order.Pair), nil
}

func (m *Manager) removeFront(b *book, side entities.Side, price uint64) {
	q := b.queues(side)
	queue := q[price]
	if len(queue) == 0 {
		return
	}
	id := queue[0]
	queue = queue[1:]
	if len(queue) == 0 {
		delete(q, price)
		b.removePrice(side, price)
	} else {
		q[price] = queue
	}
	delete(m.orders, id)
	delete(m.ownerOf, id)
}

// ExecuteOrder runs the matching loop for an incoming taker order, against
// the opposite side's book for its pair. It returns the canonical Event[]
// the action produced plus the internal Fill[] used for balance
// aggregation; taker.Quantity is mutated in place to its final remaining
// quantity (0 if fully consumed, otherwise the resting remainder).
func (m *Manager) ExecuteOrder(takerKey entities.H256, taker *entities.Order) ([]events.Event, []Fill, error) {
	if _, exists := m.orders[taker.OrderID]; exists {
		return nil, nil, errs.Validationf("duplicate order id %q", taker.OrderID)
	}

	pair := taker.Pair
	counterSide := taker.Side.Opposite()
	b := m.bookFor(pair)

	var out []events.Event
	var fills []Fill
	remaining := taker.Quantity

matchLoop:
	for remaining > 0 {
		price, ok := b.bestPrice(counterSide)
		if !ok {
			if taker.Type == entities.OrderTypeMarket {
				if len(fills) == 0 {
					return nil, nil, errs.Preconditionf("no matching orders")
				}
				return nil, nil, errs.Preconditionf("insufficient counter liquidity for market order")
			}
			break matchLoop
		}

		if taker.Type != entities.OrderTypeMarket {
			var crosses bool
			if taker.Side == entities.SideBid {
				crosses = price <= taker.Price
			} else {
				crosses = price >= taker.Price
			}
			if !crosses {
				break matchLoop
			}
		}

		queue := b.queues(counterSide)[price]
		if len(queue) == 0 {
			delete(b.queues(counterSide), price)
			b.removePrice(counterSide, price)
			continue
		}
		existingID := queue[0]
		existing := m.orders[existingID]
		makerKey := m.ownerOf[existingID]

		switch {
		case existing.Quantity > remaining:
			existing.Quantity -= remaining
			out = append(out, events.OrderUpdate(existing.OrderID, taker.OrderID, remaining, existing.Quantity, pair))
			fills = append(fills, Fill{
				TakerOrderID: taker.OrderID, MakerOrderID: existing.OrderID,
				MakerKey: makerKey, MakerSide: existing.Side, Price: price, Qty: remaining,
			})
			remaining = 0

		case existing.Quantity == remaining:
			out = append(out, events.OrderExecuted(existing.OrderID, taker.OrderID, pair))
			fills = append(fills, Fill{
				TakerOrderID: taker.OrderID, MakerOrderID: existing.OrderID,
				MakerKey: makerKey, MakerSide: existing.Side, Price: price, Qty: remaining,
			})
			m.removeFront(b, counterSide, price)
			remaining = 0

		default: // existing.Quantity < remaining
			out = append(out, events.OrderExecuted(existing.OrderID, taker.OrderID, pair))
			fills = append(fills, Fill{
				TakerOrderID: taker.OrderID, MakerOrderID: existing.OrderID,
				MakerKey: makerKey, MakerSide: existing.Side, Price: price, Qty: existing.Quantity,
			})
			remaining -= existing.Quantity
			m.removeFront(b, counterSide, price)
		}
	}

	taker.Quantity = remaining

	if remaining == 0 {
		out = append(out, events.OrderExecuted(taker.OrderID, taker.OrderID, pair))
		return out, fills, nil
	}

	if taker.Type == entities.OrderTypeLimit {
		rest := *taker
		m.insertLocked(&rest, takerKey)
		out = append(out, events.OrderCreated(&rest))
		return out, fills, nil
	}

	// A market order never leaves the loop with quantity remaining (it
	// returns from inside it), so only a taker that is neither Limit nor
	// Market reaches this point.
	if len(fills) == 0 {
		return nil, nil, errs.Preconditionf("no matching orders")
	}
	return nil, nil, errs.Preconditionf("insufficient counter liquidity for market order")
}
