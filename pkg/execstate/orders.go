package execstate

import (
	"sort"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/orderbook"
)

// ExecuteOrder submits a new taker order against the named pair. order_id
// must never have appeared before (this state's entire lifetime, not just
// the live book — a cancelled or fully-filled id can't be reused). The
// acting user's liquidity on whichever side the order touches is checked
// implicitly: the aggregate balance pass below rejects the whole action if
// any resulting balance would go negative, so there is no separate upfront
// reservation check to keep in sync with it.
func (s *ExecuteState) ExecuteOrder(actingUser entities.Identity, order *entities.Order) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.executeOrder(actingUser, order)
	})
}

func (s *ExecuteState) executeOrder(actingUser entities.Identity, order *entities.Order) ([]events.Event, error) {
	evs, _, err := s.executeOrderRaw(actingUser, order)
	return evs, err
}

// ExecuteOrderWithFills is the same operation as ExecuteOrder but also
// returns the internal Fill[] alongside the canonical events, for callers
// (FullState) that need fill prices to know which OrderPriceLevel a
// now-vanished maker order used to occupy.
func (s *ExecuteState) ExecuteOrderWithFills(actingUser entities.Identity, order *entities.Order) ([]events.Event, []orderbook.Fill, error) {
	clone := s.Clone()
	evs, fills, err := clone.executeOrderRaw(actingUser, order)
	if err != nil {
		return nil, nil, err
	}
	*s = *clone
	return evs, fills, nil
}

func (s *ExecuteState) executeOrderRaw(actingUser entities.Identity, order *entities.Order) ([]events.Event, []orderbook.Fill, error) {
	if _, seen := s.everSeenIDs[order.OrderID]; seen {
		return nil, nil, errs.Validationf("order id %q already used", order.OrderID)
	}
	pairInfo, ok := s.pairs[order.Pair]
	if !ok {
		return nil, nil, errs.Preconditionf("pair %s/%s not registered", order.Pair.Base, order.Pair.Quote)
	}
	if order.Quantity == 0 {
		return nil, nil, errs.Validationf("order quantity must be non-zero")
	}
	if order.Type == entities.OrderTypeLimit && order.Price == 0 {
		return nil, nil, errs.Validationf("limit order requires a non-zero price")
	}
	switch order.Type {
	case entities.OrderTypeStop, entities.OrderTypeStopLimit, entities.OrderTypeStopMarket:
		// Enumerated on the wire (spec.md §3, §9 Open Questions) but never
		// matched: the source has no implementation for these and behavior
		// is explicitly undefined, so they are rejected here rather than
		// inferred from the Limit/Market matching rules.
		return nil, nil, errs.Validationf("order type %v is not matched by this engine", order.Type)
	}

	u, takerKey := s.User(actingUser)

	evs, fills, err := s.manager.ExecuteOrder(takerKey, order)
	if err != nil {
		return nil, nil, err
	}
	s.everSeenIDs[order.OrderID] = struct{}{}

	balanceEvts, err := s.settleFills(takerKey, order.Pair, pairInfo, evs, fills)
	if err != nil {
		return nil, nil, err
	}
	evs = append(evs, balanceEvts...)

	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, nil, err
	}
	return append(evs, nonceEvt), fills, nil
}

// CancelOrder removes a resting order and refunds whatever it still had
// reserved back to its owner.
func (s *ExecuteState) CancelOrder(actingUser entities.Identity, id entities.OrderID) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.cancelOrder(actingUser, id)
	})
}

// CancelOrderWithSnapshot is CancelOrder but also returns the pre-removal
// order snapshot, for callers (FullState) that need the vacated (pair, side,
// price) to locate the queue entity the removal touched.
func (s *ExecuteState) CancelOrderWithSnapshot(actingUser entities.Identity, id entities.OrderID) ([]events.Event, *entities.Order, error) {
	clone := s.Clone()
	evs, snapshot, err := clone.cancelOrderRaw(actingUser, id)
	if err != nil {
		return nil, nil, err
	}
	*s = *clone
	return evs, snapshot, nil
}

func (s *ExecuteState) cancelOrder(actingUser entities.Identity, id entities.OrderID) ([]events.Event, error) {
	evs, _, err := s.cancelOrderRaw(actingUser, id)
	return evs, err
}

func (s *ExecuteState) cancelOrderRaw(actingUser entities.Identity, id entities.OrderID) ([]events.Event, *entities.Order, error) {
	u, actingKey := s.User(actingUser)

	ownerKey, ok := s.manager.Owner(id)
	if !ok {
		return nil, nil, errs.Preconditionf("unknown order %q", id)
	}
	if ownerKey != actingKey {
		return nil, nil, errs.Authf("user %q does not own order %q", actingUser, id)
	}

	snapshot, cancelEvt, err := s.manager.CancelOrder(id)
	if err != nil {
		return nil, nil, err
	}

	pairInfo, ok := s.pairs[snapshot.Pair]
	if !ok {
		return nil, nil, errs.Internalf("cancelled order %q references unregistered pair", id)
	}
	refund := refundAmount(snapshot, pairInfo)
	symbol := refundSymbol(snapshot)
	cur := s.Balance(symbol, ownerKey)
	newAmount, ok2 := addUint64(cur, refund)
	if !ok2 {
		return nil, nil, errs.Arithmeticf("balance overflow refunding %q on cancel", symbol)
	}
	s.setBalance(symbol, ownerKey, newAmount)

	out := []events.Event{cancelEvt, events.BalanceUpdated(actingUser, symbol, newAmount)}
	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, nil, err
	}
	return append(out, nonceEvt), snapshot, nil
}

func refundSymbol(o *entities.Order) entities.Symbol {
	if o.Side == entities.SideBid {
		return o.Pair.Quote
	}
	return o.Pair.Base
}

func refundAmount(o *entities.Order, info entities.PairInfo) uint64 {
	if o.Side == entities.SideBid {
		return quoteAmount(o.Quantity, o.Price, info.Base.Scale)
	}
	return o.Quantity
}

func quoteAmount(quantity, price, baseScale uint64) uint64 {
	return quantity * price / entities.POW10[baseScale]
}

// settleFills applies the aggregate balance-change algorithm for one
// action's event/fill output: OrderCreated reserves liquidity from its
// creator (the acting user, since a maker's OrderCreated always belongs to
// a prior, already-settled action), and every non-self fill transfers base
// from the ask side to the bid side and quote the other way, crediting
// only the side that was not already debited at order-creation time. It
// returns one BalanceUpdated per touched (symbol, user), sorted by symbol
// then user key so every node emits the identical sequence.
func (s *ExecuteState) settleFills(actingKey entities.H256, pair entities.Pair, info entities.PairInfo, evs []events.Event, fills []orderbook.Fill) ([]events.Event, error) {
	type delta struct {
		user   entities.H256
		symbol entities.Symbol
	}
	deltas := make(map[delta]int64)
	add := func(user entities.H256, symbol entities.Symbol, amount int64) {
		deltas[delta{user, symbol}] += amount
	}

	for _, e := range evs {
		if e.Kind != events.KindOrderCreated {
			continue
		}
		o := e.Order
		if o.Side == entities.SideBid {
			add(actingKey, pair.Quote, -int64(quoteAmount(o.Quantity, o.Price, info.Base.Scale)))
		} else {
			add(actingKey, pair.Base, -int64(o.Quantity))
		}
	}

	for _, f := range fills {
		qa := quoteAmount(f.Qty, f.Price, info.Base.Scale)
		// A self-trade (maker and taker are the same user) needs no special
		// case: the formula below credits back exactly what that user's
		// own earlier OrderCreated reserved, since both add() calls land on
		// the same (user, symbol) bucket and net out.
		if f.MakerSide == entities.SideBid {
			add(f.MakerKey, pair.Base, int64(f.Qty))
			add(actingKey, pair.Quote, int64(qa))
			add(actingKey, pair.Base, -int64(f.Qty))
		} else {
			add(f.MakerKey, pair.Quote, int64(qa))
			add(actingKey, pair.Base, int64(f.Qty))
			add(actingKey, pair.Quote, -int64(qa))
		}
	}

	keys := make([]delta, 0, len(deltas))
	for k := range deltas {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].symbol != keys[j].symbol {
			return keys[i].symbol < keys[j].symbol
		}
		return lessH256(keys[i].user, keys[j].user)
	})

	var out []events.Event
	for _, k := range keys {
		amt := deltas[k]
		if amt == 0 {
			continue
		}
		cur := s.Balance(k.symbol, k.user)
		next := int64(cur) + amt
		if next < 0 {
			return nil, errs.Arithmeticf("balance underflow for %q in %q", k.user, k.symbol)
		}
		s.setBalance(k.symbol, k.user, uint64(next))
		var identity entities.Identity
		if owner, ok := s.users[k.user]; ok {
			identity = owner.User
		}
		out = append(out, events.BalanceUpdated(identity, k.symbol, uint64(next)))
	}
	return out, nil
}

func lessH256(a, b entities.H256) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
