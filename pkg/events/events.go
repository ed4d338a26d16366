// Package events defines the canonical event log the execution core emits.
// Every Execute/Full/ZkVm-mode operation returns the same Event[] sequence
// for the same action; this is what apply_events replays and what FullState
// collects entity-touch sets from.
package events

import "github.com/hyli-org/hyliquid-sub000/pkg/entities"

type Kind uint8

const (
	KindOrderCreated Kind = iota
	KindOrderCancelled
	KindOrderExecuted
	KindOrderUpdate
	KindPairCreated
	KindSessionKeyAdded
	KindBalanceUpdated
	KindNonceIncremented
)

// Event is a tagged union over the eight event kinds the spec names. Only
// the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	// OrderCreated
	Order *entities.Order

	// OrderCancelled
	OrderID entities.OrderID
	Pair    entities.Pair

	// OrderExecuted / OrderUpdate
	TakerOrderID      entities.OrderID
	ExecutedQuantity  uint64
	RemainingQuantity uint64

	// PairCreated
	PairInfo *entities.PairInfo

	// SessionKeyAdded
	PublicKey []byte

	// BalanceUpdated
	User      entities.Identity
	Symbol    entities.Symbol
	NewAmount uint64

	// SessionKeyAdded / NonceIncremented / BalanceUpdated share User.
}

func OrderCreated(o *entities.Order) Event {
	return Event{Kind: KindOrderCreated, Order: o, OrderID: o.OrderID, Pair: o.Pair}
}

func OrderCancelled(id entities.OrderID, pair entities.Pair) Event {
	return Event{Kind: KindOrderCancelled, OrderID: id, Pair: pair}
}

// OrderExecuted fires for the maker when makerOrderID != takerOrderID, and
// once more for the taker itself (makerOrderID == takerOrderID) to signal
// full consumption.
func OrderExecuted(makerOrderID, takerOrderID entities.OrderID, pair entities.Pair) Event {
	return Event{Kind: KindOrderExecuted, OrderID: makerOrderID, TakerOrderID: takerOrderID, Pair: pair}
}

func OrderUpdate(makerOrderID, takerOrderID entities.OrderID, executed, remaining uint64, pair entities.Pair) Event {
	return Event{
		Kind:              KindOrderUpdate,
		OrderID:           makerOrderID,
		TakerOrderID:      takerOrderID,
		ExecutedQuantity:  executed,
		RemainingQuantity: remaining,
		Pair:              pair,
	}
}

func PairCreated(pair entities.Pair, info *entities.PairInfo) Event {
	return Event{Kind: KindPairCreated, Pair: pair, PairInfo: info}
}

func SessionKeyAdded(user entities.Identity, pub []byte) Event {
	return Event{Kind: KindSessionKeyAdded, User: user, PublicKey: pub}
}

func BalanceUpdated(user entities.Identity, symbol entities.Symbol, newAmount uint64) Event {
	return Event{Kind: KindBalanceUpdated, User: user, Symbol: symbol, NewAmount: newAmount}
}

func NonceIncremented(user entities.Identity) Event {
	return Event{Kind: KindNonceIncremented, User: user}
}

// IsSelfMatch reports whether an OrderExecuted/OrderUpdate event describes
// the taker's own completion record rather than a maker fill — these are
// skipped by the balance-aggregation pass (the taker's side is already
// accounted for via its creation-time reservation or the matching
// transfers against makers).
func (e Event) IsSelfMatch() bool {
	return (e.Kind == KindOrderExecuted || e.Kind == KindOrderUpdate) && e.OrderID == e.TakerOrderID
}
