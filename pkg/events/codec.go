package events

import (
	"fmt"

	"github.com/hyli-org/hyliquid-sub000/pkg/codec"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

// Serialize writes an Event in the canonical binary form used for the
// event log and for round-trip testing.
func (e Event) Serialize() []byte {
	w := codec.NewWriter()
	w.U8(uint8(e.Kind))
	switch e.Kind {
	case KindOrderCreated:
		writeOrder(w, e.Order)
	case KindOrderCancelled:
		w.String(string(e.OrderID))
		writePair(w, e.Pair)
	case KindOrderExecuted:
		w.String(string(e.OrderID))
		w.String(string(e.TakerOrderID))
		writePair(w, e.Pair)
	case KindOrderUpdate:
		w.String(string(e.OrderID))
		w.String(string(e.TakerOrderID))
		w.U64(e.ExecutedQuantity)
		w.U64(e.RemainingQuantity)
		writePair(w, e.Pair)
	case KindPairCreated:
		writePair(w, e.Pair)
		writeAssetInfo(w, e.PairInfo.Base)
		writeAssetInfo(w, e.PairInfo.Quote)
	case KindSessionKeyAdded:
		w.String(string(e.User))
		w.Bytes(e.PublicKey)
	case KindBalanceUpdated:
		w.String(string(e.User))
		w.String(string(e.Symbol))
		w.U64(e.NewAmount)
	case KindNonceIncremented:
		w.String(string(e.User))
	}
	return w.Finish()
}

func writeOrder(w *codec.Writer, o *entities.Order) {
	w.String(string(o.OrderID))
	w.U8(uint8(o.Type))
	w.U8(uint8(o.Side))
	w.U64(o.Price)
	writePair(w, o.Pair)
	w.U64(o.Quantity)
}

func writePair(w *codec.Writer, p entities.Pair) {
	w.String(string(p.Base))
	w.String(string(p.Quote))
}

func writeAssetInfo(w *codec.Writer, a entities.AssetInfo) {
	w.U64(a.Scale)
	w.String(a.ContractName)
}

// Deserialize parses a single canonical-form event.
func Deserialize(b []byte) (Event, error) {
	r := codec.NewReader(b)
	kindByte, err := r.U8()
	if err != nil {
		return Event{}, err
	}
	kind := Kind(kindByte)
	var e Event
	e.Kind = kind
	switch kind {
	case KindOrderCreated:
		o, err := readOrder(r)
		if err != nil {
			return Event{}, err
		}
		e.Order = o
		e.OrderID = o.OrderID
		e.Pair = o.Pair
	case KindOrderCancelled:
		id, err := r.String()
		if err != nil {
			return Event{}, err
		}
		pair, err := readPair(r)
		if err != nil {
			return Event{}, err
		}
		e.OrderID = entities.OrderID(id)
		e.Pair = pair
	case KindOrderExecuted:
		mk, err := r.String()
		if err != nil {
			return Event{}, err
		}
		tk, err := r.String()
		if err != nil {
			return Event{}, err
		}
		pair, err := readPair(r)
		if err != nil {
			return Event{}, err
		}
		e.OrderID = entities.OrderID(mk)
		e.TakerOrderID = entities.OrderID(tk)
		e.Pair = pair
	case KindOrderUpdate:
		mk, err := r.String()
		if err != nil {
			return Event{}, err
		}
		tk, err := r.String()
		if err != nil {
			return Event{}, err
		}
		exec, err := r.U64()
		if err != nil {
			return Event{}, err
		}
		rem, err := r.U64()
		if err != nil {
			return Event{}, err
		}
		pair, err := readPair(r)
		if err != nil {
			return Event{}, err
		}
		e.OrderID = entities.OrderID(mk)
		e.TakerOrderID = entities.OrderID(tk)
		e.ExecutedQuantity = exec
		e.RemainingQuantity = rem
		e.Pair = pair
	case KindPairCreated:
		pair, err := readPair(r)
		if err != nil {
			return Event{}, err
		}
		base, err := readAssetInfo(r)
		if err != nil {
			return Event{}, err
		}
		quote, err := readAssetInfo(r)
		if err != nil {
			return Event{}, err
		}
		e.Pair = pair
		e.PairInfo = &entities.PairInfo{Base: base, Quote: quote}
	case KindSessionKeyAdded:
		user, err := r.String()
		if err != nil {
			return Event{}, err
		}
		pub, err := r.Bytes()
		if err != nil {
			return Event{}, err
		}
		e.User = entities.Identity(user)
		e.PublicKey = pub
	case KindBalanceUpdated:
		user, err := r.String()
		if err != nil {
			return Event{}, err
		}
		symbol, err := r.String()
		if err != nil {
			return Event{}, err
		}
		amount, err := r.U64()
		if err != nil {
			return Event{}, err
		}
		e.User = entities.Identity(user)
		e.Symbol = entities.Symbol(symbol)
		e.NewAmount = amount
	case KindNonceIncremented:
		user, err := r.String()
		if err != nil {
			return Event{}, err
		}
		e.User = entities.Identity(user)
	default:
		return Event{}, fmt.Errorf("events: unknown event kind %d", kindByte)
	}
	return e, nil
}

func readOrder(r *codec.Reader) (*entities.Order, error) {
	id, err := r.String()
	if err != nil {
		return nil, err
	}
	typ, err := r.U8()
	if err != nil {
		return nil, err
	}
	side, err := r.U8()
	if err != nil {
		return nil, err
	}
	price, err := r.U64()
	if err != nil {
		return nil, err
	}
	pair, err := readPair(r)
	if err != nil {
		return nil, err
	}
	qty, err := r.U64()
	if err != nil {
		return nil, err
	}
	return &entities.Order{
		OrderID:  entities.OrderID(id),
		Type:     entities.OrderType(typ),
		Side:     entities.Side(side),
		Price:    price,
		Pair:     pair,
		Quantity: qty,
	}, nil
}

func readPair(r *codec.Reader) (entities.Pair, error) {
	base, err := r.String()
	if err != nil {
		return entities.Pair{}, err
	}
	quote, err := r.String()
	if err != nil {
		return entities.Pair{}, err
	}
	return entities.Pair{Base: entities.Symbol(base), Quote: entities.Symbol(quote)}, nil
}

func readAssetInfo(r *codec.Reader) (entities.AssetInfo, error) {
	scale, err := r.U64()
	if err != nil {
		return entities.AssetInfo{}, err
	}
	name, err := r.String()
	if err != nil {
		return entities.AssetInfo{}, err
	}
	return entities.AssetInfo{Scale: scale, ContractName: name}, nil
}
