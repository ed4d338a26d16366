package actions

import (
	"fmt"

	"github.com/hyli-org/hyliquid-sub000/pkg/codec"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
)

// Serialize writes a in the canonical binary form used for calldata and for
// the event-log record of which action produced a given batch.
func (a *OrderbookAction) Serialize() []byte {
	w := codec.NewWriter()
	w.U8(uint8(a.Kind))
	w.String(string(a.Identity))
	w.U32(a.Nonce)

	switch a.Kind {
	case KindIdentify:
		// No further fields.
	case KindAddSessionKey:
		w.Bytes(a.PublicKey)
	case KindCreatePair:
		w.String(string(a.Pair.Base))
		w.String(string(a.Pair.Quote))
		w.U64(a.PairInfo.Base.Scale)
		w.String(a.PairInfo.Base.ContractName)
		w.U64(a.PairInfo.Quote.Scale)
		w.String(a.PairInfo.Quote.ContractName)
	case KindDeposit:
		w.String(string(a.Symbol))
		w.U64(a.Amount)
		w.String(a.ChainRef)
	case KindCreateOrder:
		w.String(string(a.Order.OrderID))
		w.U8(uint8(a.Order.Type))
		w.U8(uint8(a.Order.Side))
		w.U64(a.Order.Price)
		w.String(string(a.Order.Pair.Base))
		w.String(string(a.Order.Pair.Quote))
		w.U64(a.Order.Quantity)
		w.Bytes(a.Signature)
	case KindCancel:
		w.String(string(a.OrderID))
		w.Bytes(a.Signature)
	case KindWithdraw:
		w.String(string(a.Symbol))
		w.U64(a.Amount)
		w.String(a.Destination)
		w.Bytes(a.Signature)
	case KindEscape:
		w.Raw32(a.UserKey)
		w.Raw32(a.LeafHash)
		var proofBytes []byte
		if a.Proof != nil {
			proofBytes = a.Proof.Serialize()
		}
		w.Bytes(proofBytes)
	}
	return w.Finish()
}

// Deserialize parses the form Serialize writes.
func Deserialize(b []byte) (*OrderbookAction, error) {
	r := codec.NewReader(b)
	kindByte, err := r.U8()
	if err != nil {
		return nil, err
	}
	a := &OrderbookAction{Kind: Kind(kindByte)}

	identity, err := r.String()
	if err != nil {
		return nil, err
	}
	a.Identity = entities.Identity(identity)

	a.Nonce, err = r.U32()
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case KindIdentify:
		// Nothing further.

	case KindAddSessionKey:
		a.PublicKey, err = r.Bytes()
		if err != nil {
			return nil, err
		}

	case KindCreatePair:
		base, err := r.String()
		if err != nil {
			return nil, err
		}
		quote, err := r.String()
		if err != nil {
			return nil, err
		}
		a.Pair = entities.Pair{Base: entities.Symbol(base), Quote: entities.Symbol(quote)}
		baseScale, err := r.U64()
		if err != nil {
			return nil, err
		}
		baseContract, err := r.String()
		if err != nil {
			return nil, err
		}
		quoteScale, err := r.U64()
		if err != nil {
			return nil, err
		}
		quoteContract, err := r.String()
		if err != nil {
			return nil, err
		}
		a.PairInfo = entities.PairInfo{
			Base:  entities.AssetInfo{Scale: baseScale, ContractName: baseContract},
			Quote: entities.AssetInfo{Scale: quoteScale, ContractName: quoteContract},
		}

	case KindDeposit:
		symbol, err := r.String()
		if err != nil {
			return nil, err
		}
		amount, err := r.U64()
		if err != nil {
			return nil, err
		}
		chainRef, err := r.String()
		if err != nil {
			return nil, err
		}
		a.Symbol = entities.Symbol(symbol)
		a.Amount = amount
		a.ChainRef = chainRef

	case KindCreateOrder:
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
		base, err := r.String()
		if err != nil {
			return nil, err
		}
		quote, err := r.String()
		if err != nil {
			return nil, err
		}
		qty, err := r.U64()
		if err != nil {
			return nil, err
		}
		sig, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		a.Order = &entities.Order{
			OrderID:  entities.OrderID(id),
			Type:     entities.OrderType(typ),
			Side:     entities.Side(side),
			Price:    price,
			Pair:     entities.Pair{Base: entities.Symbol(base), Quote: entities.Symbol(quote)},
			Quantity: qty,
		}
		a.Signature = sig

	case KindCancel:
		id, err := r.String()
		if err != nil {
			return nil, err
		}
		sig, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		a.OrderID = entities.OrderID(id)
		a.Signature = sig

	case KindWithdraw:
		symbol, err := r.String()
		if err != nil {
			return nil, err
		}
		amount, err := r.U64()
		if err != nil {
			return nil, err
		}
		destination, err := r.String()
		if err != nil {
			return nil, err
		}
		sig, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		a.Symbol = entities.Symbol(symbol)
		a.Amount = amount
		a.Destination = destination
		a.Signature = sig

	case KindEscape:
		userKey, err := r.Raw32()
		if err != nil {
			return nil, err
		}
		leafHash, err := r.Raw32()
		if err != nil {
			return nil, err
		}
		proofBytes, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		a.UserKey = userKey
		a.LeafHash = leafHash
		if len(proofBytes) > 0 {
			proof, err := smt.DeserializeMultiProof(proofBytes)
			if err != nil {
				return nil, err
			}
			a.Proof = proof
		}

	default:
		return nil, fmt.Errorf("actions: unknown action kind %d", kindByte)
	}
	return a, nil
}
