// Package entities defines the committed data model: users, assets, pairs,
// balances, and orders, with the keying and leaf-hashing rules every
// authenticated container in pkg/smt relies on.
//
// The load-bearing rule, repeated at every entity below: whatever counts as
// that entity's "primary quantity" (a nonce, an amount, a resting quantity,
// a queue length) hashing to zero when that quantity is zero. That
// collapses "deleted" and "never existed" into the same leaf, which is what
// makes non-inclusion proofs work without a separate tombstone mechanism.
package entities

import (
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/hyli-org/hyliquid-sub000/pkg/codec"
)

// H256 is a 32-byte hash, used as the key in every authenticated mapping.
type H256 [32]byte

var ZeroH256 H256

func (h H256) IsZero() bool { return h == ZeroH256 }

func Hash(b []byte) H256 {
	return H256(sha3.Sum256(b))
}

func HashConcat(parts ...[]byte) H256 {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out H256
	copy(out[:], h.Sum(nil))
	return out
}

// POW10 is the pre-computed table used in price/scale math. AssetInfo.Scale
// must stay under len(POW10) (20), per the spec's scale bound invariant.
var POW10 = [20]uint64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000,
	10000000000, 100000000000, 1000000000000, 10000000000000, 100000000000000,
	1000000000000000, 10000000000000000, 100000000000000000, 1000000000000000000,
	10000000000000000000,
}

type Identity string
type Symbol string
type OrderID string

type Pair struct {
	Base  Symbol
	Quote Symbol
}

type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeStop
	OrderTypeStopLimit
	OrderTypeStopMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypeStop:
		return "stop"
	case OrderTypeStopLimit:
		return "stop_limit"
	case OrderTypeStopMarket:
		return "stop_market"
	default:
		return "unknown"
	}
}

type Side uint8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// UserInfo is keyed by SHA3_256(user || salt); its leaf is zero while the
// user has never completed a permissioned action (nonce==0).
type UserInfo struct {
	User        Identity
	Salt        []byte
	Nonce       uint32
	SessionKeys [][]byte
}

func NewUserInfo(user Identity, salt []byte) *UserInfo {
	return &UserInfo{User: user, Salt: salt, Nonce: 0}
}

func (u *UserInfo) Key() H256 {
	return HashConcat([]byte(u.User), u.Salt)
}

func (u *UserInfo) HasSessionKey(pub []byte) bool {
	for _, k := range u.SessionKeys {
		if string(k) == string(pub) {
			return true
		}
	}
	return false
}

func (u *UserInfo) serialize() []byte {
	w := codec.NewWriter()
	w.String(string(u.User))
	w.Bytes(u.Salt)
	w.U32(u.Nonce)
	w.U32(uint32(len(u.SessionKeys)))
	for _, k := range u.SessionKeys {
		w.Bytes(k)
	}
	return w.Finish()
}

func (u *UserInfo) ToH256() H256 {
	if u == nil || u.Nonce == 0 {
		return ZeroH256
	}
	return Hash(u.serialize())
}

// AssetInfo is stored in a plain map (never committed as its own SMT); its
// values ride along inside the commitment's `assets` field verbatim.
type AssetInfo struct {
	Scale        uint64
	ContractName string
}

type PairInfo struct {
	Base  AssetInfo
	Quote AssetInfo
}

// Balance is a plain u64 amount, keyed by the owning user's H256 key within
// a per-symbol tree. Its leaf is zero exactly when the amount is zero.
type Balance uint64

func (b Balance) ToH256() H256 {
	if b == 0 {
		return ZeroH256
	}
	w := codec.NewWriter()
	w.U64(uint64(b))
	return Hash(w.Finish())
}

// Order is keyed by SHA3_256(order_id); zero quantity (full fill, cancel)
// collapses the leaf to zero regardless of any other field.
type Order struct {
	OrderID  OrderID
	Type     OrderType
	Side     Side
	Price    uint64 // 0 means "no limit price" (market order)
	Pair     Pair
	Quantity uint64
}

func OrderKey(id OrderID) H256 {
	return Hash([]byte(id))
}

func (o *Order) Key() H256 {
	return OrderKey(o.OrderID)
}

func (o *Order) serialize() []byte {
	w := codec.NewWriter()
	w.String(string(o.OrderID))
	w.U8(uint8(o.Type))
	w.U8(uint8(o.Side))
	w.U64(o.Price)
	w.String(string(o.Pair.Base))
	w.String(string(o.Pair.Quote))
	w.U64(o.Quantity)
	return w.Finish()
}

func (o *Order) ToH256() H256 {
	if o == nil || o.Quantity == 0 {
		return ZeroH256
	}
	return Hash(o.serialize())
}

// OrderPriceLevel is the FIFO queue of resting order ids at one
// (pair, side, price). Its key deliberately uses a little-endian price
// field ("price_le" in the entity table) unlike every other committed
// integer in the system, which is big-endian.
type OrderPriceLevel struct {
	Pair    Pair
	Price   uint64
	OrderIDs []OrderID
}

func OrderPriceLevelKey(pair Pair, price uint64) H256 {
	w := codec.NewWriter()
	w.String(string(pair.Base))
	w.String(string(pair.Quote))
	w.U64LE(price)
	return Hash(w.Finish())
}

func (l *OrderPriceLevel) Key() H256 {
	return OrderPriceLevelKey(l.Pair, l.Price)
}

func (l *OrderPriceLevel) serialize() []byte {
	w := codec.NewWriter()
	w.String(string(l.Pair.Base))
	w.String(string(l.Pair.Quote))
	w.U64(l.Price)
	w.U32(uint32(len(l.OrderIDs)))
	for _, id := range l.OrderIDs {
		w.String(string(id))
	}
	return w.Finish()
}

func (l *OrderPriceLevel) ToH256() H256 {
	if l == nil || len(l.OrderIDs) == 0 {
		return ZeroH256
	}
	return Hash(l.serialize())
}

// SortedSymbols returns keys of m in deterministic ascending order, used
// everywhere the commitment or an event sequence must iterate a map.
func SortedSymbols[V any](m map[Symbol]V) []Symbol {
	out := make([]Symbol, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
