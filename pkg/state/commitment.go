package state

import (
	"github.com/hyli-org/hyliquid-sub000/pkg/codec"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
)

// OrdersCommitment is the { orders_root, bid_root, ask_root } triple from
// spec.md's commitment format.
type OrdersCommitment struct {
	OrdersRoot entities.H256
	BidRoot    entities.H256
	AskRoot    entities.H256
}

// ParsedStateCommitment is the canonical, deterministic serialization every
// mode commits with. FullState derives it from its live SMT roots;
// ZkVmState re-derives the same roots from its witness sets. Bit-identical
// Serialize() output between the two modes for the same logical state is
// the load-bearing equivalence property the whole three-mode design exists
// to preserve.
type ParsedStateCommitment struct {
	UsersInfoRoot   entities.H256
	BalancesRoots   map[entities.Symbol]entities.H256 // empty-tree roots skipped by Serialize
	Assets          map[entities.Symbol]entities.AssetInfo
	Orders          OrdersCommitment
	HashedSecret    [32]byte
	LaneID          []byte
	LastBlockHeight uint64
}

// Serialize writes the canonical commitment bytes: big-endian scalars,
// length-prefixed strings, every map walked in ascending key order.
func (c *ParsedStateCommitment) Serialize() []byte {
	w := codec.NewWriter()
	w.Raw32(c.UsersInfoRoot)

	empty := smt.EmptyRoot()
	balSymbols := make([]entities.Symbol, 0, len(c.BalancesRoots))
	for sym, root := range c.BalancesRoots {
		if root == empty {
			continue
		}
		balSymbols = append(balSymbols, sym)
	}
	balSymbols = sortSymbols(balSymbols)
	w.U32(uint32(len(balSymbols)))
	for _, sym := range balSymbols {
		w.String(string(sym))
		w.Raw32(c.BalancesRoots[sym])
	}

	assetSymbols := entities.SortedSymbols(c.Assets)
	w.U32(uint32(len(assetSymbols)))
	for _, sym := range assetSymbols {
		info := c.Assets[sym]
		w.String(string(sym))
		w.U64(info.Scale)
		w.String(info.ContractName)
	}

	w.Raw32(c.Orders.OrdersRoot)
	w.Raw32(c.Orders.BidRoot)
	w.Raw32(c.Orders.AskRoot)

	w.Raw32(c.HashedSecret)
	w.Bytes(c.LaneID)
	w.U64(c.LastBlockHeight)
	return w.Finish()
}

// Hash is the on-chain state commitment: SHA3-256 of the canonical bytes.
func (c *ParsedStateCommitment) Hash() entities.H256 {
	return entities.Hash(c.Serialize())
}

func sortSymbols(in []entities.Symbol) []entities.Symbol {
	m := make(map[entities.Symbol]struct{}, len(in))
	for _, s := range in {
		m[s] = struct{}{}
	}
	return entities.SortedSymbols(m)
}
