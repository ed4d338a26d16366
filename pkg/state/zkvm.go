package state

import (
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
)

// ZkVmState is the witness-only mode (no trees, no live entries): the
// minimal data a ZK program needs to verify one transition re-derives the
// same roots a FullState node independently maintains. A node never keeps
// ZkVmState around across transitions; apply produces one per action, and
// Commit consumes it once.
type ZkVmState struct {
	UsersInfo smt.ZkWitnessSet[*entities.UserInfo]
	Balances  map[entities.Symbol]smt.ZkWitnessSet[entities.Balance]
	Orders    smt.ZkWitnessSet[*entities.Order]
	BidOrders smt.ZkWitnessSet[*entities.OrderPriceLevel]
	AskOrders smt.ZkWitnessSet[*entities.OrderPriceLevel]

	Assets          map[entities.Symbol]entities.AssetInfo
	HashedSecret    [32]byte
	LaneID          []byte
	LastBlockHeight uint64
}

// Commit re-derives every root from this witness set's proofs and values and
// assembles the same ParsedStateCommitment shape FullState.Commit produces.
// For the same logical post-state these two must serialize identically;
// that equality is the property the whole three-mode design exists to keep.
func (z *ZkVmState) Commit() (*ParsedStateCommitment, error) {
	usersRoot, err := z.UsersInfo.ComputeRoot()
	if err != nil {
		return nil, errs.Prooff("users_info root: %v", err)
	}

	balRoots := make(map[entities.Symbol]entities.H256, len(z.Balances))
	for sym, w := range z.Balances {
		root, err := w.ComputeRoot()
		if err != nil {
			return nil, errs.Prooff("balances[%q] root: %v", sym, err)
		}
		balRoots[sym] = root
	}

	ordersRoot, err := z.Orders.ComputeRoot()
	if err != nil {
		return nil, errs.Prooff("orders root: %v", err)
	}
	bidRoot, err := z.BidOrders.ComputeRoot()
	if err != nil {
		return nil, errs.Prooff("bid_orders root: %v", err)
	}
	askRoot, err := z.AskOrders.ComputeRoot()
	if err != nil {
		return nil, errs.Prooff("ask_orders root: %v", err)
	}

	return &ParsedStateCommitment{
		UsersInfoRoot: usersRoot,
		BalancesRoots: balRoots,
		Assets:        z.Assets,
		Orders: OrdersCommitment{
			OrdersRoot: ordersRoot,
			BidRoot:    bidRoot,
			AskRoot:    askRoot,
		},
		HashedSecret:    z.HashedSecret,
		LaneID:          z.LaneID,
		LastBlockHeight: z.LastBlockHeight,
	}, nil
}
