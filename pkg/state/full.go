// Package state implements the State Modes & Commitment component (C5):
// FullState wraps an execstate.ExecuteState with the authenticated
// containers (C1) derived from it, and ZkVmState carries only the witness
// sets a ZK program needs for one transition. Both produce the same
// ParsedStateCommitment shape so their commitments are bit-identical for
// the same logical state — the property the whole design exists to keep.
package state

import (
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/execstate"
	"github.com/hyli-org/hyliquid-sub000/pkg/orderbook"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
)

// FullState owns an ExecuteState plus the SMTs mirroring its entity
// containers. The SMTs are never mutated directly; every update flows
// through apply, which re-derives the touched entries from Execute after
// each operation succeeds.
type FullState struct {
	Execute *execstate.ExecuteState

	UsersInfoMT *smt.SMT[*entities.UserInfo]
	BalancesMT  map[entities.Symbol]*smt.SMT[entities.Balance]
	OrdersMT    *smt.SMT[*entities.Order]
	BidOrdersMT *smt.SMT[*entities.OrderPriceLevel]
	AskOrdersMT *smt.SMT[*entities.OrderPriceLevel]

	HashedSecret    [32]byte
	LaneID          []byte
	LastBlockHeight uint64
}

func New(hashedSecret [32]byte, laneID []byte) *FullState {
	return &FullState{
		Execute:     execstate.New(),
		UsersInfoMT: smt.New[*entities.UserInfo](),
		BalancesMT:  make(map[entities.Symbol]*smt.SMT[entities.Balance]),
		OrdersMT:    smt.New[*entities.Order](),
		BidOrdersMT: smt.New[*entities.OrderPriceLevel](),
		AskOrdersMT: smt.New[*entities.OrderPriceLevel](),
		HashedSecret: hashedSecret,
		LaneID:       laneID,
	}
}

func (fs *FullState) ensureBalanceTree(symbol entities.Symbol) *smt.SMT[entities.Balance] {
	t, ok := fs.BalancesMT[symbol]
	if !ok {
		t = smt.New[entities.Balance]()
		fs.BalancesMT[symbol] = t
	}
	return t
}

// Commit computes the current commitment from the live SMT roots.
func (fs *FullState) Commit() *ParsedStateCommitment {
	balRoots := make(map[entities.Symbol]entities.H256, len(fs.BalancesMT))
	for sym, tree := range fs.BalancesMT {
		balRoots[sym] = tree.Root()
	}
	return &ParsedStateCommitment{
		UsersInfoRoot: fs.UsersInfoMT.Root(),
		BalancesRoots: balRoots,
		Assets:        fs.Execute.AssetsSnapshot(),
		Orders: OrdersCommitment{
			OrdersRoot: fs.OrdersMT.Root(),
			BidRoot:    fs.BidOrdersMT.Root(),
			AskRoot:    fs.AskOrdersMT.Root(),
		},
		HashedSecret:    fs.HashedSecret,
		LaneID:          fs.LaneID,
		LastBlockHeight: fs.LastBlockHeight,
	}
}

// touchSet accumulates the per-tree entries one action's Event[] implies,
// per the order/user/balance collection rules in the component design.
type touchSet struct {
	users     map[entities.H256]*entities.UserInfo
	balances  map[entities.Symbol]map[entities.H256]entities.Balance
	orders    map[entities.H256]*entities.Order
	bidLevels map[entities.H256]*entities.OrderPriceLevel
	askLevels map[entities.H256]*entities.OrderPriceLevel
}

func newTouchSet() *touchSet {
	return &touchSet{
		users:     make(map[entities.H256]*entities.UserInfo),
		balances:  make(map[entities.Symbol]map[entities.H256]entities.Balance),
		orders:    make(map[entities.H256]*entities.Order),
		bidLevels: make(map[entities.H256]*entities.OrderPriceLevel),
		askLevels: make(map[entities.H256]*entities.OrderPriceLevel),
	}
}

func (fs *FullState) touchUser(ts *touchSet, identity entities.Identity) {
	u, key := fs.Execute.User(identity)
	ts.users[key] = u
}

func (fs *FullState) touchBalance(ts *touchSet, identity entities.Identity, symbol entities.Symbol) {
	_, key := fs.Execute.User(identity)
	m, ok := ts.balances[symbol]
	if !ok {
		m = make(map[entities.H256]entities.Balance)
		ts.balances[symbol] = m
	}
	m[key] = entities.Balance(fs.Execute.Balance(symbol, key))
}

func (fs *FullState) touchOrder(ts *touchSet, id entities.OrderID) {
	key := entities.OrderKey(id)
	if o, ok := fs.Execute.Manager().Order(id); ok {
		ts.orders[key] = o
		return
	}
	// Not resting (filled or cancelled): a quantity-0 placeholder hashes to
	// the zero leaf regardless of its other fields, per the leaf convention.
	ts.orders[key] = &entities.Order{OrderID: id}
}

func (fs *FullState) touchLevel(ts *touchSet, pair entities.Pair, side entities.Side, price uint64) {
	lvl := fs.Execute.Manager().PriceLevel(pair, side, price)
	key := lvl.Key()
	if side == entities.SideBid {
		ts.bidLevels[key] = lvl
	} else {
		ts.askLevels[key] = lvl
	}
}

// collect walks evs (the canonical Event[] one action produced) and records
// every entity the order/user/balance collection rules say it touched, by
// re-reading the current (post-mutation) Execute state. fills supplies the
// (pair,price) a fully-consumed maker order used to rest at, since that
// order itself has already vanished from the manager by the time collect
// runs; cancelled supplies the same for a cancelled order.
func (fs *FullState) collect(evs []events.Event, fills []orderbook.Fill, cancelled *entities.Order) *touchSet {
	ts := newTouchSet()

	fillByMaker := make(map[entities.OrderID]orderbook.Fill, len(fills))
	for _, f := range fills {
		fillByMaker[f.MakerOrderID] = f
	}

	for _, e := range evs {
		switch e.Kind {
		case events.KindOrderCreated:
			fs.touchOrder(ts, e.Order.OrderID)
			fs.touchLevel(ts, e.Order.Pair, e.Order.Side, e.Order.Price)

		case events.KindOrderCancelled:
			fs.touchOrder(ts, e.OrderID)
			if cancelled != nil {
				fs.touchLevel(ts, cancelled.Pair, cancelled.Side, cancelled.Price)
			}

		case events.KindOrderExecuted:
			if e.IsSelfMatch() {
				continue
			}
			fs.touchOrder(ts, e.OrderID)
			if f, ok := fillByMaker[e.OrderID]; ok {
				fs.touchLevel(ts, e.Pair, f.MakerSide, f.Price)
			}

		case events.KindOrderUpdate:
			fs.touchOrder(ts, e.OrderID)
			if o, ok := fs.Execute.Manager().Order(e.OrderID); ok {
				fs.touchLevel(ts, o.Pair, o.Side, o.Price)
			}

		case events.KindPairCreated:
			fs.ensureBalanceTree(e.Pair.Base)
			fs.ensureBalanceTree(e.Pair.Quote)

		case events.KindSessionKeyAdded, events.KindNonceIncremented:
			fs.touchUser(ts, e.User)

		case events.KindBalanceUpdated:
			fs.touchUser(ts, e.User)
			fs.touchBalance(ts, e.User, e.Symbol)
		}
	}
	return ts
}

func buildWitness[T smt.Hashable](tree *smt.SMT[T], values map[entities.H256]T) smt.ZkWitnessSet[T] {
	if len(values) == 0 {
		return smt.EmptyWitness[T](tree.Root())
	}
	keys := make([]entities.H256, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	proof := smt.Build(tree, keys)
	return smt.NewWitness(values, proof)
}

// apply integrates evs into every authenticated container this FullState
// maintains. When withWitness is set, multi-proofs are built against the
// pre-update trees (the "initial state" the witness describes) before the
// trees are mutated, and a ZkVmState is returned alongside.
func (fs *FullState) apply(evs []events.Event, fills []orderbook.Fill, cancelled *entities.Order, withWitness bool) *ZkVmState {
	ts := fs.collect(evs, fills, cancelled)

	var zk *ZkVmState
	if withWitness {
		zk = &ZkVmState{
			Balances:        make(map[entities.Symbol]smt.ZkWitnessSet[entities.Balance], len(ts.balances)),
			LaneID:          fs.LaneID,
			HashedSecret:    fs.HashedSecret,
			LastBlockHeight: fs.LastBlockHeight,
			Assets:          fs.Execute.AssetsSnapshot(),
		}
		zk.UsersInfo = buildWitness(fs.UsersInfoMT, ts.users)
		for sym, m := range ts.balances {
			zk.Balances[sym] = buildWitness(fs.ensureBalanceTree(sym), m)
		}
		// Every balances tree that already exists but wasn't touched by this
		// action still needs a place in the commitment: its root didn't move,
		// so it rides along as an empty (CurrentRootHash-only) witness rather
		// than being silently dropped from the per-symbol map.
		for sym, tree := range fs.BalancesMT {
			if _, ok := zk.Balances[sym]; !ok {
				zk.Balances[sym] = smt.EmptyWitness[entities.Balance](tree.Root())
			}
		}
		zk.Orders = buildWitness(fs.OrdersMT, ts.orders)
		zk.BidOrders = buildWitness(fs.BidOrdersMT, ts.bidLevels)
		zk.AskOrders = buildWitness(fs.AskOrdersMT, ts.askLevels)
	}

	fs.UsersInfoMT.UpdateAll(ts.users)
	for sym, m := range ts.balances {
		fs.ensureBalanceTree(sym).UpdateAll(m)
	}
	fs.OrdersMT.UpdateAll(ts.orders)
	fs.BidOrdersMT.UpdateAll(ts.bidLevels)
	fs.AskOrdersMT.UpdateAll(ts.askLevels)

	return zk
}

// Identify materializes actingUser's UserInfo record (if it didn't already
// exist) and returns its user key, for a caller that wants to learn its key
// before its first deposit. It never touches a committed leaf, so the
// returned witness (when requested) carries every tree's root forward
// unchanged.
func (fs *FullState) Identify(actingUser entities.Identity, withWitness bool) (entities.H256, *ZkVmState) {
	key := fs.Execute.Identify(actingUser)
	return key, fs.apply(nil, nil, nil, withWitness)
}

// CreatePair registers a pair and, when withWitness is set, also returns the
// ZkVmState witnessing the transition.
func (fs *FullState) CreatePair(actingUser entities.Identity, pair entities.Pair, info entities.PairInfo, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, err := fs.Execute.CreatePair(actingUser, pair, info)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, nil, nil, withWitness), nil
}

func (fs *FullState) AddSessionKey(actingUser entities.Identity, pubkey []byte, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, err := fs.Execute.AddSessionKey(actingUser, pubkey)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, nil, nil, withWitness), nil
}

func (fs *FullState) Deposit(actingUser entities.Identity, symbol entities.Symbol, amount uint64, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, err := fs.Execute.Deposit(actingUser, symbol, amount)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, nil, nil, withWitness), nil
}

func (fs *FullState) Withdraw(actingUser entities.Identity, symbol entities.Symbol, amount uint64, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, err := fs.Execute.Withdraw(actingUser, symbol, amount)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, nil, nil, withWitness), nil
}

func (fs *FullState) ExecuteOrder(actingUser entities.Identity, order *entities.Order, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, fills, err := fs.Execute.ExecuteOrderWithFills(actingUser, order)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, fills, nil, withWitness), nil
}

func (fs *FullState) CancelOrder(actingUser entities.Identity, id entities.OrderID, withWitness bool) ([]events.Event, *ZkVmState, error) {
	evs, snapshot, err := fs.Execute.CancelOrderWithSnapshot(actingUser, id)
	if err != nil {
		return nil, nil, err
	}
	return evs, fs.apply(evs, nil, snapshot, withWitness), nil
}

// VerifyAgainst re-checks that commit matches fs's current commitment —
// used by the bisect tool (spec.md §6/§7) to find the first on-chain
// commitment that diverges from a replayed one.
func (fs *FullState) VerifyAgainst(want entities.H256) error {
	if got := fs.Commit().Hash(); got != want {
		return errs.Internalf("commitment mismatch: got %x want %x", got, want)
	}
	return nil
}
