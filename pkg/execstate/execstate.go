// Package execstate implements the Execute State (component C4): plain
// in-memory state transitions over the entity model and order manager. It
// is the "light" mode from the component design — no trees, no proofs —
// and the single source of truth FullState derives its authenticated
// containers from after every apply.
package execstate

import (
	"crypto/rand"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/orderbook"
)

// SaltFunc generates a fresh UserInfo salt. Defaults to crypto/rand;
// tests substitute a deterministic generator so commitments are
// reproducible without touching the production path.
type SaltFunc func() []byte

func randomSalt() []byte {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// ExecuteState exclusively owns every entity container: users, assets,
// per-symbol balances, and the order manager. FullState wraps it and never
// duplicates ownership of these maps; ZkVmState holds only witness sets.
type ExecuteState struct {
	users        map[entities.H256]*entities.UserInfo
	usersByIdent map[entities.Identity]*entities.UserInfo
	assets       map[entities.Symbol]entities.AssetInfo
	pairs        map[entities.Pair]entities.PairInfo
	balances     map[entities.Symbol]map[entities.H256]uint64
	manager      *orderbook.Manager
	everSeenIDs  map[entities.OrderID]struct{}

	saltFunc SaltFunc
}

func New() *ExecuteState {
	return &ExecuteState{
		users:        make(map[entities.H256]*entities.UserInfo),
		usersByIdent: make(map[entities.Identity]*entities.UserInfo),
		assets:       make(map[entities.Symbol]entities.AssetInfo),
		pairs:        make(map[entities.Pair]entities.PairInfo),
		balances:     make(map[entities.Symbol]map[entities.H256]uint64),
		manager:      orderbook.NewManager(),
		everSeenIDs:  make(map[entities.OrderID]struct{}),
		saltFunc:     randomSalt,
	}
}

// WithSaltFunc overrides the salt generator (for deterministic tests).
func (s *ExecuteState) WithSaltFunc(f SaltFunc) *ExecuteState {
	s.saltFunc = f
	return s
}

// Clone returns a deep, independent copy so a caller can mutate the clone
// and discard it on error without ever touching the original — the
// "staged clone-apply-commit" atomicity the component design calls for.
func (s *ExecuteState) Clone() *ExecuteState {
	out := &ExecuteState{
		users:        make(map[entities.H256]*entities.UserInfo, len(s.users)),
		usersByIdent: make(map[entities.Identity]*entities.UserInfo, len(s.usersByIdent)),
		assets:       make(map[entities.Symbol]entities.AssetInfo, len(s.assets)),
		pairs:        make(map[entities.Pair]entities.PairInfo, len(s.pairs)),
		balances:     make(map[entities.Symbol]map[entities.H256]uint64, len(s.balances)),
		manager:      s.manager.Clone(),
		everSeenIDs:  make(map[entities.OrderID]struct{}, len(s.everSeenIDs)),
		saltFunc:     s.saltFunc,
	}
	for k, v := range s.users {
		cp := *v
		cp.SessionKeys = append([][]byte(nil), v.SessionKeys...)
		out.users[k] = &cp
		out.usersByIdent[cp.User] = &cp
	}
	for k, v := range s.assets {
		out.assets[k] = v
	}
	for k, v := range s.pairs {
		out.pairs[k] = v
	}
	for symbol, m := range s.balances {
		nm := make(map[entities.H256]uint64, len(m))
		for k, v := range m {
			nm[k] = v
		}
		out.balances[symbol] = nm
	}
	for id := range s.everSeenIDs {
		out.everSeenIDs[id] = struct{}{}
	}
	return out
}

// Apply runs op against a clone of s, swapping the clone in only if op
// succeeds. On error s is left completely untouched.
func (s *ExecuteState) Apply(op func(*ExecuteState) ([]events.Event, error)) ([]events.Event, error) {
	clone := s.Clone()
	evs, err := op(clone)
	if err != nil {
		return nil, err
	}
	*s = *clone
	return evs, nil
}

// Manager exposes the underlying order manager read-only for snapshot
// queries (best bid/ask, resting order lookups); mutation always goes
// through ExecuteOrder/CancelOrder below.
func (s *ExecuteState) Manager() *orderbook.Manager { return s.manager }

// User returns the UserInfo for identity, creating one with a fresh salt
// if this is its first appearance in the state.
func (s *ExecuteState) User(identity entities.Identity) (*entities.UserInfo, entities.H256) {
	if u, ok := s.usersByIdent[identity]; ok {
		return u, u.Key()
	}
	u := entities.NewUserInfo(identity, s.saltFunc())
	s.users[u.Key()] = u
	s.usersByIdent[identity] = u
	return u, u.Key()
}

func (s *ExecuteState) UserByKey(key entities.H256) (*entities.UserInfo, bool) {
	u, ok := s.users[key]
	return u, ok
}

// NonceOf returns identity's current nonce without creating a UserInfo
// record as a side effect — a brand-new identity implicitly has nonce 0,
// the same value a freshly created UserInfo would report, so the dispatcher
// can pre-check an action's nonce before committing to anything.
func (s *ExecuteState) NonceOf(identity entities.Identity) uint32 {
	if u, ok := s.usersByIdent[identity]; ok {
		return u.Nonce
	}
	return 0
}

// Identify creates (or confirms) identity's UserInfo record with a fresh
// salt, leaving its nonce at 0. It can't fail and never changes any
// committed leaf (a nonce-0 UserInfo still hashes to the zero leaf); its
// only purpose is letting a brand-new caller learn their own user key
// before their first permissioned action.
func (s *ExecuteState) Identify(identity entities.Identity) entities.H256 {
	_, key := s.User(identity)
	return key
}

func (s *ExecuteState) Asset(symbol entities.Symbol) (entities.AssetInfo, bool) {
	a, ok := s.assets[symbol]
	return a, ok
}

func (s *ExecuteState) Pair(pair entities.Pair) (entities.PairInfo, bool) {
	p, ok := s.pairs[pair]
	return p, ok
}

// AssetsSnapshot returns a copy of the plain asset registry, for callers
// (FullState/ZkVmState commitment) that embed it verbatim rather than via
// an authenticated container.
func (s *ExecuteState) AssetsSnapshot() map[entities.Symbol]entities.AssetInfo {
	out := make(map[entities.Symbol]entities.AssetInfo, len(s.assets))
	for k, v := range s.assets {
		out[k] = v
	}
	return out
}

func (s *ExecuteState) Balance(symbol entities.Symbol, userKey entities.H256) uint64 {
	return s.balances[symbol][userKey]
}

func (s *ExecuteState) setBalance(symbol entities.Symbol, userKey entities.H256, amount uint64) {
	m, ok := s.balances[symbol]
	if !ok {
		m = make(map[entities.H256]uint64)
		s.balances[symbol] = m
	}
	m[userKey] = amount
}

// bumpNonce increments the acting user's nonce by 1, failing atomically on
// overflow (inv.5 — every successful permissioned action bumps the nonce
// exactly once, as its final event).
func (s *ExecuteState) bumpNonce(u *entities.UserInfo) (events.Event, error) {
	if u.Nonce == ^uint32(0) {
		return events.Event{}, errs.Arithmeticf("nonce overflow for user %q", u.User)
	}
	u.Nonce++
	return events.NonceIncremented(u.User), nil
}

// CreatePair registers both assets of a pair (or confirms an identical
// existing registration) and ensures an empty balance mapping exists for
// each symbol. Fails if the pair was already created, or if either asset
// exists with different (scale, contract_name), or if the base asset's
// scale isn't below 20. Runs under Apply: every effect is discarded
// together if any precondition fails partway through.
func (s *ExecuteState) CreatePair(actingUser entities.Identity, pair entities.Pair, info entities.PairInfo) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.createPair(actingUser, pair, info)
	})
}

func (s *ExecuteState) createPair(actingUser entities.Identity, pair entities.Pair, info entities.PairInfo) ([]events.Event, error) {
	if _, exists := s.pairs[pair]; exists {
		return nil, errs.Validationf("pair %s/%s already registered", pair.Base, pair.Quote)
	}
	if info.Base.Scale >= uint64(len(entities.POW10)) {
		return nil, errs.Validationf("base asset scale %d exceeds bound", info.Base.Scale)
	}
	if err := s.registerAsset(pair.Base, info.Base); err != nil {
		return nil, err
	}
	if err := s.registerAsset(pair.Quote, info.Quote); err != nil {
		return nil, err
	}
	s.pairs[pair] = info
	if _, ok := s.balances[pair.Base]; !ok {
		s.balances[pair.Base] = make(map[entities.H256]uint64)
	}
	if _, ok := s.balances[pair.Quote]; !ok {
		s.balances[pair.Quote] = make(map[entities.H256]uint64)
	}

	out := []events.Event{events.PairCreated(pair, &info)}
	u, _ := s.User(actingUser)
	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, err
	}
	return append(out, nonceEvt), nil
}

func (s *ExecuteState) registerAsset(symbol entities.Symbol, info entities.AssetInfo) error {
	existing, ok := s.assets[symbol]
	if !ok {
		s.assets[symbol] = info
		return nil
	}
	if existing.Scale != info.Scale || existing.ContractName != info.ContractName {
		return errs.Validationf("asset %q re-registered with different scale/contract_name", symbol)
	}
	return nil
}

// AddSessionKey appends pubkey to the user's session keys. pubkey must not
// already be present.
func (s *ExecuteState) AddSessionKey(actingUser entities.Identity, pubkey []byte) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.addSessionKey(actingUser, pubkey)
	})
}

func (s *ExecuteState) addSessionKey(actingUser entities.Identity, pubkey []byte) ([]events.Event, error) {
	u, _ := s.User(actingUser)
	if u.HasSessionKey(pubkey) {
		return nil, errs.Validationf("session key already present for user %q", actingUser)
	}
	u.SessionKeys = append(u.SessionKeys, pubkey)

	out := []events.Event{events.SessionKeyAdded(actingUser, pubkey)}
	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, err
	}
	return append(out, nonceEvt), nil
}

// Deposit credits amount of symbol to user's balance. Collateral
// sufficiency on an external chain is the bridge's concern, not this
// operation's.
func (s *ExecuteState) Deposit(actingUser entities.Identity, symbol entities.Symbol, amount uint64) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.deposit(actingUser, symbol, amount)
	})
}

func (s *ExecuteState) deposit(actingUser entities.Identity, symbol entities.Symbol, amount uint64) ([]events.Event, error) {
	u, key := s.User(actingUser)
	cur := s.Balance(symbol, key)
	newAmount, ok := addUint64(cur, amount)
	if !ok {
		return nil, errs.Arithmeticf("balance overflow crediting %q for user %q", symbol, actingUser)
	}
	s.setBalance(symbol, key, newAmount)

	out := []events.Event{events.BalanceUpdated(actingUser, symbol, newAmount)}
	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, err
	}
	return append(out, nonceEvt), nil
}

// Withdraw debits amount of symbol from user's balance, requiring
// sufficient funds. The external-chain settlement side is out of scope;
// this operation only emits the balance deduction and a nonce bump.
func (s *ExecuteState) Withdraw(actingUser entities.Identity, symbol entities.Symbol, amount uint64) ([]events.Event, error) {
	return s.Apply(func(c *ExecuteState) ([]events.Event, error) {
		return c.withdraw(actingUser, symbol, amount)
	})
}

func (s *ExecuteState) withdraw(actingUser entities.Identity, symbol entities.Symbol, amount uint64) ([]events.Event, error) {
	u, key := s.User(actingUser)
	cur := s.Balance(symbol, key)
	if cur < amount {
		return nil, errs.Preconditionf("insufficient %q balance for user %q", symbol, actingUser)
	}
	s.setBalance(symbol, key, cur-amount)

	out := []events.Event{events.BalanceUpdated(actingUser, symbol, cur-amount)}
	nonceEvt, err := s.bumpNonce(u)
	if err != nil {
		return nil, err
	}
	return append(out, nonceEvt), nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
