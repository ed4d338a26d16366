// Package bridge specifies the external-chain collaborator by the interface
// it exposes, per spec.md §1's scope boundary: deposit observation and
// escape-withdrawal submission both cross into a settlement layer this
// repo never implements. Concrete reconciliation (proof construction,
// chain RPC, DA submission) is out of scope; what lives here is the seam
// pkg/actions and pkg/api call into.
package bridge

import (
	"go.uber.org/zap"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

// Reconciler is the bridge-facing collaborator. ObserveDeposit is called
// after a Deposit action commits, ObserveWithdraw after a Withdraw action
// commits, SubmitEscape after an Escape action's proof verifies against the
// current users_info root.
type Reconciler interface {
	ObserveDeposit(chainRef string, symbol entities.Symbol, amount uint64, userKey entities.H256) error
	ObserveWithdraw(destination string, symbol entities.Symbol, amount uint64, userKey entities.H256) error
	SubmitEscape(userKey entities.H256, proof []byte) error
}

// LogOnly is the production stub: it records every call through the
// structured logger and otherwise does nothing. A real deployment replaces
// this with a Reconciler that actually talks to the settlement chain.
type LogOnly struct {
	log *zap.SugaredLogger
}

func NewLogOnly(log *zap.SugaredLogger) *LogOnly {
	return &LogOnly{log: log}
}

func (l *LogOnly) ObserveDeposit(chainRef string, symbol entities.Symbol, amount uint64, userKey entities.H256) error {
	l.log.Infow("bridge: observed deposit", "chain_ref", chainRef, "symbol", symbol, "amount", amount, "user_key", userKey)
	return nil
}

func (l *LogOnly) ObserveWithdraw(destination string, symbol entities.Symbol, amount uint64, userKey entities.H256) error {
	l.log.Infow("bridge: observed withdraw", "destination", destination, "symbol", symbol, "amount", amount, "user_key", userKey)
	return nil
}

func (l *LogOnly) SubmitEscape(userKey entities.H256, proof []byte) error {
	l.log.Infow("bridge: submitted escape", "user_key", userKey, "proof_len", len(proof))
	return nil
}

// Fake is an in-memory Reconciler for tests: it records every call instead
// of discarding or logging it, so test code can assert on what the
// dispatcher forwarded.
type Fake struct {
	Deposits  []FakeDeposit
	Withdraws []FakeWithdraw
	Escapes   []FakeEscape
}

type FakeDeposit struct {
	ChainRef string
	Symbol   entities.Symbol
	Amount   uint64
	UserKey  entities.H256
}

type FakeWithdraw struct {
	Destination string
	Symbol      entities.Symbol
	Amount      uint64
	UserKey     entities.H256
}

type FakeEscape struct {
	UserKey entities.H256
	Proof   []byte
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) ObserveDeposit(chainRef string, symbol entities.Symbol, amount uint64, userKey entities.H256) error {
	f.Deposits = append(f.Deposits, FakeDeposit{ChainRef: chainRef, Symbol: symbol, Amount: amount, UserKey: userKey})
	return nil
}

func (f *Fake) ObserveWithdraw(destination string, symbol entities.Symbol, amount uint64, userKey entities.H256) error {
	f.Withdraws = append(f.Withdraws, FakeWithdraw{Destination: destination, Symbol: symbol, Amount: amount, UserKey: userKey})
	return nil
}

func (f *Fake) SubmitEscape(userKey entities.H256, proof []byte) error {
	f.Escapes = append(f.Escapes, FakeEscape{UserKey: userKey, Proof: proof})
	return nil
}
