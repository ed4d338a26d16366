package actions

import (
	"crypto/sha256"

	"github.com/hyli-org/hyliquid-sub000/pkg/bridge"
	"github.com/hyli-org/hyliquid-sub000/pkg/crypto"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/state"
)

// Dispatcher is the execute(calldata) -> (result_bytes, context, side_effects)
// entry point spec.md §6 describes: it authenticates an OrderbookAction and
// runs it against one FullState, forwarding the out-of-core side effects
// (deposit observation, withdraw observation, escape submission) to Bridge.
type Dispatcher struct {
	State  *state.FullState
	Bridge bridge.Reconciler
}

func NewDispatcher(s *state.FullState, r bridge.Reconciler) *Dispatcher {
	return &Dispatcher{State: s, Bridge: r}
}

// Execute authenticates and runs action. private is required for every
// permissioned Kind and ignored for KindEscape.
func (d *Dispatcher) Execute(action *OrderbookAction, private *PermissionedPrivateInput, withWitness bool) (*Result, error) {
	if action.Kind.Permissioned() {
		return d.executePermissioned(action, private, withWitness)
	}
	return d.executeEscape(action, withWitness)
}

func (d *Dispatcher) executePermissioned(a *OrderbookAction, private *PermissionedPrivateInput, withWitness bool) (*Result, error) {
	if private == nil {
		return nil, errs.Validationf("permissioned action missing private input")
	}
	// spec.md §4.5 verifier step 1: SHA-256, distinct from the SHA3-256 used
	// for every other digest in the system — this one field is checked
	// exactly as the original contract checks it.
	if sha256.Sum256(private.Secret) != d.State.HashedSecret {
		return nil, errs.Authf("private input secret does not match configured hashed_secret")
	}

	if a.Kind == KindIdentify {
		if a.Nonce != 0 {
			return nil, errs.Authf("identify nonce mismatch for %q: want 0, got %d", a.Identity, a.Nonce)
		}
		key, zk := d.State.Identify(a.Identity, withWitness)
		return &Result{UserKey: key, Witness: zk}, nil
	}

	// Nonce mismatch is Authentication; nonce overflow (current==max) is
	// Arithmetic and is only ever raised later, inside the state
	// transition's bumpNonce — these are deliberately distinct failure
	// kinds for the same field.
	if current := d.State.Execute.NonceOf(a.Identity); current != a.Nonce {
		return nil, errs.Authf("nonce mismatch for %q: want %d, got %d", a.Identity, current, a.Nonce)
	}

	if a.Kind.Signed() {
		u, _ := d.State.Execute.User(a.Identity)
		if !crypto.VerifySessionKey([]byte(Message(a)), a.Signature, u.SessionKeys) {
			return nil, errs.Authf("signature for %q does not recover a known session key", a.Identity)
		}
	}

	var (
		evs []events.Event
		zk  *state.ZkVmState
		err error
	)
	switch a.Kind {
	case KindAddSessionKey:
		evs, zk, err = d.State.AddSessionKey(a.Identity, a.PublicKey, withWitness)

	case KindCreatePair:
		evs, zk, err = d.State.CreatePair(a.Identity, a.Pair, a.PairInfo, withWitness)

	case KindDeposit:
		evs, zk, err = d.State.Deposit(a.Identity, a.Symbol, a.Amount, withWitness)
		if err == nil && d.Bridge != nil {
			_, key := d.State.Execute.User(a.Identity)
			if bErr := d.Bridge.ObserveDeposit(a.ChainRef, a.Symbol, a.Amount, key); bErr != nil {
				return nil, errs.Internalf("bridge observe deposit: %v", bErr)
			}
		}

	case KindCreateOrder:
		evs, zk, err = d.State.ExecuteOrder(a.Identity, a.Order, withWitness)

	case KindCancel:
		evs, zk, err = d.State.CancelOrder(a.Identity, a.OrderID, withWitness)

	case KindWithdraw:
		evs, zk, err = d.State.Withdraw(a.Identity, a.Symbol, a.Amount, withWitness)
		if err == nil && d.Bridge != nil {
			_, key := d.State.Execute.User(a.Identity)
			if bErr := d.Bridge.ObserveWithdraw(a.Destination, a.Symbol, a.Amount, key); bErr != nil {
				return nil, errs.Internalf("bridge observe withdraw: %v", bErr)
			}
		}

	default:
		return nil, errs.Validationf("unknown permissioned action kind %s", a.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Events: evs, Witness: zk}, nil
}

// executeEscape validates a's proof against the live users_info root and
// forwards it to the bridge. It never touches FullState's trees — an escape
// is a read (of committed state) plus an outbound side effect, not a
// transition.
func (d *Dispatcher) executeEscape(a *OrderbookAction, withWitness bool) (*Result, error) {
	_ = withWitness // escape produces no transition, so there is nothing to witness
	if a.Proof == nil {
		return nil, errs.Validationf("escape action missing user_info_proof")
	}
	root := d.State.UsersInfoMT.Root()
	leaves := map[entities.H256]entities.H256{a.UserKey: a.LeafHash}
	if err := a.Proof.Verify(root, leaves); err != nil {
		return nil, errs.Prooff("escape proof: %v", err)
	}
	if d.Bridge != nil {
		if err := d.Bridge.SubmitEscape(a.UserKey, a.Proof.Serialize()); err != nil {
			return nil, errs.Internalf("bridge submit escape: %v", err)
		}
	}
	return &Result{UserKey: a.UserKey}, nil
}
