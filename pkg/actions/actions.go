// Package actions implements the action dispatcher (component 4.6):
// decoding the wire OrderbookAction union, authenticating it against the
// acting user's nonce, session keys, and the configured hashed_secret, and
// dispatching to the matching pkg/state operation.
package actions

import (
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
	"github.com/hyli-org/hyliquid-sub000/pkg/state"
)

// Kind tags which of the eight action variants an OrderbookAction carries.
type Kind uint8

const (
	KindIdentify Kind = iota
	KindAddSessionKey
	KindCreatePair
	KindDeposit
	KindCreateOrder
	KindCancel
	KindWithdraw
	KindEscape
)

func (k Kind) String() string {
	switch k {
	case KindIdentify:
		return "identify"
	case KindAddSessionKey:
		return "add_session_key"
	case KindCreatePair:
		return "create_pair"
	case KindDeposit:
		return "deposit"
	case KindCreateOrder:
		return "create_order"
	case KindCancel:
		return "cancel"
	case KindWithdraw:
		return "withdraw"
	case KindEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// Permissioned reports whether this Kind dispatches through the nonce/
// hashed_secret gate (every variant except Escape).
func (k Kind) Permissioned() bool { return k != KindEscape }

// Signed reports whether this Kind's private input must carry a session-key
// signature over its message template, per spec.md §6.
func (k Kind) Signed() bool {
	return k == KindCreateOrder || k == KindCancel || k == KindWithdraw
}

// OrderbookAction is the wire tagged union the dispatcher accepts. Only the
// fields relevant to Kind are populated.
type OrderbookAction struct {
	Kind     Kind
	Identity entities.Identity
	Nonce    uint32 // ignored for KindEscape

	// AddSessionKey
	PublicKey []byte

	// CreatePair
	Pair     entities.Pair
	PairInfo entities.PairInfo

	// Deposit / Withdraw
	Symbol entities.Symbol
	Amount uint64
	// Deposit also carries the originating chain reference, forwarded to
	// pkg/bridge after the balance credit commits.
	ChainRef string
	// Withdraw's external-chain destination (spec.md §6). The core only
	// debits the balance and bumps the nonce; settling funds at Destination
	// is the bridge's concern (spec.md §9), so it is carried through to
	// pkg/bridge and never otherwise inspected.
	Destination string

	// CreateOrder
	Order *entities.Order

	// Cancel
	OrderID entities.OrderID

	// CreateOrder / Cancel / Withdraw: signature over this action's message
	// template (see Message in messages.go), recovered against the acting
	// user's session keys.
	Signature []byte

	// Escape (permissionless)
	UserKey entities.H256
	// LeafHash is the claimed current UsersInfo leaf for UserKey; Proof
	// attests it against the live users_info root.
	LeafHash entities.H256
	Proof    *smt.MultiProof
}

// PermissionedPrivateInput accompanies every permissioned action: secret's
// SHA-256 must equal the state's configured hashed_secret (spec.md §4.5
// verifier step 1), checked by Dispatcher.Execute before any other check.
type PermissionedPrivateInput struct {
	Secret []byte
}

// Result is what the dispatcher hands back to its caller — the canonical
// Event[] an action produced, the witness when the caller asked for one, and
// a user key: for Identify the key a brand-new caller just learned, for
// Escape the key whose proof was checked.
type Result struct {
	Events  []events.Event
	UserKey entities.H256
	Witness *state.ZkVmState
}
