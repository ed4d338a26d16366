package api

// Wire types for the ingest/query HTTP surface. These are thin JSON framings
// over pkg/actions and pkg/state — no core invariant lives here.

// ActionRequest is the POST /api/v1/actions envelope: one OrderbookAction
// plus its private input (ignored for "escape", which is permissionless).
type ActionRequest struct {
	Kind     string `json:"kind"`
	Identity string `json:"identity,omitempty"`
	Nonce    uint32 `json:"nonce,omitempty"`

	// add_session_key
	PublicKeyHex string `json:"public_key_hex,omitempty"`

	// create_pair
	Base          string `json:"base,omitempty"`
	Quote         string `json:"quote,omitempty"`
	BaseScale     uint64 `json:"base_scale,omitempty"`
	BaseContract  string `json:"base_contract,omitempty"`
	QuoteScale    uint64 `json:"quote_scale,omitempty"`
	QuoteContract string `json:"quote_contract,omitempty"`

	// deposit / withdraw
	Symbol      string `json:"symbol,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	ChainRef    string `json:"chain_ref,omitempty"`
	Destination string `json:"destination,omitempty"`

	// create_order
	OrderID   string `json:"order_id,omitempty"`
	OrderType string `json:"order_type,omitempty"`
	Side      string `json:"side,omitempty"`
	Price     uint64 `json:"price,omitempty"`
	Quantity  uint64 `json:"quantity,omitempty"`

	// cancel
	CancelOrderID string `json:"cancel_order_id,omitempty"`

	// create_order / cancel / withdraw
	SignatureHex string `json:"signature_hex,omitempty"`

	// escape
	UserKeyHex  string `json:"user_key_hex,omitempty"`
	LeafHashHex string `json:"leaf_hash_hex,omitempty"`
	ProofHex    string `json:"proof_hex,omitempty"`

	// every permissioned action
	SecretHex string `json:"secret_hex,omitempty"`
}

// ActionResponse reports the outcome of a dispatched action.
type ActionResponse struct {
	BatchIndex   uint64   `json:"batch_index"`
	UserKeyHex   string   `json:"user_key_hex,omitempty"`
	CommitmentHex string  `json:"commitment_hex"`
	EventKinds   []string `json:"event_kinds"`
}

// PriceLevelView is one (price, aggregate quantity) row in an orderbook
// snapshot.
type PriceLevelView struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// OrderbookView is the GET /api/v1/pairs/{base}/{quote}/orderbook response.
type OrderbookView struct {
	Base  string           `json:"base"`
	Quote string           `json:"quote"`
	Bids  []PriceLevelView `json:"bids"`
	Asks  []PriceLevelView `json:"asks"`
}

// UserView is the GET /api/v1/users/{identity} response.
type UserView struct {
	Identity        string `json:"identity"`
	UserKeyHex      string `json:"user_key_hex"`
	Nonce           uint32 `json:"nonce"`
	SessionKeyCount int    `json:"session_key_count"`
}

// BalanceView is the GET /api/v1/users/{identity}/balances/{symbol} response.
type BalanceView struct {
	Identity string `json:"identity"`
	Symbol   string `json:"symbol"`
	Amount   uint64 `json:"amount"`
}

// CommitmentView is the GET /api/v1/commitment response.
type CommitmentView struct {
	BatchIndex    uint64 `json:"batch_index"`
	CommitmentHex string `json:"commitment_hex"`
}

// ErrorResponse is returned for all errors, tagged with the domain Kind
// (validation/authentication/precondition_violation/arithmetic/
// proof_failure/internal) so a client can branch without string matching.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EventView is the WebSocket/broadcast framing of one committed event.
type EventView struct {
	Type       string `json:"type"` // always "event"
	Kind       string `json:"kind"`
	OrderID    string `json:"order_id,omitempty"`
	Pair       string `json:"pair,omitempty"`
	User       string `json:"user,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	NewAmount  uint64 `json:"new_amount,omitempty"`
	BatchIndex uint64 `json:"batch_index"`
}
