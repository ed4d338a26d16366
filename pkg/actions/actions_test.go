package actions

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/hyli-org/hyliquid-sub000/pkg/bridge"
	"github.com/hyli-org/hyliquid-sub000/pkg/crypto"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
	"github.com/hyli-org/hyliquid-sub000/pkg/state"
)

const testSecret = "correct horse battery staple"

func newDispatcher(t *testing.T) (*Dispatcher, *bridge.Fake) {
	t.Helper()
	hashed := sha256.Sum256([]byte(testSecret))
	fs := state.New(hashed, []byte("lane-test"))
	fake := bridge.NewFake()
	return NewDispatcher(fs, fake), fake
}

func private() *PermissionedPrivateInput {
	return &PermissionedPrivateInput{Secret: []byte(testSecret)}
}

func TestDispatcher_IdentifyMaterializesUserWithoutMutatingCommitment(t *testing.T) {
	d, _ := newDispatcher(t)
	before := d.State.Commit().Serialize()

	res, err := d.Execute(&OrderbookAction{Kind: KindIdentify, Identity: "alice", Nonce: 0}, private(), true)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if res.UserKey.IsZero() {
		t.Fatal("identify must return a non-zero user key")
	}
	after := d.State.Commit().Serialize()
	if !bytes.Equal(before, after) {
		t.Fatal("identify must not change the commitment (nonce-0 user hashes to the zero leaf)")
	}
}

func TestDispatcher_WrongSecretRejected(t *testing.T) {
	d, _ := newDispatcher(t)
	_, err := d.Execute(&OrderbookAction{Kind: KindIdentify, Identity: "alice", Nonce: 0},
		&PermissionedPrivateInput{Secret: []byte("wrong secret")}, false)
	if errs.KindOf(err) != errs.Authentication {
		t.Fatalf("want Authentication error for wrong secret, got %v", err)
	}
}

func TestDispatcher_NonceMismatchRejected(t *testing.T) {
	d, _ := newDispatcher(t)
	if _, err := d.Execute(&OrderbookAction{Kind: KindAddSessionKey, Identity: "bob", Nonce: 5, PublicKey: []byte{1}},
		private(), false); errs.KindOf(err) != errs.Authentication {
		t.Fatalf("want Authentication error for nonce mismatch, got %v", err)
	}
}

func TestDispatcher_CreateOrderRequiresValidSignature(t *testing.T) {
	d, _ := newDispatcher(t)
	pair := entities.Pair{Base: "ETH", Quote: "USDC"}
	info := entities.PairInfo{Base: entities.AssetInfo{ContractName: "eth"}, Quote: entities.AssetInfo{ContractName: "usdc"}}
	if _, err := d.Execute(&OrderbookAction{Kind: KindCreatePair, Identity: "admin", Nonce: 0, Pair: pair, PairInfo: info}, private(), false); err != nil {
		t.Fatalf("create_pair: %v", err)
	}

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := d.Execute(&OrderbookAction{Kind: KindAddSessionKey, Identity: "dave", Nonce: 0, PublicKey: signer.PublicKeyBytes()}, private(), false); err != nil {
		t.Fatalf("add_session_key: %v", err)
	}
	if _, err := d.Execute(&OrderbookAction{Kind: KindDeposit, Identity: "dave", Nonce: 1, Symbol: "USDC", Amount: 1000, ChainRef: "chain-1"}, private(), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	order := &entities.Order{OrderID: "dave-1", Type: entities.OrderTypeLimit, Side: entities.SideBid, Price: 10, Pair: pair, Quantity: 5}
	action := &OrderbookAction{Kind: KindCreateOrder, Identity: "dave", Nonce: 2, Order: order}

	if _, err := d.Execute(action, private(), false); errs.KindOf(err) != errs.Authentication {
		t.Fatalf("unsigned create_order must be rejected with Authentication, got %v", err)
	}

	sig, err := signer.Sign([]byte(Message(action)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	action.Signature = sig
	if _, err := d.Execute(action, private(), false); err != nil {
		t.Fatalf("signed create_order should succeed: %v", err)
	}
}

func TestDispatcher_DepositForwardsToReconciler(t *testing.T) {
	d, fake := newDispatcher(t)
	if _, err := d.Execute(&OrderbookAction{Kind: KindDeposit, Identity: "erin", Nonce: 0, Symbol: "USDC", Amount: 42, ChainRef: "chain-9"}, private(), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(fake.Deposits) != 1 {
		t.Fatalf("want 1 recorded deposit, got %d", len(fake.Deposits))
	}
	got := fake.Deposits[0]
	if got.ChainRef != "chain-9" || got.Symbol != "USDC" || got.Amount != 42 {
		t.Fatalf("unexpected recorded deposit: %+v", got)
	}
}

func TestDispatcher_WithdrawForwardsToReconciler(t *testing.T) {
	d, fake := newDispatcher(t)
	if _, err := d.Execute(&OrderbookAction{Kind: KindDeposit, Identity: "erin", Nonce: 0, Symbol: "USDC", Amount: 100}, private(), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := d.Execute(&OrderbookAction{Kind: KindAddSessionKey, Identity: "erin", Nonce: 1, PublicKey: signer.PublicKeyBytes()}, private(), false); err != nil {
		t.Fatalf("add session key: %v", err)
	}
	action := &OrderbookAction{Kind: KindWithdraw, Identity: "erin", Nonce: 2, Symbol: "USDC", Amount: 30, Destination: "0xdeadbeef"}
	sig, err := signer.Sign([]byte(Message(action)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	action.Signature = sig

	if _, err := d.Execute(action, private(), false); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(fake.Withdraws) != 1 {
		t.Fatalf("want 1 recorded withdraw, got %d", len(fake.Withdraws))
	}
	got := fake.Withdraws[0]
	if got.Destination != "0xdeadbeef" || got.Symbol != "USDC" || got.Amount != 30 {
		t.Fatalf("unexpected recorded withdraw: %+v", got)
	}
}

func TestDispatcher_EscapeVerifiesProofAndForwards(t *testing.T) {
	d, fake := newDispatcher(t)
	if _, err := d.Execute(&OrderbookAction{Kind: KindIdentify, Identity: "frank", Nonce: 0}, private(), false); err != nil {
		t.Fatalf("identify: %v", err)
	}
	_, key := d.State.Execute.User("frank")
	leaf, _ := d.State.Execute.UserByKey(key)

	proof := smt.Build(d.State.UsersInfoMT, []entities.H256{key})
	action := &OrderbookAction{Kind: KindEscape, UserKey: key, LeafHash: leaf.ToH256(), Proof: proof}

	if _, err := d.Execute(action, nil, false); err != nil {
		t.Fatalf("escape: %v", err)
	}
	if len(fake.Escapes) != 1 || fake.Escapes[0].UserKey != key {
		t.Fatalf("escape was not forwarded to the reconciler: %+v", fake.Escapes)
	}
}

func TestDispatcher_EscapeRejectsWrongLeaf(t *testing.T) {
	d, _ := newDispatcher(t)
	if _, err := d.Execute(&OrderbookAction{Kind: KindIdentify, Identity: "gina", Nonce: 0}, private(), false); err != nil {
		t.Fatalf("identify: %v", err)
	}
	_, key := d.State.Execute.User("gina")

	proof := smt.Build(d.State.UsersInfoMT, []entities.H256{key})
	action := &OrderbookAction{Kind: KindEscape, UserKey: key, LeafHash: entities.H256{0xFF}, Proof: proof}

	if _, err := d.Execute(action, nil, false); errs.KindOf(err) != errs.ProofFailure {
		t.Fatalf("want Proof error for a forged leaf hash, got %v", err)
	}
}

func TestActionSerializeRoundTrip(t *testing.T) {
	pair := entities.Pair{Base: "ETH", Quote: "USDC"}
	cases := []*OrderbookAction{
		{Kind: KindIdentify, Identity: "alice", Nonce: 0},
		{Kind: KindAddSessionKey, Identity: "bob", Nonce: 1, PublicKey: []byte{0xDE, 0xAD}},
		{Kind: KindCreatePair, Identity: "admin", Nonce: 0, Pair: pair,
			PairInfo: entities.PairInfo{Base: entities.AssetInfo{Scale: 2, ContractName: "eth"}, Quote: entities.AssetInfo{Scale: 6, ContractName: "usdc"}}},
		{Kind: KindDeposit, Identity: "carol", Nonce: 2, Symbol: "ETH", Amount: 777, ChainRef: "chain-1"},
		{Kind: KindCreateOrder, Identity: "dave", Nonce: 3,
			Order:     &entities.Order{OrderID: "o1", Type: entities.OrderTypeLimit, Side: entities.SideBid, Price: 10, Pair: pair, Quantity: 5},
			Signature: []byte{1, 2, 3, 4}},
		{Kind: KindCancel, Identity: "dave", Nonce: 4, OrderID: "o1", Signature: []byte{5, 6}},
		{Kind: KindWithdraw, Identity: "erin", Nonce: 5, Symbol: "USDC", Amount: 100, Destination: "0xabc123", Signature: []byte{7}},
	}

	for _, a := range cases {
		b := a.Serialize()
		got, err := Deserialize(b)
		if err != nil {
			t.Fatalf("%s: deserialize: %v", a.Kind, err)
		}
		if got.Kind != a.Kind || got.Identity != a.Identity || got.Nonce != a.Nonce {
			t.Fatalf("%s: round trip mismatch: got %+v, want %+v", a.Kind, got, a)
		}
	}
}

func TestActionSerializeRoundTrip_Escape(t *testing.T) {
	fs := state.New([32]byte{}, []byte("lane"))
	fs.Identify("alice", false)
	_, key := fs.Execute.User("alice")
	u, _ := fs.Execute.UserByKey(key)
	proof := smt.Build(fs.UsersInfoMT, []entities.H256{key})

	a := &OrderbookAction{Kind: KindEscape, UserKey: key, LeafHash: u.ToH256(), Proof: proof}
	b := a.Serialize()
	got, err := Deserialize(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.UserKey != a.UserKey || got.LeafHash != a.LeafHash {
		t.Fatal("escape round trip lost user key or leaf hash")
	}
	if len(got.Proof.Nodes) != len(a.Proof.Nodes) || len(got.Proof.Entries) != len(a.Proof.Entries) {
		t.Fatal("escape round trip lost proof structure")
	}
}
