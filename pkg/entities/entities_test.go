package entities

import "testing"

func TestUserInfo_ZeroNonceHashesToZero(t *testing.T) {
	u := NewUserInfo("alice", []byte("salt"))
	if u.ToH256() != ZeroH256 {
		t.Fatalf("a brand-new user (nonce 0) must hash to ZeroH256")
	}
	u.Nonce = 1
	if u.ToH256() == ZeroH256 {
		t.Fatalf("a user with nonce > 0 must not hash to zero")
	}
}

func TestUserInfo_KeyIsDeterministic(t *testing.T) {
	u1 := NewUserInfo("alice", []byte("salt"))
	u2 := NewUserInfo("alice", []byte("salt"))
	if u1.Key() != u2.Key() {
		t.Fatalf("same identity+salt must derive the same key")
	}
	u3 := NewUserInfo("bob", []byte("salt"))
	if u1.Key() == u3.Key() {
		t.Fatalf("different identities must derive different keys")
	}
}

func TestUserInfo_HasSessionKey(t *testing.T) {
	u := NewUserInfo("alice", []byte("salt"))
	u.SessionKeys = [][]byte{[]byte("key-a"), []byte("key-b")}
	if !u.HasSessionKey([]byte("key-a")) {
		t.Fatalf("expected key-a to be registered")
	}
	if u.HasSessionKey([]byte("key-z")) {
		t.Fatalf("key-z was never registered")
	}
}

func TestBalance_ZeroHashesToZero(t *testing.T) {
	if Balance(0).ToH256() != ZeroH256 {
		t.Fatalf("a zero balance must hash to ZeroH256")
	}
	if Balance(1).ToH256() == ZeroH256 {
		t.Fatalf("a non-zero balance must not hash to zero")
	}
}

func TestOrder_ZeroQuantityHashesToZero(t *testing.T) {
	o := &Order{OrderID: "o1", Pair: Pair{Base: "BTC", Quote: "USDC"}, Quantity: 0}
	if o.ToH256() != ZeroH256 {
		t.Fatalf("an order with zero remaining quantity must hash to zero")
	}
	o.Quantity = 1
	if o.ToH256() == ZeroH256 {
		t.Fatalf("an order with non-zero quantity must not hash to zero")
	}
}

func TestOrder_NilOrderHashesToZero(t *testing.T) {
	var o *Order
	if o.ToH256() != ZeroH256 {
		t.Fatalf("a nil order pointer must hash to zero (cancelled/never-existed)")
	}
}

func TestOrderKey_IsStableForSameID(t *testing.T) {
	if OrderKey("abc") != OrderKey("abc") {
		t.Fatalf("OrderKey must be deterministic for the same order id")
	}
	if OrderKey("abc") == OrderKey("def") {
		t.Fatalf("different order ids must key differently")
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBid.Opposite() != SideAsk {
		t.Fatalf("SideBid's opposite must be SideAsk")
	}
	if SideAsk.Opposite() != SideBid {
		t.Fatalf("SideAsk's opposite must be SideBid")
	}
}

func TestSortedSymbols_IsSortedAndStable(t *testing.T) {
	m := map[Symbol]int{"USDC": 1, "BTC": 2, "ETH": 3}
	got := SortedSymbols(m)
	want := []Symbol{"BTC", "ETH", "USDC"}
	if len(got) != len(want) {
		t.Fatalf("want %d symbols, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
