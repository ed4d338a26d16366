package execstate

import (
	"testing"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
)

func newPair() entities.Pair {
	return entities.Pair{Base: "ETH", Quote: "USDC"}
}

func newTestState(t *testing.T) *ExecuteState {
	t.Helper()
	n := byte(0)
	s := New().WithSaltFunc(func() []byte {
		n++
		return []byte{n}
	})
	pair := newPair()
	if _, err := s.CreatePair("admin", pair, entities.PairInfo{
		Base:  entities.AssetInfo{Scale: 0, ContractName: "eth"},
		Quote: entities.AssetInfo{Scale: 0, ContractName: "usdc"},
	}); err != nil {
		t.Fatalf("create_pair: %v", err)
	}
	return s
}

func deposit(t *testing.T, s *ExecuteState, user entities.Identity, symbol entities.Symbol, amount uint64) {
	t.Helper()
	if _, err := s.Deposit(user, symbol, amount); err != nil {
		t.Fatalf("deposit(%s,%s,%d): %v", user, symbol, amount, err)
	}
}

func limitOrder(id entities.OrderID, side entities.Side, price, qty uint64) *entities.Order {
	return &entities.Order{OrderID: id, Type: entities.OrderTypeLimit, Side: side, Price: price, Pair: newPair(), Quantity: qty}
}

func marketOrder(id entities.OrderID, side entities.Side, qty uint64) *entities.Order {
	return &entities.Order{OrderID: id, Type: entities.OrderTypeMarket, Side: side, Pair: newPair(), Quantity: qty}
}

// Scenario 1 — partial maker fill.
func TestExecuteOrder_PartialMakerFill(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "bob", "USDC", 1000)
	deposit(t, s, "alice", "USDC", 500)
	deposit(t, s, "carol", "ETH", 80)

	if _, err := s.ExecuteOrder("bob", limitOrder("bob-primary", entities.SideBid, 10, 50)); err != nil {
		t.Fatalf("bob-primary: %v", err)
	}
	if _, err := s.ExecuteOrder("bob", limitOrder("bob-secondary", entities.SideBid, 8, 30)); err != nil {
		t.Fatalf("bob-secondary: %v", err)
	}
	if _, err := s.ExecuteOrder("alice", limitOrder("alice-1", entities.SideBid, 9, 20)); err != nil {
		t.Fatalf("alice-1: %v", err)
	}

	if _, err := s.ExecuteOrder("carol", limitOrder("carol-1", entities.SideAsk, 9, 40)); err != nil {
		t.Fatalf("carol-1: %v", err)
	}

	_, bobKey := s.User("bob")
	_, carolKey := s.User("carol")
	if got := s.Balance("ETH", bobKey); got != 40 {
		t.Errorf("bob ETH balance = %d, want 40", got)
	}
	if got := s.Balance("USDC", bobKey); got != 260 {
		t.Errorf("bob USDC balance = %d, want 260", got)
	}
	if got := s.Balance("ETH", carolKey); got != 40 {
		t.Errorf("carol ETH balance = %d, want 40", got)
	}
	if got := s.Balance("USDC", carolKey); got != 400 {
		t.Errorf("carol USDC balance = %d, want 400", got)
	}

	lvl := s.Manager().PriceLevel(newPair(), entities.SideBid, 10)
	if len(lvl.OrderIDs) != 1 || lvl.OrderIDs[0] != "bob-primary" {
		t.Fatalf("price level 10 = %v, want [bob-primary]", lvl.OrderIDs)
	}
	rest, ok := s.Manager().Order("bob-primary")
	if !ok || rest.Quantity != 10 {
		t.Fatalf("bob-primary remaining = %+v, want qty 10", rest)
	}
}

// Scenario 2 — market bid sweeping two asks at different prices.
func TestExecuteOrder_MarketSweepTwoAsks(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "maker1", "ETH", 3)
	deposit(t, s, "maker2", "ETH", 4)
	deposit(t, s, "taker", "USDC", 1000)

	if _, err := s.ExecuteOrder("maker1", limitOrder("ask-1", entities.SideAsk, 90, 3)); err != nil {
		t.Fatalf("ask-1: %v", err)
	}
	if _, err := s.ExecuteOrder("maker2", limitOrder("ask-2", entities.SideAsk, 95, 4)); err != nil {
		t.Fatalf("ask-2: %v", err)
	}

	if _, err := s.ExecuteOrder("taker", marketOrder("bid-sweep", entities.SideBid, 5)); err != nil {
		t.Fatalf("bid-sweep: %v", err)
	}

	_, takerKey := s.User("taker")
	wantQuote := uint64(1000 - (3*90 + 2*95))
	if got := s.Balance("USDC", takerKey); got != wantQuote {
		t.Errorf("taker USDC = %d, want %d", got, wantQuote)
	}
	if got := s.Balance("ETH", takerKey); got != 5 {
		t.Errorf("taker ETH = %d, want 5", got)
	}
	rest, ok := s.Manager().Order("ask-2")
	if !ok || rest.Quantity != 2 {
		t.Fatalf("ask-2 remaining = %+v, want qty 2", rest)
	}
}

// Scenario 3 — non-crossing limit rests.
func TestExecuteOrder_NonCrossingRests(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "asker", "ETH", 5)
	deposit(t, s, "bidder", "USDC", 1000)

	if _, err := s.ExecuteOrder("asker", limitOrder("ask-rest", entities.SideAsk, 120, 5)); err != nil {
		t.Fatalf("ask-rest: %v", err)
	}
	evs, err := s.ExecuteOrder("bidder", limitOrder("bid-rest", entities.SideBid, 110, 5))
	if err != nil {
		t.Fatalf("bid-rest: %v", err)
	}
	var sawCreated bool
	for _, e := range evs {
		if e.Kind == events.KindOrderCreated && e.OrderID == "bid-rest" {
			sawCreated = true
		}
	}
	if !sawCreated {
		t.Fatalf("events %+v missing OrderCreated for bid-rest", evs)
	}
	lvl := s.Manager().PriceLevel(newPair(), entities.SideBid, 110)
	if len(lvl.OrderIDs) != 1 || lvl.OrderIDs[0] != "bid-rest" {
		t.Fatalf("bid queue at 110 = %v, want [bid-rest]", lvl.OrderIDs)
	}
}

// Scenario 4 — self-match nets to zero on the side the taker both pays and
// receives (quote, since Alice buys her own ask with a market bid).
func TestExecuteOrder_SelfMatch(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "alice", "ETH", 10)

	if _, err := s.ExecuteOrder("alice", limitOrder("alice-ask", entities.SideAsk, 11, 10)); err != nil {
		t.Fatalf("alice-ask: %v", err)
	}
	if _, err := s.ExecuteOrder("alice", marketOrder("alice-bid", entities.SideBid, 10)); err != nil {
		t.Fatalf("alice-bid: %v", err)
	}

	_, aliceKey := s.User("alice")
	if got := s.Balance("USDC", aliceKey); got != 0 {
		t.Errorf("alice USDC = %d, want 0 (self-trade nets to zero)", got)
	}
	if got := s.Balance("ETH", aliceKey); got != 10 {
		t.Errorf("alice ETH = %d, want 10 (reserved 10 on ask, reclaimed 10 on self-fill)", got)
	}
}

// Scenario 5 — cancel refunds reserved quote.
func TestCancelOrder_RefundsReservedQuote(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "bidder", "USDC", 1000)

	if _, err := s.ExecuteOrder("bidder", limitOrder("bid-1", entities.SideBid, 100, 10)); err != nil {
		t.Fatalf("bid-1: %v", err)
	}
	_, key := s.User("bidder")
	if got := s.Balance("USDC", key); got != 0 {
		t.Fatalf("bidder USDC after resting = %d, want 0", got)
	}

	evs, err := s.CancelOrder("bidder", "bid-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("cancel events = %d, want 3 (cancelled, balance, nonce)", len(evs))
	}
	if got := s.Balance("USDC", key); got != 1000 {
		t.Errorf("bidder USDC after cancel = %d, want 1000", got)
	}
	if _, ok := s.Manager().Order("bid-1"); ok {
		t.Errorf("bid-1 still resting after cancel")
	}
	lvl := s.Manager().PriceLevel(newPair(), entities.SideBid, 100)
	if len(lvl.OrderIDs) != 0 {
		t.Errorf("price level 100 not emptied: %v", lvl.OrderIDs)
	}
}

func TestExecuteOrder_DuplicateOrderIDRejectedEvenAfterCancel(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "bidder", "USDC", 1000)

	if _, err := s.ExecuteOrder("bidder", limitOrder("dup", entities.SideBid, 100, 10)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.CancelOrder("bidder", "dup"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := s.ExecuteOrder("bidder", limitOrder("dup", entities.SideBid, 100, 10))
	if errs.KindOf(err) != errs.Validation {
		t.Fatalf("re-using a cancelled order id: err=%v, want Validation", err)
	}
}

func TestExecuteOrder_InsufficientLiquidityDiscardsAllEffects(t *testing.T) {
	s := newTestState(t)
	_, key := s.User("pauper")

	before := s.Clone()
	_, err := s.ExecuteOrder("pauper", limitOrder("poor-bid", entities.SideBid, 10, 100))
	if errs.KindOf(err) != errs.Arithmetic {
		t.Fatalf("underfunded bid: err=%v, want Arithmetic", err)
	}
	if got := s.Balance("USDC", key); got != before.Balance("USDC", key) {
		t.Errorf("balance mutated despite failed action: got %d", got)
	}
	if _, ok := s.Manager().Order("poor-bid"); ok {
		t.Errorf("order inserted despite failed action")
	}
}

func TestExecuteOrder_StopTypesRejected(t *testing.T) {
	s := newTestState(t)
	deposit(t, s, "trader", "USDC", 1000)

	for _, typ := range []entities.OrderType{entities.OrderTypeStop, entities.OrderTypeStopLimit, entities.OrderTypeStopMarket} {
		order := &entities.Order{OrderID: entities.OrderID("stop-" + typ.String()), Type: typ, Side: entities.SideBid, Price: 10, Pair: newPair(), Quantity: 5}
		_, err := s.ExecuteOrder("trader", order)
		if errs.KindOf(err) != errs.Validation {
			t.Fatalf("order type %v: err=%v, want Validation", typ, err)
		}
	}
}
