package storage

import (
	"testing"

	"github.com/hyli-org/hyliquid-sub000/pkg/actions"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
)

func openTestLog(t *testing.T) *EventLog {
	t.Helper()
	log, err := OpenEventLog(t.TempDir())
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestEventLog_AppendAndGet(t *testing.T) {
	log := openTestLog(t)

	action := &actions.OrderbookAction{Kind: actions.KindDeposit, Identity: "alice", Nonce: 0, Symbol: "USDC", Amount: 100, ChainRef: "chain-1"}
	evs := []events.Event{events.BalanceUpdated("alice", "USDC", 100)}
	commitment := entities.Hash([]byte("commitment-0"))

	if err := log.Append(0, action, evs, commitment); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec, ok, err := log.Get(0)
	if err != nil || !ok {
		t.Fatalf("get(0): ok=%v err=%v", ok, err)
	}
	if rec.Action.Identity != "alice" || rec.Action.Amount != 100 {
		t.Fatalf("unexpected decoded action: %+v", rec.Action)
	}
	if len(rec.Events) != 1 || rec.Events[0].NewAmount != 100 {
		t.Fatalf("unexpected decoded events: %+v", rec.Events)
	}
	if rec.Commitment != commitment {
		t.Fatalf("commitment mismatch: got %x want %x", rec.Commitment, commitment)
	}

	latest, ok, err := log.LatestIndex()
	if err != nil || !ok || latest != 0 {
		t.Fatalf("latest index: got %d ok=%v err=%v", latest, ok, err)
	}
}

func TestEventLog_RangeReturnsInOrder(t *testing.T) {
	log := openTestLog(t)
	for i := uint64(0); i < 5; i++ {
		action := &actions.OrderbookAction{Kind: actions.KindIdentify, Identity: "bob", Nonce: 0}
		commitment := entities.Hash([]byte{byte(i)})
		if err := log.Append(i, action, nil, commitment); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	recs, err := log.Range(1, 4)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.BatchIndex != uint64(i+1) {
			t.Fatalf("out of order: index %d has batch_index %d", i, rec.BatchIndex)
		}
	}
}

func TestBisect_FindsFirstMismatch(t *testing.T) {
	log := openTestLog(t)
	for i := uint64(0); i < 4; i++ {
		action := &actions.OrderbookAction{Kind: actions.KindIdentify, Identity: "carol", Nonce: 0}
		commitment := entities.Hash([]byte{byte(i)})
		if err := log.Append(i, action, nil, commitment); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recompute := func(batchIndex uint64) (entities.H256, error) {
		if batchIndex == 2 {
			return entities.Hash([]byte("wrong")), nil
		}
		return entities.Hash([]byte{byte(batchIndex)}), nil
	}

	idx, found, err := Bisect(log, 0, 4, recompute)
	if err != nil {
		t.Fatalf("bisect: %v", err)
	}
	if !found || idx != 2 {
		t.Fatalf("want mismatch at index 2, got idx=%d found=%v", idx, found)
	}
}
