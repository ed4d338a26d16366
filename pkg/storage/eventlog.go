// Package storage implements the Bridge & Persistence collaborator (4.7):
// an append-only, Pebble-backed record of every batch the execution core
// has processed, keyed so a range scan over batch_index reproduces history
// in order — what the bisect tool replays to find the first on-chain
// commitment that diverges from a locally recomputed one.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/hyli-org/hyliquid-sub000/pkg/actions"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
)

// keys: e:<8-byte-batch-index> -> gob(envelope); latest -> 8-byte batch index
func kEntry(batchIndex uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'e'
	binary.BigEndian.PutUint64(key[1:], batchIndex)
	return key
}

func kLatest() []byte { return []byte("latest") }

// envelope is the operational record of one processed batch. It is never
// part of the commitment path — encoding/gob is fine here precisely because
// determinism doesn't matter for it, unlike the canonical codec used for
// committed bytes (actions, events, commitments).
type envelope struct {
	RequestID     string // uuid, internal correlation only
	BatchIndex    uint64
	ActionBytes   []byte
	EventBytes    [][]byte
	CommitmentHex string
}

// Record is what EventLog hands back on read.
type Record struct {
	RequestID  string
	BatchIndex uint64
	Action     *actions.OrderbookAction
	Events     []events.Event
	Commitment entities.H256
}

// EventLog is the Pebble-backed append-only store of (batch_index, action,
// events, commitment) tuples.
type EventLog struct {
	db *pebble.DB
}

func OpenEventLog(path string) (*EventLog, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open event log: %w", err)
	}
	return &EventLog{db: db}, nil
}

func (l *EventLog) Close() error { return l.db.Close() }

// Append records one processed batch at batchIndex. It assigns a fresh
// request id for internal correlation (never part of any committed
// structure, per the domain-stack wiring for uuid).
func (l *EventLog) Append(batchIndex uint64, action *actions.OrderbookAction, evs []events.Event, commitment entities.H256) error {
	evBytes := make([][]byte, len(evs))
	for i, e := range evs {
		evBytes[i] = e.Serialize()
	}
	env := envelope{
		RequestID:     uuid.NewString(),
		BatchIndex:    batchIndex,
		ActionBytes:   action.Serialize(),
		EventBytes:    evBytes,
		CommitmentHex: hex.EncodeToString(commitment[:]),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return fmt.Errorf("storage: encode envelope: %w", err)
	}
	if err := l.db.Set(kEntry(batchIndex), buf.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("storage: append entry: %w", err)
	}

	latest := make([]byte, 8)
	binary.BigEndian.PutUint64(latest, batchIndex)
	if err := l.db.Set(kLatest(), latest, pebble.Sync); err != nil {
		return fmt.Errorf("storage: update latest: %w", err)
	}
	return nil
}

// Get returns the record at batchIndex, if any.
func (l *EventLog) Get(batchIndex uint64) (*Record, bool, error) {
	val, closer, err := l.db.Get(kEntry(batchIndex))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get entry: %w", err)
	}
	defer closer.Close()

	rec, err := decodeRecord(val)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// LatestIndex returns the highest batch_index appended so far.
func (l *EventLog) LatestIndex() (uint64, bool, error) {
	val, closer, err := l.db.Get(kLatest())
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: get latest: %w", err)
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(val), true, nil
}

// Range returns every record with batch_index in [from, to), in order — the
// replay path find_mismatched_commit/build_from_events_bisect walks.
func (l *EventLog) Range(from, to uint64) ([]*Record, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: kEntry(from),
		UpperBound: kEntry(to),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: new iterator: %w", err)
	}
	defer iter.Close()

	var out []*Record
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(val []byte) (*Record, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&env); err != nil {
		return nil, fmt.Errorf("storage: decode envelope: %w", err)
	}
	action, err := actions.Deserialize(env.ActionBytes)
	if err != nil {
		return nil, fmt.Errorf("storage: decode action: %w", err)
	}
	evs := make([]events.Event, len(env.EventBytes))
	for i, b := range env.EventBytes {
		ev, err := events.Deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("storage: decode event %d: %w", i, err)
		}
		evs[i] = ev
	}
	commitmentBytes, err := hex.DecodeString(env.CommitmentHex)
	if err != nil {
		return nil, fmt.Errorf("storage: decode commitment: %w", err)
	}
	if len(commitmentBytes) != len(entities.H256{}) {
		return nil, fmt.Errorf("storage: decode commitment: want %d bytes, got %d", len(entities.H256{}), len(commitmentBytes))
	}
	var commitment entities.H256
	copy(commitment[:], commitmentBytes)
	return &Record{
		RequestID:  env.RequestID,
		BatchIndex: env.BatchIndex,
		Action:     action,
		Events:     evs,
		Commitment: commitment,
	}, nil
}

// Bisect walks [from, to) looking for the first batch_index whose stored
// commitment does not match recompute(batchIndex) — the execution core's
// find_mismatched_commit from spec.md §6.
func Bisect(log *EventLog, from, to uint64, recompute func(batchIndex uint64) (entities.H256, error)) (uint64, bool, error) {
	for i := from; i < to; i++ {
		rec, ok, err := log.Get(i)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		want, err := recompute(i)
		if err != nil {
			return 0, false, err
		}
		if want != rec.Commitment {
			return i, true, nil
		}
	}
	return 0, false, nil
}
