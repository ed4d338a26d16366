package smt

import (
	"fmt"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

// ZkWitnessSet carries the minimal data a ZK program needs to re-derive a
// tree's root for one state transition: the touched values plus a proof
// that's either "the root didn't move" (CurrentRootHash) or a MultiProof
// covering every touched key against the pre-transition tree.
type ZkWitnessSet[T Hashable] struct {
	Values map[entities.H256]T
	// Exactly one of CurrentRoot / Proof is set, matching the Proof
	// contract described in the component design: CurrentRootHash when
	// Values is empty, MultiProof otherwise.
	CurrentRoot *entities.H256
	Proof       *MultiProof
}

func EmptyWitness[T Hashable](root entities.H256) ZkWitnessSet[T] {
	r := root
	return ZkWitnessSet[T]{CurrentRoot: &r}
}

func NewWitness[T Hashable](values map[entities.H256]T, proof *MultiProof) ZkWitnessSet[T] {
	return ZkWitnessSet[T]{Values: values, Proof: proof}
}

// ComputeRoot re-derives the post-mutation tree root this witness set
// attests to. When CurrentRoot is set it's returned verbatim (the set is
// empty, nothing moved). Otherwise it runs the two-pass check the proof
// supports: Proof was built against the *pre*-mutation tree (see
// state.buildWitness, called before UpdateAll), so an entry the proof marks
// absent can only be checked for non-existence against a zero-leaf
// placeholder standing in for the pre-mutation value — never against
// Values, which holds the *post*-mutation leaf. The two checks are kept
// separate on purpose: conflating them (verifying presence using the
// post-mutation leaf) would reject every OrderCreated and every first touch
// of a new user or balance, since such a key is legitimately absent before
// the action and legitimately non-zero after it.
func (w ZkWitnessSet[T]) ComputeRoot() (entities.H256, error) {
	if w.CurrentRoot != nil {
		return *w.CurrentRoot, nil
	}
	if w.Proof == nil {
		if len(w.Values) == 0 {
			return entities.ZeroH256, fmt.Errorf("smt: empty witness set missing CurrentRootHash")
		}
		return entities.H256{}, fmt.Errorf("smt: non-empty witness set missing multi-proof")
	}
	if len(w.Proof.Entries) != len(w.Values) {
		return entities.H256{}, fmt.Errorf("smt: witness has %d value(s) but proof covers %d key(s)", len(w.Values), len(w.Proof.Entries))
	}

	// Pass 1: every entry the proof marks absent must independently
	// recompute to one consistent pre-mutation root from the zero-leaf
	// placeholder. This is the non-existence proof, and it is checked
	// against the state the action started from — entries the proof marks
	// present skip it entirely, since their pre-mutation leaf isn't part
	// of this witness.
	var preRoot entities.H256
	havePreRoot := false
	for _, e := range w.Proof.Entries {
		if e.Present {
			continue
		}
		r := e.recompute(w.Proof.Nodes, entities.ZeroH256)
		if !havePreRoot {
			preRoot, havePreRoot = r, true
		} else if r != preRoot {
			return entities.H256{}, fmt.Errorf("smt: absent entries disagree on pre-mutation root")
		}
	}

	// Pass 2: re-derive the post-mutation root from the event's resulting
	// values, reusing each entry's sibling path. The tree shape (and every
	// sibling) is unaffected by what this action wrote to the key itself,
	// so recomputing with the new leaf is exactly the authenticated update.
	var postRoot entities.H256
	havePostRoot := false
	seen := make(map[entities.H256]bool, len(w.Proof.Entries))
	for _, e := range w.Proof.Entries {
		v, ok := w.Values[e.Key]
		if !ok {
			return entities.H256{}, fmt.Errorf("smt: proof has no witness value for a proven key")
		}
		seen[e.Key] = true
		r := e.recompute(w.Proof.Nodes, v.ToH256())
		if !havePostRoot {
			postRoot, havePostRoot = r, true
		} else if r != postRoot {
			return entities.H256{}, fmt.Errorf("smt: witness values disagree on post-mutation root")
		}
	}
	if !havePostRoot {
		return entities.H256{}, fmt.Errorf("smt: proof has no entries")
	}
	for k := range w.Values {
		if !seen[k] {
			return entities.H256{}, fmt.Errorf("smt: unused witness value has no corresponding proof entry")
		}
	}
	return postRoot, nil
}
