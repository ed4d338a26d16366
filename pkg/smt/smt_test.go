package smt

import (
	"testing"

	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

func key(b byte) entities.H256 {
	var k entities.H256
	k[31] = b
	return k
}

func TestSMT_EmptyTreeRootIsEmptyRoot(t *testing.T) {
	tree := New[entities.Balance]()
	if tree.Root() != EmptyRoot() {
		t.Fatalf("empty tree root does not match EmptyRoot()")
	}
}

func TestSMT_UpdateAllInsertsAndZeroRemoves(t *testing.T) {
	tree := New[entities.Balance]()
	k1, k2 := key(1), key(2)

	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100, k2: 200})
	if _, ok := tree.Get(k1); !ok {
		t.Fatalf("k1 should be present after insert")
	}
	rootAfterInsert := tree.Root()
	if rootAfterInsert == EmptyRoot() {
		t.Fatalf("root should change after inserting non-zero entries")
	}

	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 0})
	if _, ok := tree.Get(k1); ok {
		t.Fatalf("k1 should be removed once its value hashes to zero")
	}
}

func TestSMT_RootIndependentOfInsertionOrder(t *testing.T) {
	a := New[entities.Balance]()
	b := New[entities.Balance]()

	a.UpdateAll(map[entities.H256]entities.Balance{key(1): 10})
	a.UpdateAll(map[entities.H256]entities.Balance{key(2): 20})

	b.UpdateAll(map[entities.H256]entities.Balance{key(2): 20, key(1): 10})

	if a.Root() != b.Root() {
		t.Fatalf("root should not depend on the order entries were applied in")
	}
}

func TestMultiProof_VerifiesInclusionAndNonInclusion(t *testing.T) {
	tree := New[entities.Balance]()
	k1, k2, k3 := key(1), key(2), key(3)
	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100, k2: 200})

	proof := Build(tree, []entities.H256{k1, k3})
	root := tree.Root()

	leaves := map[entities.H256]entities.H256{
		k1: entities.Balance(100).ToH256(),
		k3: entities.ZeroH256,
	}
	if err := proof.Verify(root, leaves); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestMultiProof_RejectsWrongLeafValue(t *testing.T) {
	tree := New[entities.Balance]()
	k1 := key(1)
	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100})

	proof := Build(tree, []entities.H256{k1})
	root := tree.Root()

	leaves := map[entities.H256]entities.H256{k1: entities.Balance(999).ToH256()}
	if err := proof.Verify(root, leaves); err == nil {
		t.Fatalf("expected verify to fail for a tampered leaf value")
	}
}

func TestMultiProof_RejectsAbsentClaimContradictedByValue(t *testing.T) {
	tree := New[entities.Balance]()
	k1, k2 := key(1), key(2)
	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100})

	proof := Build(tree, []entities.H256{k2})
	root := tree.Root()

	leaves := map[entities.H256]entities.H256{k2: entities.Balance(5).ToH256()}
	if err := proof.Verify(root, leaves); err == nil {
		t.Fatalf("expected verify to fail when a proven-absent key gets a non-zero leaf")
	}
}

func TestZkWitnessSet_ComputeRootOnFreshlyCreatedKey(t *testing.T) {
	tree := New[entities.Balance]()
	k1 := key(1)

	// Proof built against the pre-mutation (empty) tree: k1 is absent.
	proof := Build(tree, []entities.H256{k1})

	// The witness carries the post-mutation value a real action would
	// produce for a brand-new entity — non-zero, even though the proof
	// marks the key absent in the state the action started from.
	witness := NewWitness(map[entities.H256]entities.Balance{k1: 100}, proof)

	got, err := witness.ComputeRoot()
	if err != nil {
		t.Fatalf("ComputeRoot should not reject a freshly created, non-zero entry: %v", err)
	}

	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100})
	if want := tree.Root(); got != want {
		t.Fatalf("ComputeRoot = %x, want %x (post-mutation root)", got, want)
	}
}

func TestZkWitnessSet_ComputeRootOnUpdatedExistingKey(t *testing.T) {
	tree := New[entities.Balance]()
	k1, k2 := key(1), key(2)
	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100, k2: 200})

	proof := Build(tree, []entities.H256{k1})
	witness := NewWitness(map[entities.H256]entities.Balance{k1: 150}, proof)

	got, err := witness.ComputeRoot()
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}

	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 150})
	if want := tree.Root(); got != want {
		t.Fatalf("ComputeRoot = %x, want %x (post-mutation root)", got, want)
	}
}

func TestMultiProof_SerializeRoundTrips(t *testing.T) {
	tree := New[entities.Balance]()
	k1, k2 := key(1), key(2)
	tree.UpdateAll(map[entities.H256]entities.Balance{k1: 100, k2: 200})

	proof := Build(tree, []entities.H256{k1, k2})
	encoded := proof.Serialize()

	decoded, err := DeserializeMultiProof(encoded)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	root := tree.Root()
	leaves := map[entities.H256]entities.H256{
		k1: entities.Balance(100).ToH256(),
		k2: entities.Balance(200).ToH256(),
	}
	if err := decoded.Verify(root, leaves); err != nil {
		t.Fatalf("decoded proof failed to verify: %v", err)
	}
}
