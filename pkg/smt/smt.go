// Package smt implements the authenticated containers (component C1):
// generic sparse Merkle trees over entities.H256 keys, batched multi-proofs
// with shared-node deduplication, and the ZkWitnessSet used to carry proofs
// across the Full/ZkVm boundary.
//
// No example in the retrieval pack ships a sparse-Merkle-tree/multi-proof
// implementation (closest is go-ethereum's verkle witness plumbing, which
// is a different authenticated-data-structure family entirely) — this is
// built directly off the specification's own algorithmic description
// (compact recursive root computation over a 256-bit key space, arena-
// indexed multi-proofs) using golang.org/x/crypto/sha3 for node hashing,
// the same hash family the rest of the system commits with.
package smt

import (
	"fmt"

	"github.com/hyli-org/hyliquid-sub000/pkg/codec"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

const Depth = 256 // key is a 256-bit (32-byte) H256

// Hashable is any entity that can serve as an SMT leaf value: T.ToH256()
// must return entities.ZeroH256 exactly when the value is logically absent
// (see the leaf-hash convention in the entity model).
type Hashable interface {
	ToH256() entities.H256
}

// defaultHashes[d] is the root of an empty subtree of depth d.
// defaultHashes[0] is the empty-leaf hash (all-zero, by convention).
var defaultHashes = computeDefaultHashes()

func computeDefaultHashes() [Depth + 1]entities.H256 {
	var out [Depth + 1]entities.H256
	out[0] = entities.ZeroH256
	for d := 1; d <= Depth; d++ {
		out[d] = entities.HashConcat(out[d-1][:], out[d-1][:])
	}
	return out
}

// bit returns the i-th bit of key, counting from the most significant bit
// (i=0) down to the least significant (i=Depth-1). Traversal from the root
// follows these bits in order: bit 0 picks the branch at the top level.
func bit(key entities.H256, i int) int {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return int((key[byteIdx] >> uint(bitIdx)) & 1)
}

// SMT is a mapping H256 -> T backed by a sparse Merkle tree. Only non-zero
// entries are stored; update_all is realized by overwriting or deleting map
// entries according to whether the new value hashes to zero.
type SMT[T Hashable] struct {
	entries map[entities.H256]T
}

func New[T Hashable]() *SMT[T] {
	return &SMT[T]{entries: make(map[entities.H256]T)}
}

// EmptyRoot is the root of a tree with no entries — the same constant
// regardless of T, since an empty tree never calls ToH256. Callers that
// need to tell "this tree has never been touched" apart from "this tree's
// root happens to be committed" compare against this, not entities.ZeroH256.
func EmptyRoot() entities.H256 {
	return defaultHashes[Depth]
}

// UpdateAll applies a batch of entries, removing any whose value now hashes
// to zero. Idempotent over equal inputs, as required by the contract.
func (s *SMT[T]) UpdateAll(entries map[entities.H256]T) {
	for k, v := range entries {
		if v.ToH256().IsZero() {
			delete(s.entries, k)
		} else {
			s.entries[k] = v
		}
	}
}

// Get returns the current value at key and whether it is present (a
// "present" entry is one whose leaf hash is non-zero).
func (s *SMT[T]) Get(key entities.H256) (T, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Root computes the tree root by recursively partitioning the non-zero
// entries on their bit at each depth, short-circuiting to the precomputed
// default hash for any subtree that currently holds no entries.
func (s *SMT[T]) Root() entities.H256 {
	keys := make([]entities.H256, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return rootOf(s, keys, 0)
}

func (s *SMT[T]) leafHash(key entities.H256) entities.H256 {
	if v, ok := s.entries[key]; ok {
		return v.ToH256()
	}
	return entities.ZeroH256
}

func rootOf[T Hashable](s *SMT[T], keys []entities.H256, depth int) entities.H256 {
	if len(keys) == 0 {
		return defaultHashes[Depth-depth]
	}
	if depth == Depth {
		// Exactly one key can reach the full depth; it names one leaf.
		return s.leafHash(keys[0])
	}
	var left, right []entities.H256
	for _, k := range keys {
		if bit(k, depth) == 0 {
			left = append(left, k)
		} else {
			right = append(right, k)
		}
	}
	lh := rootOf(s, left, depth+1)
	rh := rootOf(s, right, depth+1)
	return entities.HashConcat(lh[:], rh[:])
}

// ---- Multi-proof ----

// ProofEntry describes one key's membership status plus the indices, into
// the MultiProof's shared Nodes arena, of its sibling hashes ordered from
// just below the root down to the leaf level.
type ProofEntry struct {
	Key      entities.H256
	Present  bool
	Siblings []uint32 // len == Depth, index 0 is just below the root, index Depth-1 is the leaf-level sibling
}

// MultiProof is a batched inclusion/non-inclusion proof over a set of keys,
// sharing sibling nodes across keys via a dense arena index.
type MultiProof struct {
	Nodes   []entities.H256
	Entries []ProofEntry
}

func (p *MultiProof) intern(nodeCache map[entities.H256]uint32, h entities.H256) uint32 {
	if idx, ok := nodeCache[h]; ok {
		return idx
	}
	idx := uint32(len(p.Nodes))
	if int(idx) != len(p.Nodes) {
		panic("smt: node arena overflow")
	}
	p.Nodes = append(p.Nodes, h)
	nodeCache[h] = idx
	return idx
}

// Build produces one ProofEntry per requested key, deduplicating shared
// sibling nodes (including repeated default-hash siblings) through a single
// arena shared across every key in the batch.
func Build[T Hashable](s *SMT[T], keys []entities.H256) *MultiProof {
	allKeys := make([]entities.H256, 0, len(s.entries))
	for k := range s.entries {
		allKeys = append(allKeys, k)
	}

	p := &MultiProof{}
	nodeCache := make(map[entities.H256]uint32)

	for _, key := range keys {
		siblings := make([]uint32, Depth)
		collectSiblings(s, allKeys, key, 0, siblings, p, nodeCache)
		_, present := s.entries[key]
		p.Entries = append(p.Entries, ProofEntry{Key: key, Present: present, Siblings: siblings})
	}
	return p
}

// collectSiblings walks from the root toward the leaf for `key`, recording
// at each level the hash of the sibling subtree that key did NOT descend
// into. Populates siblings[depth] for depth in [0,Depth).
func collectSiblings[T Hashable](s *SMT[T], keys []entities.H256, key entities.H256, depth int, siblings []uint32, p *MultiProof, cache map[entities.H256]uint32) entities.H256 {
	if depth == Depth {
		return s.leafHash(key)
	}
	var mine, other []entities.H256
	keyBit := bit(key, depth)
	for _, k := range keys {
		if bit(k, depth) == keyBit {
			mine = append(mine, k)
		} else {
			other = append(other, k)
		}
	}
	otherRoot := rootOf(s, other, depth+1)
	siblings[depth] = p.intern(cache, otherRoot)
	return collectSiblings(s, mine, key, depth+1, siblings, p, cache)
}

// recompute derives the root implied by leafHash + this entry's sibling
// path, using the key's own bits to decide left/right ordering at each
// level.
func (e *ProofEntry) recompute(nodes []entities.H256, leafHash entities.H256) entities.H256 {
	cur := leafHash
	for d := Depth - 1; d >= 0; d-- {
		sib := nodes[e.Siblings[d]]
		if bit(e.Key, d) == 0 {
			cur = entities.HashConcat(cur[:], sib[:])
		} else {
			cur = entities.HashConcat(sib[:], cur[:])
		}
	}
	return cur
}

// Verify re-derives the root implied by each (key, leafHash) pair and
// checks it against root. leaves must cover exactly the keys this proof was
// built for: a proof entry lacking a leaf, or a leaf lacking a proof entry,
// is a failure ("unused proof" / missing proof respectively). An entry
// marked Absent whose supplied leaf is non-zero is also a failure (the
// witness claims the key doesn't exist, but the caller supplies a value
// that says otherwise).
func (p *MultiProof) Verify(root entities.H256, leaves map[entities.H256]entities.H256) error {
	seen := make(map[entities.H256]bool, len(p.Entries))
	for _, e := range p.Entries {
		leaf, ok := leaves[e.Key]
		if !ok {
			return fmt.Errorf("smt: missing leaf value for proven key")
		}
		seen[e.Key] = true

		if !e.Present && !leaf.IsZero() {
			return fmt.Errorf("smt: absent entry contradicted by non-zero leaf value")
		}

		derived := e.recompute(p.Nodes, leaf)
		if derived != root {
			return fmt.Errorf("smt: derived root does not match committed root")
		}
	}
	for k := range leaves {
		if !seen[k] {
			return fmt.Errorf("smt: unused leaf value has no corresponding proof entry")
		}
	}
	return nil
}

// Serialize writes p in the canonical binary form, for carrying a proof
// across the wire (e.g. an Escape action's user_info_proof).
func (p *MultiProof) Serialize() []byte {
	w := codec.NewWriter()
	w.U32(uint32(len(p.Nodes)))
	for _, n := range p.Nodes {
		w.Raw32(n)
	}
	w.U32(uint32(len(p.Entries)))
	for _, e := range p.Entries {
		w.Raw32(e.Key)
		if e.Present {
			w.U8(1)
		} else {
			w.U8(0)
		}
		for _, idx := range e.Siblings {
			w.U32(idx)
		}
	}
	return w.Finish()
}

// DeserializeMultiProof parses the form Serialize writes.
func DeserializeMultiProof(b []byte) (*MultiProof, error) {
	r := codec.NewReader(b)
	nodeCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	nodes := make([]entities.H256, nodeCount)
	for i := range nodes {
		nodes[i], err = r.Raw32()
		if err != nil {
			return nil, err
		}
	}
	entryCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	entries := make([]ProofEntry, entryCount)
	for i := range entries {
		key, err := r.Raw32()
		if err != nil {
			return nil, err
		}
		presentByte, err := r.U8()
		if err != nil {
			return nil, err
		}
		siblings := make([]uint32, Depth)
		for d := range siblings {
			siblings[d], err = r.U32()
			if err != nil {
				return nil, err
			}
		}
		entries[i] = ProofEntry{Key: key, Present: presentByte != 0, Siblings: siblings}
	}
	return &MultiProof{Nodes: nodes, Entries: entries}, nil
}
