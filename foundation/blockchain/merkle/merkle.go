// Based on github.com/cbergoon/merkletree, licensed under the MIT License.

// Package merkle provides a merkle tree used to calculate the transaction
// root of a block and the state root of the account store.
package merkle

import (
	"errors"

	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// ErrNoValues is returned when a tree is constructed with no content.
var ErrNoValues = errors.New("cannot construct tree with no content")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable interface {
	Hash() (signature.Hash, error)
}

// Order identifies where a proof hash is concatenated in relation to the
// running hash.
type Order int

// Set of proof orders.
const (
	Left  Order = 0
	Right Order = 1
)

// =============================================================================

// Tree represents a merkle tree built over the hashes of a set of values.
// The levels are stored bottom up, the last level holds only the root.
type Tree struct {
	levels [][]signature.Hash
}

// NewTree constructs a merkle tree over the specified values.
func NewTree[T Hashable](values []T) (*Tree, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}

	leafs := make([]signature.Hash, len(values))
	for i, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leafs[i] = hash
	}

	return FromHashes(leafs)
}

// FromHashes constructs a merkle tree from a set of leaf hashes.
func FromHashes(leafs []signature.Hash) (*Tree, error) {
	if len(leafs) == 0 {
		return nil, ErrNoValues
	}

	level := make([]signature.Hash, len(leafs))
	copy(level, leafs)

	t := Tree{}
	for {
		// An odd level duplicates its last hash so every node has a pair.
		if len(level) > 1 && len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		t.levels = append(t.levels, level)

		if len(level) == 1 {
			break
		}

		next := make([]signature.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, signature.Sum(level[i][:], level[i+1][:]))
		}
		level = next
	}

	return &t, nil
}

// Root returns the merkle root of the tree.
func (t *Tree) Root() signature.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Leafs returns the number of original leafs, excluding a duplicate.
func (t *Tree) Leafs() int {
	n := len(t.levels[0])
	if n > 1 && t.levels[0][n-1] == t.levels[0][n-2] {
		return n - 1
	}
	return n
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving the leaf at the specified index is in the tree.
func (t *Tree) Proof(index int) ([]signature.Hash, []Order, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, nil, errors.New("unable to find data in tree")
	}

	var proof []signature.Hash
	var order []Order

	for _, level := range t.levels[:len(t.levels)-1] {
		if index%2 == 0 {
			proof = append(proof, level[index+1])
			order = append(order, Right)
		} else {
			proof = append(proof, level[index-1])
			order = append(order, Left)
		}
		index /= 2
	}

	return proof, order, nil
}

// VerifyProof checks the leaf hash combined with the proof produces the
// specified root.
func VerifyProof(leaf signature.Hash, proof []signature.Hash, order []Order, root signature.Hash) bool {
	if len(proof) != len(order) {
		return false
	}

	hash := leaf
	for i, p := range proof {
		switch order[i] {
		case Left:
			hash = signature.Sum(p[:], hash[:])
		default:
			hash = signature.Sum(hash[:], p[:])
		}
	}

	return hash == root
}

// RootOf is a helper that returns the merkle root of the values or the
// zero hash when there are no values.
func RootOf[T Hashable](values []T) (signature.Hash, error) {
	if len(values) == 0 {
		return signature.ZeroHash, nil
	}

	tree, err := NewTree(values)
	if err != nil {
		return signature.ZeroHash, err
	}

	return tree.Root(), nil
}
