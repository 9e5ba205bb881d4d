// Package mpt implements a minimal, lazily-resolved Merkle Patricia Trie
// reader/writer: every node starts out as nothing but its keccak256
// commitment and is only decoded into a concrete branch/leaf/extension once
// a preimage fetcher actually supplies its RLP encoding.
package mpt

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Node is the sum type of every trie node shape. A trie is built out of
// *Node slots (pointer to the interface) so that resolving a Blinded node in
// place mutates the slot the parent already holds a reference to, the same
// way the nodes in a lazily-resolved graph link to each other.
type Node interface {
	// isNode restricts Node's implementers to this package's variants.
	isNode()
}

// Empty represents the absence of a node: the zero trie, or a branch slot
// with no child.
type Empty struct{}

func (Empty) isNode() {}

// Blinded is a node that has not been resolved yet; it carries only the
// commitment a preimage fetcher would need to decode it.
type Blinded struct {
	Commitment common.Hash
}

func (Blinded) isNode() {}

// Leaf is a 2-item node `rlp([encoded_path, value])` whose encoded path has
// the leaf prefix (2 or 3) in its high nibble.
type Leaf struct {
	Key   []byte // hex-prefix encoded remaining path, including its prefix nibble
	Value []byte
}

func (Leaf) isNode() {}

// Extension is a 2-item pointer node `rlp([encoded_path, node])` whose
// encoded path has the extension prefix (0 or 1) in its high nibble. Child
// starts out Blinded and is only resolved when a caller opens past it.
type Extension struct {
	Key   []byte
	Child *Node
}

func (*Extension) isNode() {}

// Branch refers to up to 16 children plus an optional value,
// `rlp([v0, ..., v15, value])`.
type Branch struct {
	Children [16]*Node
	Value    []byte // nil if the branch carries no value
}

func (*Branch) isNode() {}

const (
	branchListLength          = 17
	leafOrExtensionListLength = 2

	prefixExtensionEven = 0
	prefixExtensionOdd  = 1
	prefixLeafEven      = 2
	prefixLeafOdd       = 3
)

var (
	ErrUnexpectedListLength = errors.New("mpt: unexpected node list length")
	ErrBadPathPrefix        = errors.New("mpt: unexpected path prefix nibble")
)

// DecodeNode RLP-decodes a single trie node from its raw preimage. A branch
// list decodes each of its 16 child slots into a fresh Blinded node (or
// Empty, for an empty RLP string slot); it is the caller's responsibility to
// resolve them further on demand.
func DecodeNode(raw []byte) (Node, error) {
	var list []rlp.RawValue
	if err := rlp.DecodeBytes(raw, &list); err != nil {
		return nil, fmt.Errorf("mpt: failed to decode node rlp: %w", err)
	}

	switch len(list) {
	case branchListLength:
		branch := &Branch{}
		for i := 0; i < 16; i++ {
			child, err := decodeChildSlot(list[i])
			if err != nil {
				return nil, err
			}
			branch.Children[i] = child
		}
		var value []byte
		if err := rlp.DecodeBytes(list[16], &value); err != nil {
			return nil, fmt.Errorf("mpt: failed to decode branch value: %w", err)
		}
		if len(value) > 0 {
			branch.Value = value
		}
		return branch, nil
	case leafOrExtensionListLength:
		var path []byte
		if err := rlp.DecodeBytes(list[0], &path); err != nil {
			return nil, fmt.Errorf("mpt: failed to decode node path: %w", err)
		}
		var value []byte
		if err := rlp.DecodeBytes(list[1], &value); err != nil {
			return nil, fmt.Errorf("mpt: failed to decode node value: %w", err)
		}
		return nodeFromPathAndValue(path, value)
	default:
		return nil, fmt.Errorf("%w: got %d", ErrUnexpectedListLength, len(list))
	}
}

func decodeChildSlot(raw rlp.RawValue) (*Node, error) {
	var asString []byte
	if err := rlp.DecodeBytes(raw, &asString); err == nil {
		if len(asString) == 0 {
			var n Node = Empty{}
			return &n, nil
		}
		if len(asString) == 32 {
			var n Node = Blinded{Commitment: common.BytesToHash(asString)}
			return &n, nil
		}
		// an RLP string that isn't a 32-byte hash is an inline-embedded
		// node's encoding and must be decoded directly.
		inline, err := DecodeNode(asString)
		if err != nil {
			return nil, err
		}
		return &inline, nil
	}
	inline, err := DecodeNode(raw)
	if err != nil {
		return nil, err
	}
	return &inline, nil
}

// nodeFromPathAndValue classifies a 2-item node by the high nibble of its
// hex-prefix encoded path into a Leaf or Extension.
func nodeFromPathAndValue(path, value []byte) (Node, error) {
	if len(path) == 0 {
		return nil, ErrBadPathPrefix
	}
	switch path[0] >> 4 {
	case prefixExtensionEven, prefixExtensionOdd:
		var child Node = Blinded{Commitment: common.BytesToHash(value)}
		if len(value) != 32 {
			decoded, err := DecodeNode(value)
			if err != nil {
				return nil, err
			}
			child = decoded
		}
		return &Extension{Key: path, Child: &child}, nil
	case prefixLeafEven, prefixLeafOdd:
		return Leaf{Key: path, Value: value}, nil
	default:
		return nil, ErrBadPathPrefix
	}
}

// EncodeNode RLP-encodes a resolved node back into its canonical preimage
// form. Blinded nodes cannot be encoded directly; callers must resolve them
// first.
func EncodeNode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Empty:
		return rlp.EncodeToBytes([]byte{})
	case Blinded:
		return nil, fmt.Errorf("mpt: cannot encode a blinded node %s directly", v.Commitment)
	case Leaf:
		return rlp.EncodeToBytes([][]byte{v.Key, v.Value})
	case *Extension:
		childRef, err := hashOrInlineChild(*v.Child)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes([][]byte{v.Key, childRef})
	case *Branch:
		items := make([][]byte, 17)
		for i := 0; i < 16; i++ {
			ref, err := hashOrInlineChild(*v.Children[i])
			if err != nil {
				return nil, err
			}
			items[i] = ref
		}
		items[16] = v.Value
		return rlp.EncodeToBytes(items)
	default:
		return nil, fmt.Errorf("mpt: unknown node type %T", n)
	}
}

// hashOrInlineChild renders a child slot as the bytes that belong in its
// parent's RLP list: the empty string for Empty, the 32-byte commitment for
// a node too large to embed, or its own encoding for a node small enough to
// embed directly. This implementation always takes the by-reference form,
// since every resolved child already carries (or can compute) its own
// commitment.
func hashOrInlineChild(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Empty:
		return []byte{}, nil
	case Blinded:
		return v.Commitment[:], nil
	default:
		h, err := HashNode(n)
		if err != nil {
			return nil, err
		}
		return h[:], nil
	}
}

// HashNode computes a node's commitment: keccak256 of its canonical RLP
// encoding. Blinded nodes return their existing commitment without
// re-encoding.
func HashNode(n Node) (common.Hash, error) {
	if b, ok := n.(Blinded); ok {
		return b.Commitment, nil
	}
	raw, err := EncodeNode(n)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}
