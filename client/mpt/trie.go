package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// PreimageFetcher resolves a node's keccak256 commitment to its RLP
// encoding. Every read through a Blinded node goes through one of these,
// so the caller controls what is trusted (typically a hint-backed preimage
// oracle) and the trie package itself stays ignorant of where data comes
// from.
type PreimageFetcher func(common.Hash) ([]byte, error)

// Trie is a Merkle Patricia Trie whose root starts out fully blinded and is
// resolved incrementally as Get/Put walk into it.
type Trie struct {
	root Node
}

// OpenRoot starts a Trie at the given root commitment without resolving
// anything yet.
func OpenRoot(root common.Hash) *Trie {
	return &Trie{root: Blinded{Commitment: root}}
}

// resolve turns a Blinded slot into its concrete node, leaving any other
// variant untouched.
func resolve(slot *Node, fetch PreimageFetcher) error {
	b, ok := (*slot).(Blinded)
	if !ok {
		return nil
	}
	if b.Commitment == (common.Hash{}) || b.Commitment == EmptyRootHash {
		*slot = Empty{}
		return nil
	}
	raw, err := fetch(b.Commitment)
	if err != nil {
		return fmt.Errorf("mpt: failed to fetch node %s: %w", b.Commitment, err)
	}
	node, err := DecodeNode(raw)
	if err != nil {
		return fmt.Errorf("mpt: failed to decode node %s: %w", b.Commitment, err)
	}
	*slot = node
	return nil
}

// EmptyRootHash is the commitment of the canonical empty trie,
// keccak256(rlp("")).
var EmptyRootHash = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// Get walks the path to key (already the raw, un-hashed key bytes; callers
// hash addresses/slots themselves before calling, matching how the state
// and storage tries index their entries) and returns its value.
func (t *Trie) Get(key []byte, fetch PreimageFetcher) ([]byte, bool, error) {
	path := ToNibbles(key)
	value, found, err := get(&t.root, path, fetch)
	return value, found, err
}

func get(slot *Node, path []byte, fetch PreimageFetcher) ([]byte, bool, error) {
	if err := resolve(slot, fetch); err != nil {
		return nil, false, err
	}
	switch n := (*slot).(type) {
	case Empty:
		return nil, false, nil
	case Leaf:
		nibbles, _ := hexPrefixDecode(n.Key)
		if nibblesEqual(nibbles, path) {
			return n.Value, true, nil
		}
		return nil, false, nil
	case *Extension:
		nibbles, _ := hexPrefixDecode(n.Key)
		if len(path) < len(nibbles) || !nibblesEqual(nibbles, path[:len(nibbles)]) {
			return nil, false, nil
		}
		return get(n.Child, path[len(nibbles):], fetch)
	case *Branch:
		if len(path) == 0 {
			if n.Value == nil {
				return nil, false, nil
			}
			return n.Value, true, nil
		}
		idx := path[0]
		return get(n.Children[idx], path[1:], fetch)
	default:
		return nil, false, fmt.Errorf("mpt: unexpected node type %T during get", n)
	}
}

func nibblesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Put inserts or overwrites the value at key, resolving blinded nodes along
// the path on demand and re-shaping branches/extensions as needed. The new
// root must be re-fetched via Hash after a batch of writes.
func (t *Trie) Put(key, value []byte, fetch PreimageFetcher) error {
	path := ToNibbles(key)
	newRoot, err := insert(&t.root, path, value, fetch)
	if err != nil {
		return err
	}
	t.root = *newRoot
	return nil
}

// insert returns the replacement for the subtree rooted at slot after
// writing value at path beneath it.
func insert(slot *Node, path, value []byte, fetch PreimageFetcher) (*Node, error) {
	if err := resolve(slot, fetch); err != nil {
		return nil, err
	}
	switch n := (*slot).(type) {
	case Empty:
		leaf := Node(Leaf{Key: hexPrefixEncode(path, true), Value: value})
		return &leaf, nil
	case Leaf:
		existing, _ := hexPrefixDecode(n.Key)
		return insertIntoLeaf(existing, n.Value, path, value, fetch)
	case *Extension:
		return insertIntoExtension(n, path, value, fetch)
	case *Branch:
		if len(path) == 0 {
			n.Value = value
			var updated Node = n
			return &updated, nil
		}
		idx := path[0]
		newChild, err := insert(n.Children[idx], path[1:], value, fetch)
		if err != nil {
			return nil, err
		}
		n.Children[idx] = newChild
		var updated Node = n
		return &updated, nil
	default:
		return nil, fmt.Errorf("mpt: unexpected node type %T during insert", n)
	}
}

func insertIntoLeaf(existingPath, existingValue, newPath, newValue []byte, fetch PreimageFetcher) (*Node, error) {
	prefixLen := commonPrefixLen(existingPath, newPath)
	if prefixLen == len(existingPath) && prefixLen == len(newPath) {
		leaf := Node(Leaf{Key: hexPrefixEncode(newPath, true), Value: newValue})
		return &leaf, nil
	}

	branch := &Branch{}
	if prefixLen < len(existingPath) {
		rest := existingPath[prefixLen+1:]
		var child Node = Leaf{Key: hexPrefixEncode(rest, true), Value: existingValue}
		branch.Children[existingPath[prefixLen]] = &child
	} else {
		branch.Value = existingValue
	}

	if prefixLen < len(newPath) {
		rest := newPath[prefixLen+1:]
		var child Node = Leaf{Key: hexPrefixEncode(rest, true), Value: newValue}
		branch.Children[newPath[prefixLen]] = &child
	} else {
		branch.Value = newValue
	}

	for i := range branch.Children {
		if branch.Children[i] == nil {
			var e Node = Empty{}
			branch.Children[i] = &e
		}
	}

	if prefixLen == 0 {
		var result Node = branch
		return &result, nil
	}
	var branchNode Node = branch
	ext := Node(&Extension{Key: hexPrefixEncode(existingPath[:prefixLen], false), Child: &branchNode})
	return &ext, nil
}

func insertIntoExtension(n *Extension, path, value []byte, fetch PreimageFetcher) (*Node, error) {
	extPath, _ := hexPrefixDecode(n.Key)
	prefixLen := commonPrefixLen(extPath, path)

	if prefixLen == len(extPath) {
		newChild, err := insert(n.Child, path[prefixLen:], value, fetch)
		if err != nil {
			return nil, err
		}
		n.Child = newChild
		var updated Node = n
		return &updated, nil
	}

	branch := &Branch{}
	for i := range branch.Children {
		var e Node = Empty{}
		branch.Children[i] = &e
	}

	if prefixLen+1 == len(extPath) {
		branch.Children[extPath[prefixLen]] = n.Child
	} else {
		rest := extPath[prefixLen+1:]
		var wrapped Node = &Extension{Key: hexPrefixEncode(rest, false), Child: n.Child}
		branch.Children[extPath[prefixLen]] = &wrapped
	}

	if prefixLen < len(path) {
		rest := path[prefixLen+1:]
		var leaf Node = Leaf{Key: hexPrefixEncode(rest, true), Value: value}
		branch.Children[path[prefixLen]] = &leaf
	} else {
		branch.Value = value
	}

	if prefixLen == 0 {
		var result Node = branch
		return &result, nil
	}
	var branchNode Node = branch
	ext := Node(&Extension{Key: hexPrefixEncode(extPath[:prefixLen], false), Child: &branchNode})
	return &ext, nil
}

// Delete removes key from the trie if present. A missing key is not an
// error: callers use Delete as an idempotent "ensure absent" operation when
// pruning emptied accounts and zeroed storage slots.
func (t *Trie) Delete(key []byte, fetch PreimageFetcher) error {
	path := ToNibbles(key)
	newRoot, err := remove(&t.root, path, fetch)
	if err != nil {
		return err
	}
	t.root = *newRoot
	return nil
}

// remove returns the replacement for the subtree rooted at slot after
// deleting path from beneath it, collapsing branches down to an extension
// or leaf where only one child remains so the trie stays canonical.
func remove(slot *Node, path []byte, fetch PreimageFetcher) (*Node, error) {
	if err := resolve(slot, fetch); err != nil {
		return nil, err
	}
	switch n := (*slot).(type) {
	case Empty:
		empty := Node(Empty{})
		return &empty, nil
	case Leaf:
		nibbles, _ := hexPrefixDecode(n.Key)
		if nibblesEqual(nibbles, path) {
			empty := Node(Empty{})
			return &empty, nil
		}
		return slot, nil
	case *Extension:
		nibbles, _ := hexPrefixDecode(n.Key)
		if len(path) < len(nibbles) || !nibblesEqual(nibbles, path[:len(nibbles)]) {
			return slot, nil
		}
		newChild, err := remove(n.Child, path[len(nibbles):], fetch)
		if err != nil {
			return nil, err
		}
		return collapseExtension(nibbles, newChild, fetch)
	case *Branch:
		if len(path) == 0 {
			n.Value = nil
		} else {
			idx := path[0]
			newChild, err := remove(n.Children[idx], path[1:], fetch)
			if err != nil {
				return nil, err
			}
			n.Children[idx] = newChild
		}
		return collapseBranch(n, fetch)
	default:
		return nil, fmt.Errorf("mpt: unexpected node type %T during delete", n)
	}
}

// collapseExtension resolves the extension's child far enough to merge an
// empty/leaf/extension child back into a single node, keeping the trie's
// canonical shape after a deletion below it.
func collapseExtension(prefix []byte, child *Node, fetch PreimageFetcher) (*Node, error) {
	if err := resolve(child, fetch); err != nil {
		return nil, err
	}
	switch c := (*child).(type) {
	case Empty:
		empty := Node(Empty{})
		return &empty, nil
	case Leaf:
		leafPath, _ := hexPrefixDecode(c.Key)
		merged := Node(Leaf{Key: hexPrefixEncode(append(append([]byte{}, prefix...), leafPath...), true), Value: c.Value})
		return &merged, nil
	case *Extension:
		childPath, _ := hexPrefixDecode(c.Key)
		merged := Node(&Extension{Key: hexPrefixEncode(append(append([]byte{}, prefix...), childPath...), false), Child: c.Child})
		return &merged, nil
	default:
		ext := Node(&Extension{Key: hexPrefixEncode(prefix, false), Child: child})
		return &ext, nil
	}
}

// collapseBranch reduces a branch to a leaf/extension if it now has exactly
// one child and no value, or to Empty if it has neither children nor a
// value, leaving a branch with two or more children (or one child plus a
// value) untouched.
func collapseBranch(b *Branch, fetch PreimageFetcher) (*Node, error) {
	childCount := 0
	onlyIdx := -1
	for i := 0; i < 16; i++ {
		if err := resolve(b.Children[i], fetch); err != nil {
			return nil, err
		}
		if _, isEmpty := (*b.Children[i]).(Empty); !isEmpty {
			childCount++
			onlyIdx = i
		}
	}

	if childCount == 0 && b.Value == nil {
		empty := Node(Empty{})
		return &empty, nil
	}
	if childCount == 0 {
		leaf := Node(Leaf{Key: hexPrefixEncode(nil, true), Value: b.Value})
		return &leaf, nil
	}
	if childCount == 1 && b.Value == nil {
		return collapseExtension([]byte{byte(onlyIdx)}, b.Children[onlyIdx], fetch)
	}
	var updated Node = b
	return &updated, nil
}

// Hash returns the root commitment, the trie equivalent of kona's
// TrieNode::blind. Nothing is resolved: blinded subtrees contribute their
// existing commitments.
func (t *Trie) Hash() (common.Hash, error) {
	return HashNode(t.root)
}

// ReadTrie returns the raw values of a list trie in index order. Used for
// the transaction and receipt tries, whose keys are the RLP-encoded indices
// 0, 1, 2, ...; reading stops at the first index with no entry.
func ReadTrie(root common.Hash, fetch PreimageFetcher) ([][]byte, error) {
	t := OpenRoot(root)
	var out [][]byte
	for i := uint64(0); ; i++ {
		value, found, err := t.Get(rlp.AppendUint64(nil, i), fetch)
		if err != nil {
			return nil, err
		}
		if !found {
			return out, nil
		}
		out = append(out, value)
	}
}

func readTrieWalk(slot *Node, fetch PreimageFetcher, out *[][]byte) error {
	if err := resolve(slot, fetch); err != nil {
		return err
	}
	switch n := (*slot).(type) {
	case Empty:
		return nil
	case Leaf:
		*out = append(*out, n.Value)
		return nil
	case *Extension:
		return readTrieWalk(n.Child, fetch, out)
	case *Branch:
		if n.Value != nil {
			*out = append(*out, n.Value)
		}
		for i := 0; i < 16; i++ {
			if err := readTrieWalk(n.Children[i], fetch, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("mpt: unexpected node type %T during walk", n)
	}
}
