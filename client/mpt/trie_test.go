package mpt

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

func noPreimages(h common.Hash) ([]byte, error) {
	panic("unexpected preimage fetch for " + h.String())
}

func TestEmptyTrieHash(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	root, err := tr.Hash()
	require.NoError(t, err)
	require.Equal(t, EmptyRootHash, root)
}

func TestPutGetSingleKey(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	require.NoError(t, tr.Put([]byte("key"), []byte("value"), noPreimages))

	got, found, err := tr.Get([]byte("key"), noPreimages)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), got)
}

func TestPutOverwriteSameKey(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	require.NoError(t, tr.Put([]byte("key"), []byte("first"), noPreimages))
	require.NoError(t, tr.Put([]byte("key"), []byte("second"), noPreimages))

	got, found, err := tr.Get([]byte("key"), noPreimages)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second"), got)
}

func TestPutManyKeysRoundTrip(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	entries := map[string]string{
		"alpha":   "1",
		"alps":    "2",
		"beta":    "3",
		"bet":     "4",
		"gamma":   "5",
		"":        "6",
		"\x00\x01": "7",
	}
	for k, v := range entries {
		require.NoError(t, tr.Put([]byte(k), []byte(v), noPreimages))
	}
	for k, v := range entries {
		got, found, err := tr.Get([]byte(k), noPreimages)
		require.NoError(t, err)
		require.True(t, found, "key %q should be found", k)
		require.Equal(t, []byte(v), got)
	}

	missing, found, err := tr.Get([]byte("nonexistent"), noPreimages)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, missing)
}

// TestInsertOrderIndependence checks that the same set of keys produces the
// same root hash regardless of insertion order, the property a canonical
// trie must have for state roots to be deterministic across derivations.
func TestInsertOrderIndependence(t *testing.T) {
	keys := [][]byte{[]byte("alpha"), []byte("alps"), []byte("beta"), []byte("bets"), []byte("zeta")}
	values := [][]byte{[]byte("1"), []byte("2"), []byte("3"), []byte("4"), []byte("5")}

	forward := OpenRoot(EmptyRootHash)
	for i := range keys {
		require.NoError(t, forward.Put(keys[i], values[i], noPreimages))
	}
	forwardRoot, err := forward.Hash()
	require.NoError(t, err)

	backward := OpenRoot(EmptyRootHash)
	for i := len(keys) - 1; i >= 0; i-- {
		require.NoError(t, backward.Put(keys[i], values[i], noPreimages))
	}
	backwardRoot, err := backward.Hash()
	require.NoError(t, err)

	require.Equal(t, forwardRoot, backwardRoot)
}

func TestDeleteRestoresEmptyRoot(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	require.NoError(t, tr.Put([]byte("only"), []byte("value"), noPreimages))
	require.NoError(t, tr.Delete([]byte("only"), noPreimages))

	root, err := tr.Hash()
	require.NoError(t, err)
	require.Equal(t, EmptyRootHash, root)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	require.NoError(t, tr.Put([]byte("key"), []byte("value"), noPreimages))
	rootBefore, err := tr.Hash()
	require.NoError(t, err)

	require.NoError(t, tr.Delete([]byte("absent"), noPreimages))

	rootAfter, err := tr.Hash()
	require.NoError(t, err)
	require.Equal(t, rootBefore, rootAfter)
}

// TestInsertThenDeleteRoundTrip checks the quantified invariant that
// inserting a batch of keys and then deleting all of them returns the trie
// to the canonical empty root, regardless of how much branching the
// intermediate insertions produced.
func TestInsertThenDeleteRoundTrip(t *testing.T) {
	keys := [][]byte{
		[]byte("a"), []byte("ab"), []byte("abc"), []byte("b"),
		[]byte("ba"), []byte("c"), []byte{0xff, 0x00}, []byte{0xff, 0x01},
	}
	tr := OpenRoot(EmptyRootHash)
	for i, k := range keys {
		require.NoError(t, tr.Put(k, []byte{byte(i)}, noPreimages))
	}

	for _, k := range keys {
		require.NoError(t, tr.Delete(k, noPreimages))
	}

	root, err := tr.Hash()
	require.NoError(t, err)
	require.Equal(t, EmptyRootHash, root, "deleting every inserted key must restore the empty root")
}

// TestDeleteCollapsesBranchToExtension exercises the specific boundary
// collapseBranch hands off to collapseExtension: removing a branch down to
// exactly one child with no branch value must leave behind a canonical
// extension/leaf rather than a branch with sixteen mostly-empty slots.
func TestDeleteCollapsesBranchToExtension(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	// Two keys sharing a common nibble prefix long enough to force a branch,
	// then diverging, so deleting one collapses the branch down to one child.
	require.NoError(t, tr.Put([]byte{0x12, 0x34}, []byte("first"), noPreimages))
	require.NoError(t, tr.Put([]byte{0x12, 0x56}, []byte("second"), noPreimages))

	withBoth, err := tr.Hash()
	require.NoError(t, err)

	require.NoError(t, tr.Delete([]byte{0x12, 0x56}, noPreimages))

	withOne, err := tr.Hash()
	require.NoError(t, err)
	require.NotEqual(t, withBoth, withOne)

	// The collapsed trie must be byte-for-byte equal to one built by
	// inserting the surviving key alone from an empty trie - proof the
	// collapse produced the canonical shape, not a lingering branch.
	direct := OpenRoot(EmptyRootHash)
	require.NoError(t, direct.Put([]byte{0x12, 0x34}, []byte("first"), noPreimages))
	directRoot, err := direct.Hash()
	require.NoError(t, err)
	require.Equal(t, directRoot, withOne)

	got, found, err := tr.Get([]byte{0x12, 0x34}, noPreimages)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("first"), got)
}

// TestDeleteCollapsesBranchValueToLeaf covers the collapseBranch case where
// a branch with no remaining children but a value at the branch itself
// becomes a zero-length-path leaf rather than an empty node.
func TestDeleteCollapsesBranchValueToLeaf(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	// "a" and "ab" share nibble prefix "a"; "a" terminates exactly at the
	// branch created to distinguish them from "ab".
	require.NoError(t, tr.Put([]byte("a"), []byte("short"), noPreimages))
	require.NoError(t, tr.Put([]byte("ab"), []byte("long"), noPreimages))

	require.NoError(t, tr.Delete([]byte("ab"), noPreimages))

	got, found, err := tr.Get([]byte("a"), noPreimages)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("short"), got)

	_, found, err = tr.Get([]byte("ab"), noPreimages)
	require.NoError(t, err)
	require.False(t, found)
}

// collectPreimages walks a fully in-memory (unblinded) node tree and records
// every node's RLP encoding under its own commitment, producing a
// PreimageFetcher backed entirely by that map. Used to simulate a
// preimage oracle for tests that need to re-open a trie from nothing but
// its root hash.
func collectPreimages(n Node, out map[common.Hash][]byte) error {
	switch v := n.(type) {
	case Empty, Blinded:
		return nil
	case Leaf:
	case *Extension:
		if err := collectPreimages(*v.Child, out); err != nil {
			return err
		}
	case *Branch:
		for i := 0; i < 16; i++ {
			if err := collectPreimages(*v.Children[i], out); err != nil {
				return err
			}
		}
	}
	raw, err := EncodeNode(n)
	if err != nil {
		return err
	}
	hash, err := HashNode(n)
	if err != nil {
		return err
	}
	out[hash] = raw
	return nil
}

func TestReadTrieOrdersAllValues(t *testing.T) {
	tr := OpenRoot(EmptyRootHash)
	values := [][]byte{[]byte("v0"), []byte("v1"), []byte("v2")}
	for i, v := range values {
		require.NoError(t, tr.Put(rlp.AppendUint64(nil, uint64(i)), v, noPreimages))
	}
	root, err := tr.Hash()
	require.NoError(t, err)

	preimages := make(map[common.Hash][]byte)
	require.NoError(t, collectPreimages(tr.root, preimages))
	fetch := func(h common.Hash) ([]byte, error) {
		raw, ok := preimages[h]
		if !ok {
			return nil, errMissingPreimage(h)
		}
		return raw, nil
	}

	out, err := ReadTrie(root, fetch)
	require.NoError(t, err)
	require.Len(t, out, len(values))
	require.Equal(t, values, out)
}

type errMissingPreimage common.Hash

func (e errMissingPreimage) Error() string {
	return "missing test preimage for " + common.Hash(e).String()
}
