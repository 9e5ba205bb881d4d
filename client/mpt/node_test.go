package mpt

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestDecodeBranchNode(t *testing.T) {
	raw := mustHex("f83ea0eb08a66a94882454bec899d3e82952dcc918ba4b35a09a84acd98019aef4345080808080808080cd308b8a746573742074687265658080808080808080")
	node, err := DecodeNode(raw)
	require.NoError(t, err)
	branch, ok := node.(*Branch)
	require.True(t, ok)

	first, ok := (*branch.Children[0]).(Blinded)
	require.True(t, ok)
	require.Equal(t, mustHex("eb08a66a94882454bec899d3e82952dcc918ba4b35a09a84acd98019aef43450"), first.Commitment[:])

	embedded, ok := (*branch.Children[8]).(Leaf)
	require.True(t, ok)
	require.Equal(t, []byte{0x30}, embedded.Key)
	require.Equal(t, mustHex("8a74657374207468726565"), embedded.Value)
}

func TestDecodeExtensionNode(t *testing.T) {
	raw := mustHex("e58300646fa0eb08a66a94882454bec899d3e82952dcc918ba4b35a09a84acd98019aef43450")
	node, err := DecodeNode(raw)
	require.NoError(t, err)
	ext, ok := node.(*Extension)
	require.True(t, ok)
	require.Equal(t, mustHex("00646f"), ext.Key)
}

func TestDecodeLeafNode(t *testing.T) {
	raw := mustHex("ca8320646f8576657262ff")
	node, err := DecodeNode(raw)
	require.NoError(t, err)
	leaf, ok := node.(Leaf)
	require.True(t, ok)
	require.Equal(t, mustHex("20646f"), leaf.Key)
	require.Equal(t, mustHex("76657262ff"), leaf.Value)
}

func TestHexPrefixRoundTrip(t *testing.T) {
	for _, tc := range [][]byte{
		{},
		{1},
		{1, 2},
		{0xa, 0xb, 0xc},
		{0, 1, 2, 3, 4, 5},
	} {
		encoded := hexPrefixEncode(tc, true)
		decoded, terminating := hexPrefixDecode(encoded)
		require.True(t, terminating)
		require.Equal(t, tc, decoded)
	}
}
