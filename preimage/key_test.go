package preimage

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestKeccak256Key(t *testing.T) {
	data := []byte("hello world")
	digest := crypto.Keccak256Hash(data)
	key := Keccak256Key(digest)
	raw := key.PreimageKey()
	require.Equal(t, byte(Keccak256KeyType), raw[0])
	require.Equal(t, digest[1:], raw[1:])
}

func TestLocalIndexKey(t *testing.T) {
	key := LocalIndexKey(7)
	raw := key.PreimageKey()
	require.Equal(t, byte(LocalKeyType), raw[0])
	require.Equal(t, uint64(7), uint64(raw[24])<<56|uint64(raw[25])<<48|uint64(raw[26])<<40|uint64(raw[27])<<32|uint64(raw[28])<<24|uint64(raw[29])<<16|uint64(raw[30])<<8|uint64(raw[31]))
}

func TestParseKeyRejectsUnknownType(t *testing.T) {
	var raw [32]byte
	raw[0] = 0xff
	_, err := ParseKey(raw)
	require.Error(t, err)
}

func TestParseKeyRoundTrip(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("round trip"))
	key := Sha256Key(digest)
	parsed, err := ParseKey(key.PreimageKey())
	require.NoError(t, err)
	require.Equal(t, key.PreimageKey(), parsed.PreimageKey())
}
