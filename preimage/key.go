// Package preimage implements the synchronous preimage-oracle and hint
// channel protocols used to fetch verified data into a fault-proof program
// one key at a time.
package preimage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyType is the one-byte tag that selects how a preimage key's 31 data
// bytes are interpreted. See https://specs.optimism.io/experimental/fault-proof/index.html#pre-image-key-types.
type KeyType byte

const (
	// LocalKeyType identifies data local to one program invocation: the
	// boot info values, which are context dependent and never shared
	// across proofs.
	LocalKeyType KeyType = 1
	// Keccak256KeyType maps the low-order 31 bytes of a keccak256 digest to
	// the preimage, global and context independent.
	Keccak256KeyType KeyType = 2
	// GlobalGenericKeyType is reserved for future global, context
	// independent preimage types.
	GlobalGenericKeyType KeyType = 3
	// Sha256KeyType maps the low-order 31 bytes of a sha256 digest to the
	// preimage, used for blob KZG commitments.
	Sha256KeyType KeyType = 4
	// BlobKeyType identifies a single blob field element, keyed by
	// keccak256(commitment || z) with the type byte overwritten.
	BlobKeyType KeyType = 5
	// PrecompileKeyType identifies the result of an EVM precompile call,
	// keyed by keccak256(address || gas || input) with the type byte
	// overwritten.
	PrecompileKeyType KeyType = 6
	// ZKEVMKeyType identifies a zk-EVM proof artifact surfaced through the
	// same oracle channel as the other global key types.
	ZKEVMKeyType KeyType = 7
	// PrecompileKeccak256KeyType identifies a keccak256 precompile call
	// result distinct from the general precompile result cache, so the
	// two can be evicted independently.
	PrecompileKeccak256KeyType KeyType = 8
)

// Key is a 32-byte oracle request: one type byte followed by 31 data bytes.
type Key interface {
	PreimageKey() [32]byte
}

type rawKey [32]byte

func (k rawKey) PreimageKey() [32]byte { return k }

// LocalIndexKey wraps a 64-bit local identifier. The identifier is written into
// the low-order 8 bytes of the 31-byte data field, matching kona's
// PreimageKey::new_local.
type LocalIndexKey uint64

func (k LocalIndexKey) PreimageKey() (out [32]byte) {
	out[0] = byte(LocalKeyType)
	binary.BigEndian.PutUint64(out[24:], uint64(k))
	return out
}

func withType(digest [32]byte, t KeyType) [32]byte {
	digest[0] = byte(t)
	return digest
}

// Keccak256Key builds a Keccak256KeyType key from the low-order 31 bytes of
// the given digest, which callers typically obtain via crypto.Keccak256Hash.
func Keccak256Key(digest common.Hash) Key {
	return rawKey(withType(digest, Keccak256KeyType))
}

// Sha256Key builds a Sha256KeyType key from the low-order 31 bytes of a
// sha256 digest.
func Sha256Key(digest [32]byte) Key {
	return rawKey(withType(digest, Sha256KeyType))
}

// BlobKey builds a BlobKeyType key from keccak256(commitment || z).
func BlobKey(preimage []byte) Key {
	return rawKey(withType(crypto.Keccak256Hash(preimage), BlobKeyType))
}

// PrecompileKey builds a PrecompileKeyType key from a digest already
// computed as keccak256(address || gas || input).
func PrecompileKey(digest common.Hash) Key {
	return rawKey(withType(digest, PrecompileKeyType))
}

// PrecompileKeccak256Key is the same construction as PrecompileKey, tagged
// distinctly so callers and caches can tell a keccak256 precompile result
// apart from other precompiles.
func PrecompileKeccak256Key(digest common.Hash) Key {
	return rawKey(withType(digest, PrecompileKeccak256KeyType))
}

// ZKEVMKey builds a ZKEVMKeyType key from a digest identifying the proof
// artifact being requested.
func ZKEVMKey(digest common.Hash) Key {
	return rawKey(withType(digest, ZKEVMKeyType))
}

// KeyTypeOf extracts the type byte of a 32-byte rendered key.
func KeyTypeOf(raw [32]byte) KeyType { return KeyType(raw[0]) }

// ParseKey reconstructs a Key from its 32-byte wire form, validating the
// type byte names a known key type.
func ParseKey(raw [32]byte) (Key, error) {
	switch KeyType(raw[0]) {
	case LocalKeyType, Keccak256KeyType, GlobalGenericKeyType, Sha256KeyType,
		BlobKeyType, PrecompileKeyType, ZKEVMKeyType, PrecompileKeccak256KeyType:
		return rawKey(raw), nil
	default:
		return nil, fmt.Errorf("unrecognized preimage key type %d", raw[0])
	}
}
