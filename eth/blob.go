package eth

import (
	"crypto/sha256"
	"errors"

	ckzg "github.com/crate-crypto/go-kzg-4844"
	"github.com/ethereum/go-ethereum/common"
)

var kzgCtx, _ = ckzg.NewContext4096Secure()

// blobCommitmentVersionKZG is the EIP-4844 versioned-hash version byte
// identifying a commitment as a KZG commitment.
const blobCommitmentVersionKZG byte = 0x01

// KZGToVersionedHash computes the EIP-4844 versioned hash of a KZG
// commitment: sha256(commitment) with the high byte replaced by the
// version marker.
func KZGToVersionedHash(commitment [48]byte) common.Hash {
	hash := sha256.Sum256(commitment[:])
	hash[0] = blobCommitmentVersionKZG
	return hash
}

// toCommitment computes the KZG commitment of the blob's 4096 field
// elements, used to cross-check the commitment an oracle hint carried
// against the blob actually assembled from field-element preimages.
func (b *Blob) toCommitment() ([48]byte, error) {
	if kzgCtx == nil {
		return [48]byte{}, errors.New("kzg context unavailable")
	}
	var blob ckzg.Blob
	copy(blob[:], b[:])
	commitment, err := kzgCtx.BlobToKZGCommitment(&blob, 0)
	if err != nil {
		return [48]byte{}, err
	}
	return commitment, nil
}

// VerifyBlobProof checks a KZG opening proof for the blob against its
// claimed commitment. The L1 blob provider does not call it; it recomputes
// the commitment instead (see toCommitment).
func VerifyBlobProof(b *Blob, commitment [48]byte, proof [48]byte) error {
	var blob ckzg.Blob
	copy(blob[:], b[:])
	return kzgCtx.VerifyBlobKZGProof(&blob, ckzg.KZGCommitment(commitment), ckzg.KZGProof(proof))
}
