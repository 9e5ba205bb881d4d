// Package l1 implements the L1 chain, blob, and precompile providers the
// derivation pipeline and attributes builder read from, backed by a
// synchronous preimage oracle.
package l1

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/l2verify/fault-proof/client/mpt"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/preimage"
)

// Oracle is the L1 data surface the derivation pipeline depends on: block
// headers, the transactions and receipts within a block, blobs, and
// precompile call results.
type Oracle interface {
	HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo
	TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions)
	ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts)
	GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob
	Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool)
}

// PreimageOracle implements Oracle purely in terms of the generic preimage
// and hint channels, decoding whatever the host hands back.
type PreimageOracle struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

var _ Oracle = (*PreimageOracle)(nil)

func NewPreimageOracle(oracle preimage.Oracle, hint preimage.Hinter) *PreimageOracle {
	return &PreimageOracle{oracle: oracle, hint: hint}
}

func (p *PreimageOracle) headerByBlockHash(blockHash common.Hash) *types.Header {
	p.hint.Hint(BlockHeaderHint(blockHash))
	raw := p.oracle.Get(preimage.Keccak256Key(blockHash))
	var header types.Header
	if err := rlp.DecodeBytes(raw, &header); err != nil {
		panic(fmt.Errorf("invalid L1 block header %s: %w", blockHash, err))
	}
	return &header
}

func (p *PreimageOracle) HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo {
	return eth.HeaderBlockInfoTrusted(blockHash, p.headerByBlockHash(blockHash))
}

func (p *PreimageOracle) fetchNode(hash common.Hash) ([]byte, error) {
	return p.oracle.Get(preimage.Keccak256Key(hash)), nil
}

func (p *PreimageOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions) {
	header := p.headerByBlockHash(blockHash)
	p.hint.Hint(TransactionsHint(blockHash))

	opaqueTxs, err := mpt.ReadTrie(header.TxHash, p.fetchNode)
	if err != nil {
		panic(fmt.Errorf("failed to read transaction trie for %s: %w", blockHash, err))
	}
	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		panic(fmt.Errorf("failed to decode transactions for %s: %w", blockHash, err))
	}
	return eth.HeaderBlockInfoTrusted(blockHash, header), txs
}

func (p *PreimageOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts) {
	info, txs := p.TransactionsByBlockHash(blockHash)
	p.hint.Hint(ReceiptsHint(blockHash))

	opaqueReceipts, err := mpt.ReadTrie(info.ReceiptHash(), p.fetchNode)
	if err != nil {
		panic(fmt.Errorf("failed to read receipt trie for %s: %w", blockHash, err))
	}

	txHashes := eth.TransactionsToHashes(txs)
	receipts, err := eth.DecodeRawReceipts(eth.ToBlockID(info), opaqueReceipts, txHashes)
	if err != nil {
		panic(fmt.Errorf("bad receipt data for block %s: %w", blockHash, err))
	}
	return info, receipts
}

func (p *PreimageOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob {
	p.hint.Hint(BlobHint(encodeBlobHintPayload(blobHash.Hash, blobHash.Index, ref.Time)))

	commitment := p.oracle.Get(preimage.Sha256Key(sha256KeyOf(blobHash.Hash)))

	var blob eth.Blob
	fieldElemKey := make([]byte, 80)
	copy(fieldElemKey[:48], commitment)
	for i := 0; i < params.BlobTxFieldElementsPerBlob; i++ {
		root := RootsOfUnity[i].Bytes()
		copy(fieldElemKey[48:], root[:])
		fieldElement := p.oracle.Get(preimage.BlobKey(crypto.Keccak256(fieldElemKey)))
		copy(blob[i<<5:(i+1)<<5], fieldElement)
	}

	var claimed [48]byte
	copy(claimed[:], commitment)
	computed, err := blob.KZGCommitment()
	if err != nil {
		panic(fmt.Errorf("failed to compute KZG commitment of blob %s: %w", blobHash.Hash, err))
	}
	if computed != claimed || eth.KZGToVersionedHash(computed) != blobHash.Hash {
		panic(fmt.Errorf("blob %s does not match its KZG commitment", blobHash.Hash))
	}
	return &blob
}

// sha256KeyOf returns the digest a blob commitment preimage is keyed under.
// The blob versioned hash itself is a sha256 digest with its high byte set
// to the blob-hash version marker, so it is already the key data needed.
func sha256KeyOf(blobHash common.Hash) [32]byte {
	return blobHash
}

func (p *PreimageOracle) Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool) {
	hintBytes := append(address.Bytes(), binary.BigEndian.AppendUint64(nil, requiredGas)...)
	hintBytes = append(hintBytes, input...)
	p.hint.Hint(PrecompileHintV2(hintBytes))

	key := preimage.PrecompileKey(crypto.Keccak256Hash(hintBytes))
	result := p.oracle.Get(key)
	if len(result) == 0 {
		panic(fmt.Sprintf("unexpected precompile oracle response for %s: %x", address, result))
	}
	return result[1:], result[0] == 1
}

// RootsOfUnity holds the 4096 bit-reversed 4096th roots of unity used as
// EIP-4844 blob evaluation points: the field element at index i of a blob
// is the polynomial evaluated at RootsOfUnity[i].
var RootsOfUnity *[4096]fr.Element

func generateRootsOfUnity() *[4096]fr.Element {
	rootsOfUnity := new([4096]fr.Element)

	const maxOrderRoot uint64 = 32
	var rootOfUnity fr.Element
	if _, err := rootOfUnity.SetString("10238227357739495823651030575849232062558860180284477541189508159991286009131"); err != nil {
		panic("failed to initialize root of unity")
	}
	logx := uint64(bits.TrailingZeros64(4096))
	expo := uint64(1 << (maxOrderRoot - logx))

	var generator fr.Element
	generator.Exp(rootOfUnity, big.NewInt(int64(expo)))
	current := fr.One()
	for i := uint64(0); i < 4096; i++ {
		rootsOfUnity[i] = current
		current.Mul(&current, &generator)
	}
	shiftCorrection := uint64(64 - bits.TrailingZeros64(4096))
	for i := uint64(0); i < 4096; i++ {
		irev := bits.Reverse64(i) >> shiftCorrection
		if irev > i {
			rootsOfUnity[i], rootsOfUnity[irev] = rootsOfUnity[irev], rootsOfUnity[i]
		}
	}
	return rootsOfUnity
}

func init() {
	RootsOfUnity = generateRootsOfUnity()
}
