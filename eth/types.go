// Package eth holds the data model shared by the derivation pipeline and the
// stateless executor: L1/L2 block references, the rollup's system config,
// and L2 payload attributes.
package eth

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Bytes32 is a 32-byte value that (un)marshals to/from hex the way go-ethereum's
// common.Hash does, but is used for values that are not necessarily hashes
// (scalars, randao, beacon roots).
type Bytes32 [32]byte

func (b Bytes32) String() string { return hexutil.Encode(b[:]) }

func (b Bytes32) TerminalString() string { return hexutil.Encode(b[:8]) }

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(b[:])), nil
}

func (b *Bytes32) UnmarshalText(text []byte) error {
	dec, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("failed to decode bytes32 %q: %w", text, err)
	}
	if len(dec) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(dec))
	}
	copy(b[:], dec)
	return nil
}

// Bytes8 is used for the packed EIP-1559 denominator/elasticity override pair.
type Bytes8 [8]byte

func (b Bytes8) String() string { return hexutil.Encode(b[:]) }

func (b Bytes8) MarshalText() ([]byte, error) { return []byte(hexutil.Encode(b[:])), nil }

func (b *Bytes8) UnmarshalText(text []byte) error {
	dec, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(dec) != 8 {
		return fmt.Errorf("expected 8 bytes, got %d", len(dec))
	}
	copy(b[:], dec)
	return nil
}

// ChainID is a uint256-sized chain identifier, kept distinct from a plain
// uint64 because some rollup configs carry L1 chain IDs too large for one.
type ChainID struct{ inner big.Int }

func ChainIDFromUInt64(v uint64) ChainID {
	var id ChainID
	id.inner.SetUint64(v)
	return id
}

func ChainIDFromBig(v *big.Int) ChainID {
	var id ChainID
	id.inner.Set(v)
	return id
}

func (id ChainID) ToBig() *big.Int { return new(big.Int).Set(&id.inner) }

func (id ChainID) String() string { return id.inner.String() }

func (id ChainID) Cmp(other ChainID) int { return id.inner.Cmp(&other.inner) }

// EvilChainIDToUInt64 truncates the chain ID to a uint64 for use in hint
// payloads, where the wire format only carries 8 bytes. A chain ID that
// does not fit is a configuration bug, not something to silently wrap.
func EvilChainIDToUInt64(id ChainID) uint64 {
	if !id.inner.IsUint64() {
		panic(fmt.Sprintf("chain ID %s does not fit in a uint64", id.inner.String()))
	}
	return id.inner.Uint64()
}

func (id ChainID) MarshalText() ([]byte, error) { return []byte(id.inner.String()), nil }

func (id *ChainID) UnmarshalText(text []byte) error {
	_, ok := id.inner.SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid chain id %q", text)
	}
	return nil
}

// BlockID identifies an L1 or L2 block by hash and number, without the extra
// context (parent hash, timestamp) that a full BlockInfo carries.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// BlockInfo is the subset of a block header the derivation pipeline and
// attributes builder need, abstracted so both oracle-backed and
// trusted-local headers can implement it uniformly.
type BlockInfo interface {
	Hash() common.Hash
	ParentHash() common.Hash
	Coinbase() common.Address
	Root() common.Hash
	NumberU64() uint64
	Time() uint64
	MixDigest() common.Hash
	BaseFee() *big.Int
	BlobBaseFee() *big.Int
	ReceiptHash() common.Hash
	GasUsed() uint64
	GasLimit() uint64
	ParentBeaconRoot() *common.Hash
	HeaderRLP() ([]byte, error)
}

type headerBlockInfo struct {
	hash common.Hash
	hdr  *types.Header
}

// HeaderBlockInfoTrusted wraps a go-ethereum header whose hash has already
// been authenticated (the oracle key a header was fetched under is the
// header's own hash, so trust follows from the lookup itself).
func HeaderBlockInfoTrusted(hash common.Hash, hdr *types.Header) BlockInfo {
	return &headerBlockInfo{hash: hash, hdr: hdr}
}

func (h *headerBlockInfo) Hash() common.Hash       { return h.hash }
func (h *headerBlockInfo) ParentHash() common.Hash { return h.hdr.ParentHash }
func (h *headerBlockInfo) Coinbase() common.Address {
	return h.hdr.Coinbase
}
func (h *headerBlockInfo) Root() common.Hash  { return h.hdr.Root }
func (h *headerBlockInfo) NumberU64() uint64  { return h.hdr.Number.Uint64() }
func (h *headerBlockInfo) Time() uint64       { return h.hdr.Time }
func (h *headerBlockInfo) MixDigest() common.Hash {
	return h.hdr.MixDigest
}
func (h *headerBlockInfo) BaseFee() *big.Int {
	if h.hdr.BaseFee == nil {
		return nil
	}
	return new(big.Int).Set(h.hdr.BaseFee)
}
func (h *headerBlockInfo) BlobBaseFee() *big.Int {
	if h.hdr.ExcessBlobGas == nil {
		return nil
	}
	return eip4844BlobBaseFee(*h.hdr.ExcessBlobGas)
}
func (h *headerBlockInfo) ReceiptHash() common.Hash { return h.hdr.ReceiptHash }
func (h *headerBlockInfo) GasUsed() uint64          { return h.hdr.GasUsed }
func (h *headerBlockInfo) GasLimit() uint64         { return h.hdr.GasLimit }
func (h *headerBlockInfo) ParentBeaconRoot() *common.Hash {
	return h.hdr.ParentBeaconRoot
}
func (h *headerBlockInfo) HeaderRLP() ([]byte, error) {
	return headerRLP(h.hdr)
}

// ToBlockID extracts the (hash, number) pair of a BlockInfo.
func ToBlockID(b BlockInfo) BlockID {
	return BlockID{Hash: b.Hash(), Number: b.NumberU64()}
}

// L1BlockRef is the lightweight reference to an L1 block carried through the
// pipeline once its header has been consumed; it elides fields the pipeline
// never needs again.
type L1BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (id L1BlockRef) ID() BlockID { return BlockID{Hash: id.Hash, Number: id.Number} }

func (id L1BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

func L1BlockRefFromInfo(info BlockInfo) L1BlockRef {
	return L1BlockRef{
		Hash:       info.Hash(),
		Number:     info.NumberU64(),
		ParentHash: info.ParentHash(),
		Time:       info.Time(),
	}
}

// L2BlockRef additionally carries the L1 origin and sequence number within
// that origin's epoch.
type L2BlockRef struct {
	Hash           common.Hash `json:"hash"`
	Number         uint64      `json:"number"`
	ParentHash     common.Hash `json:"parentHash"`
	Time           uint64      `json:"timestamp"`
	L1Origin       BlockID     `json:"l1origin"`
	SequenceNumber uint64      `json:"sequenceNumber"`
}

func (id L2BlockRef) ID() BlockID { return BlockID{Hash: id.Hash, Number: id.Number} }

func (id L2BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

func L2BlockRefFromHeader(hash common.Hash, hdr *types.Header, l1Origin BlockID, seqNum uint64) L2BlockRef {
	return L2BlockRef{
		Hash:           hash,
		Number:         hdr.Number.Uint64(),
		ParentHash:     hdr.ParentHash,
		Time:           hdr.Time,
		L1Origin:       l1Origin,
		SequenceNumber: seqNum,
	}
}

// Data is a raw byte payload read out of an L1 transaction or blob, tagged
// with the DA version byte per spec.md's batch-inbox convention.
type Data []byte

// Uint64Quantity marshals as a 0x-prefixed hex quantity like go-ethereum's
// hexutil.Uint64, reused here to avoid importing it everywhere attributes
// are built.
type Uint64Quantity = hexutil.Uint64

// IndexedBlobHash identifies one blob within an L1 transaction's blob list.
type IndexedBlobHash struct {
	Index uint64
	Hash  common.Hash
}

// Blob is the raw 4096-field-element blob payload, reconstructed field
// element by field element from oracle responses.
type Blob [131072]byte

func (b *Blob) KZGCommitment() ([48]byte, error) {
	return b.toCommitment()
}

// SystemConfig carries the rollup-configurable parameters that can change at
// L1 block boundaries: batcher address, fee vault overhead/scalar, gas
// limit, and (post-Ecotone/Holocene/Isthmus) the packed scalar and EIP-1559
// and operator-fee parameter fields. Field layout mirrors
// op-service/eth.SystemConfig (teacher, present only as _test.go in the
// retrieval pack; field names and JSON tags are taken from
// TestSystemConfigMarshaling's expected payload).
type SystemConfig struct {
	BatcherAddr common.Address `json:"batcherAddr"`
	Overhead    Bytes32        `json:"overhead"`
	Scalar      Bytes32        `json:"scalar"`
	GasLimit    uint64         `json:"gasLimit"`

	// EIP1559Params packs the Holocene-activated EIP-1559 denominator (high
	// 4 bytes) and elasticity (low 4 bytes) override. Zero means "use the
	// rollup config default".
	EIP1559Params Bytes8 `json:"eip1559Params"`

	// OperatorFeeParams packs the Isthmus operator fee scalar (bytes 20-23)
	// and constant (bytes 24-31) used by EcotoneScalars-adjacent accounting.
	OperatorFeeParams Bytes32 `json:"operatorFeeParams"`

	MinBaseFee           uint64 `json:"minBaseFee"`
	BaseFee              uint64 `json:"baseFee,omitempty"`
	DAFootprintGasScalar uint32 `json:"daFootprintGasScalar"`

	// MarshalPreHolocene, when set, drops every field introduced after
	// Bedrock from the JSON encoding. Used by system-config-update replay
	// when emitting configs for pre-Holocene activity logs.
	MarshalPreHolocene bool `json:"-"`
}

const DAFootprintGasScalarDefault = 400

type preHoloceneSystemConfig struct {
	BatcherAddr common.Address `json:"batcherAddr"`
	Overhead    Bytes32        `json:"overhead"`
	Scalar      Bytes32        `json:"scalar"`
	GasLimit    uint64         `json:"gasLimit"`
}

func (c SystemConfig) MarshalJSON() ([]byte, error) {
	if c.MarshalPreHolocene {
		return json.Marshal(preHoloceneSystemConfig{
			BatcherAddr: c.BatcherAddr,
			Overhead:    c.Overhead,
			Scalar:      c.Scalar,
			GasLimit:    c.GasLimit,
		})
	}
	type full SystemConfig
	return json.Marshal(full(c))
}

// EcotoneScalars unpacks the Ecotone-era packed Scalar field. Byte 0 of the
// big-endian 32-byte value selects the version: version 0 ignores bytes
// [1:28] (legacy "dirty" padding is tolerated) and takes bytes [28:32] as
// the base fee scalar with blob base fee scalar zero;
// version 1 splits [24:28] = blob base fee scalar and [28:32] = base fee
// scalar. Any other version is rejected. Grounded on
// op-service/eth.TestEcotoneScalars's exact table.
type EcotoneScalars struct {
	BlobBaseFeeScalar uint32
	BaseFeeScalar     uint32
}

var ErrInvalidScalarVersion = errors.New("unrecognized scalar version")

func (c SystemConfig) EcotoneScalars() (EcotoneScalars, error) {
	return DecodeScalar(c.Scalar)
}

func DecodeScalar(v Bytes32) (EcotoneScalars, error) {
	switch v[0] {
	case 0:
		if !allZero(v[1:28]) {
			// dirty padding on a v0 scalar is tolerated; only the low 4
			// bytes are meaningful.
		}
		return EcotoneScalars{BlobBaseFeeScalar: 0, BaseFeeScalar: binary.BigEndian.Uint32(v[28:32])}, nil
	case 1:
		if !allZero(v[1:24]) {
			return EcotoneScalars{}, ErrInvalidScalarVersion
		}
		return EcotoneScalars{
			BlobBaseFeeScalar: binary.BigEndian.Uint32(v[24:28]),
			BaseFeeScalar:     binary.BigEndian.Uint32(v[28:32]),
		}, nil
	default:
		return EcotoneScalars{}, ErrInvalidScalarVersion
	}
}

func EncodeScalar(s EcotoneScalars) Bytes32 {
	var v Bytes32
	v[0] = 1
	binary.BigEndian.PutUint32(v[24:28], s.BlobBaseFeeScalar)
	binary.BigEndian.PutUint32(v[28:32], s.BaseFeeScalar)
	return v
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

// OperatorFeeParams unpacks the Isthmus operator fee scalar/constant pair.
type OperatorFeeParams struct {
	Scalar   uint32
	Constant uint64
}

func (c SystemConfig) OperatorFee() OperatorFeeParams {
	return DecodeOperatorFeeParams(c.OperatorFeeParams)
}

// DecodeOperatorFeeParams reads a 4-byte big-endian scalar at offset 20 and
// an 8-byte big-endian constant at offset 24, matching
// TestOperatorFeeScalars: {20: 4, 29: 3} decodes to scalar 0x04000000,
// constant 0x30000.
func DecodeOperatorFeeParams(v Bytes32) OperatorFeeParams {
	scalar := binary.BigEndian.Uint32(v[20:24])
	constant := binary.BigEndian.Uint64(v[24:32])
	return OperatorFeeParams{Scalar: scalar, Constant: constant}
}

func EncodeOperatorFeeParams(p OperatorFeeParams) Bytes32 {
	var v Bytes32
	binary.BigEndian.PutUint32(v[20:24], p.Scalar)
	binary.BigEndian.PutUint64(v[24:32], p.Constant)
	return v
}

// PayloadAttributes is the set of inputs needed to build one L2 block: the
// sequenced/derived transaction list plus the block environment (timestamp,
// randao, fee recipient, gas limit, and the post-Holocene/Isthmus overrides).
type PayloadAttributes struct {
	Timestamp             Uint64Quantity   `json:"timestamp"`
	PrevRandao            Bytes32          `json:"prevRandao"`
	SuggestedFeeRecipient common.Address   `json:"suggestedFeeRecipient"`
	Withdrawals           *types.Withdrawals `json:"withdrawals,omitempty"`
	ParentBeaconBlockRoot *common.Hash     `json:"parentBeaconBlockRoot,omitempty"`
	Transactions          []hexutil.Bytes  `json:"transactions,omitempty"`
	NoTxPool              bool             `json:"noTxPool,omitempty"`
	GasLimit              *Uint64Quantity  `json:"gasLimit,omitempty"`
	EIP1559Params         *Bytes8          `json:"eip1559Params,omitempty"`
	MinBaseFee            *uint64          `json:"minBaseFee,omitempty"`
	BaseFee               uint64           `json:"baseFee,omitempty"`
	OperatorFeeParams     *OperatorFeeParams `json:"-"`
}

// WithDepositsOnly returns a shallow clone with every non-deposit
// transaction stripped, preserving order. Used when a Holocene
// FlushChannel signal requires replacing a block with its deposits-only
// equivalent.
func (a *PayloadAttributes) WithDepositsOnly() *PayloadAttributes {
	clone := *a
	filtered := make([]hexutil.Bytes, 0, len(a.Transactions))
	for _, tx := range a.Transactions {
		if len(tx) > 0 && tx[0] == types.DepositTxType {
			filtered = append(filtered, tx)
		}
	}
	clone.Transactions = filtered
	return &clone
}

func headerRLP(h *types.Header) ([]byte, error) {
	return rlpEncode(h)
}

func eip4844BlobBaseFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(minBlobBaseFee, new(big.Int).SetUint64(excessBlobGas), blobBaseFeeUpdateFraction)
}

var (
	minBlobBaseFee            = big.NewInt(1)
	blobBaseFeeUpdateFraction = big.NewInt(3338477)
)

func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	i := big.NewInt(1)
	output := big.NewInt(0)
	numeratorAccum := new(big.Int).Mul(factor, denominator)
	for numeratorAccum.Sign() > 0 {
		output.Add(output, numeratorAccum)
		numeratorAccum.Mul(numeratorAccum, numerator)
		numeratorAccum.Div(numeratorAccum, denominator)
		numeratorAccum.Div(numeratorAccum, i)
		i.Add(i, big.NewInt(1))
	}
	return output.Div(output, denominator)
}

// OutputRoot computes the versioned output-root commitment: keccak256(version
// || state_root || withdrawal_storage_root || block_hash), version 0.
func OutputRoot(version Bytes32, stateRoot, withdrawalStorageRoot, blockHash common.Hash) common.Hash {
	buf := make([]byte, 0, 32+32+32+32)
	buf = append(buf, version[:]...)
	buf = append(buf, stateRoot[:]...)
	buf = append(buf, withdrawalStorageRoot[:]...)
	buf = append(buf, blockHash[:]...)
	return keccak256Hash(buf)
}

// sha256Sum is used for preimage keys of type Sha256 (blob commitments).
func sha256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

var _ uint64 = math.MaxUint64
