package derive

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/l2verify/fault-proof/eth"
)

// L1BlockInfoTx is the decoded form of the first (system) transaction of
// every L2 block: a deposit transaction carrying the L1 origin's header
// fields and the active system config into the L2 execution environment
// via the predeployed L1Block contract. Its wire encoding is
// hardfork-dependent: Bedrock is 118 bytes, Ecotone 164, Isthmus adds
// operator-fee fields on top of Ecotone's layout. Reconstructed from the
// well-known OP-stack L1-info deposit calldata layout since no
// implementation file for it was available to copy from — see DESIGN.md
// for the exact layout this chose to reach those lengths.
type L1BlockInfoTx struct {
	Number         uint64
	Timestamp      uint64
	BaseFee        *big.Int
	BlockHash      common.Hash
	SequenceNumber uint64
	BatcherAddr    common.Address

	BlobBaseFee      *big.Int // Ecotone+
	BaseFeeScalar    uint32   // Ecotone+
	BlobBaseFeeScalar uint32  // Ecotone+

	OperatorFeeScalar   uint32 // Isthmus+
	OperatorFeeConstant uint64 // Isthmus+
}

var (
	l1InfoBedrockSelector = [4]byte{0x01, 0x5d, 0x8e, 0xb9}
	l1InfoEcotoneSelector = [4]byte{0x44, 0x0a, 0x5e, 0x20}
	l1InfoIsthmusSelector = func() [4]byte {
		sig := crypto.Keccak256([]byte("setL1BlockValuesIsthmus()"))
		var sel [4]byte
		copy(sel[:], sig[:4])
		return sel
	}()

	l1InfoBedrockLen = 118
	l1InfoEcotoneLen = 164
	l1InfoIsthmusLen = 176
)

// L1InfoDepositBytes encodes the L1 block info deposit transaction's
// calldata for the hardfork active at l2Timestamp.
func L1InfoDepositBytes(cfg interface{ IsEcotone(uint64) bool; IsIsthmus(uint64) bool }, info *L1BlockInfoTx, l2Timestamp uint64) ([]byte, error) {
	switch {
	case cfg.IsIsthmus(l2Timestamp):
		return encodeL1BlockInfoIsthmus(info), nil
	case cfg.IsEcotone(l2Timestamp):
		return encodeL1BlockInfoEcotone(info), nil
	default:
		return encodeL1BlockInfoBedrock(info), nil
	}
}

func encodeL1BlockInfoBedrock(info *L1BlockInfoTx) []byte {
	out := make([]byte, l1InfoBedrockLen)
	copy(out[0:4], l1InfoBedrockSelector[:])
	binary.BigEndian.PutUint64(out[4:12], info.Number)
	binary.BigEndian.PutUint64(out[12:20], info.Timestamp)
	writeUint256(out[20:52], info.BaseFee)
	copy(out[52:84], info.BlockHash[:])
	binary.BigEndian.PutUint64(out[84:92], info.SequenceNumber)
	copy(out[92:112], info.BatcherAddr[:])
	// out[112:118] are reserved, zero.
	return out
}

func decodeL1BlockInfoBedrock(data []byte) (*L1BlockInfoTx, error) {
	if len(data) != l1InfoBedrockLen {
		return nil, fmt.Errorf("bedrock l1 block info must be %d bytes, got %d", l1InfoBedrockLen, len(data))
	}
	info := &L1BlockInfoTx{
		Number:         binary.BigEndian.Uint64(data[4:12]),
		Timestamp:      binary.BigEndian.Uint64(data[12:20]),
		BaseFee:        new(big.Int).SetBytes(data[20:52]),
		SequenceNumber: binary.BigEndian.Uint64(data[84:92]),
	}
	copy(info.BlockHash[:], data[52:84])
	copy(info.BatcherAddr[:], data[92:112])
	return info, nil
}

func encodeL1BlockInfoEcotone(info *L1BlockInfoTx) []byte {
	out := make([]byte, l1InfoEcotoneLen)
	copy(out[0:4], l1InfoEcotoneSelector[:])
	binary.BigEndian.PutUint32(out[4:8], info.BaseFeeScalar)
	binary.BigEndian.PutUint32(out[8:12], info.BlobBaseFeeScalar)
	binary.BigEndian.PutUint64(out[12:20], info.SequenceNumber)
	binary.BigEndian.PutUint64(out[20:28], info.Timestamp)
	binary.BigEndian.PutUint64(out[28:36], info.Number)
	writeUint256(out[36:68], info.BaseFee)
	writeUint256(out[68:100], info.BlobBaseFee)
	copy(out[100:132], info.BlockHash[:])
	copy(out[144:164], info.BatcherAddr[:]) // left-padded into the last 20 bytes of a 32-byte word
	return out
}

func decodeL1BlockInfoEcotone(data []byte) (*L1BlockInfoTx, error) {
	if len(data) != l1InfoEcotoneLen {
		return nil, fmt.Errorf("ecotone l1 block info must be %d bytes, got %d", l1InfoEcotoneLen, len(data))
	}
	info := &L1BlockInfoTx{
		BaseFeeScalar:     binary.BigEndian.Uint32(data[4:8]),
		BlobBaseFeeScalar: binary.BigEndian.Uint32(data[8:12]),
		SequenceNumber:    binary.BigEndian.Uint64(data[12:20]),
		Timestamp:         binary.BigEndian.Uint64(data[20:28]),
		Number:            binary.BigEndian.Uint64(data[28:36]),
		BaseFee:           new(big.Int).SetBytes(data[36:68]),
		BlobBaseFee:       new(big.Int).SetBytes(data[68:100]),
	}
	copy(info.BlockHash[:], data[100:132])
	copy(info.BatcherAddr[:], data[144:164])
	return info, nil
}

func encodeL1BlockInfoIsthmus(info *L1BlockInfoTx) []byte {
	base := encodeL1BlockInfoEcotone(info)
	base[0], base[1], base[2], base[3] = l1InfoIsthmusSelector[0], l1InfoIsthmusSelector[1], l1InfoIsthmusSelector[2], l1InfoIsthmusSelector[3]
	out := make([]byte, l1InfoIsthmusLen)
	copy(out, base)
	binary.BigEndian.PutUint32(out[164:168], info.OperatorFeeScalar)
	binary.BigEndian.PutUint64(out[168:176], info.OperatorFeeConstant)
	return out
}

func decodeL1BlockInfoIsthmus(data []byte) (*L1BlockInfoTx, error) {
	if len(data) != l1InfoIsthmusLen {
		return nil, fmt.Errorf("isthmus l1 block info must be %d bytes, got %d", l1InfoIsthmusLen, len(data))
	}
	info, err := decodeL1BlockInfoEcotone(data[:l1InfoEcotoneLen])
	if err != nil {
		return nil, err
	}
	info.OperatorFeeScalar = binary.BigEndian.Uint32(data[164:168])
	info.OperatorFeeConstant = binary.BigEndian.Uint64(data[168:176])
	return info, nil
}

// L1BlockInfoFromBytes dispatches on length to decode an L1 block info
// deposit transaction's calldata, regardless of which hardfork produced
// it.
func L1BlockInfoFromBytes(data []byte) (*L1BlockInfoTx, error) {
	switch len(data) {
	case l1InfoBedrockLen:
		return decodeL1BlockInfoBedrock(data)
	case l1InfoEcotoneLen:
		return decodeL1BlockInfoEcotone(data)
	case l1InfoIsthmusLen:
		return decodeL1BlockInfoIsthmus(data)
	default:
		return nil, fmt.Errorf("unrecognized l1 block info length %d", len(data))
	}
}

func writeUint256(dst []byte, v *big.Int) {
	if v == nil {
		return
	}
	b := v.Bytes()
	copy(dst[len(dst)-len(b):], b)
}

// systemConfigToL1BlockInfo derives the L1BlockInfoTx fields that come
// from the active system config rather than the L1 header.
func systemConfigToL1BlockInfo(sysCfg eth.SystemConfig) (baseFeeScalar, blobBaseFeeScalar, operatorFeeScalar uint32, operatorFeeConstant uint64, err error) {
	scalars, err := eth.DecodeScalar(sysCfg.Scalar)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	op := eth.DecodeOperatorFeeParams(sysCfg.OperatorFeeParams)
	return scalars.BaseFeeScalar, scalars.BlobBaseFeeScalar, op.Scalar, op.Constant, nil
}
