package derive

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func sampleL1BlockInfo() *L1BlockInfoTx {
	return &L1BlockInfoTx{
		Number:              19_000_000,
		Timestamp:           1_700_000_000,
		BaseFee:             big.NewInt(42_000_000_000),
		BlockHash:           common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000beef"),
		SequenceNumber:      7,
		BatcherAddr:         common.HexToAddress("0x000000000000000000000000000000000000b1"),
		BlobBaseFee:         big.NewInt(1),
		BaseFeeScalar:       1_368,
		BlobBaseFeeScalar:   810_949,
		OperatorFeeScalar:   500,
		OperatorFeeConstant: 25_000,
	}
}

func TestL1BlockInfoBedrockRoundTrip(t *testing.T) {
	info := sampleL1BlockInfo()
	encoded := encodeL1BlockInfoBedrock(info)
	require.Len(t, encoded, l1InfoBedrockLen)
	require.Equal(t, l1InfoBedrockSelector[:], encoded[:4])

	decoded, err := decodeL1BlockInfoBedrock(encoded)
	require.NoError(t, err)
	require.Equal(t, info.Number, decoded.Number)
	require.Equal(t, info.Timestamp, decoded.Timestamp)
	require.Equal(t, info.BaseFee, decoded.BaseFee)
	require.Equal(t, info.BlockHash, decoded.BlockHash)
	require.Equal(t, info.SequenceNumber, decoded.SequenceNumber)
	require.Equal(t, info.BatcherAddr, decoded.BatcherAddr)
}

func TestL1BlockInfoEcotoneRoundTrip(t *testing.T) {
	info := sampleL1BlockInfo()
	encoded := encodeL1BlockInfoEcotone(info)
	require.Len(t, encoded, l1InfoEcotoneLen)
	require.Equal(t, l1InfoEcotoneSelector[:], encoded[:4])

	decoded, err := decodeL1BlockInfoEcotone(encoded)
	require.NoError(t, err)
	require.Equal(t, info.BaseFeeScalar, decoded.BaseFeeScalar)
	require.Equal(t, info.BlobBaseFeeScalar, decoded.BlobBaseFeeScalar)
	require.Equal(t, info.SequenceNumber, decoded.SequenceNumber)
	require.Equal(t, info.Timestamp, decoded.Timestamp)
	require.Equal(t, info.Number, decoded.Number)
	require.Equal(t, info.BaseFee, decoded.BaseFee)
	require.Equal(t, info.BlobBaseFee, decoded.BlobBaseFee)
	require.Equal(t, info.BlockHash, decoded.BlockHash)
	require.Equal(t, info.BatcherAddr, decoded.BatcherAddr)
}

func TestL1BlockInfoIsthmusRoundTrip(t *testing.T) {
	info := sampleL1BlockInfo()
	encoded := encodeL1BlockInfoIsthmus(info)
	require.Len(t, encoded, l1InfoIsthmusLen)
	require.Equal(t, l1InfoIsthmusSelector[:], encoded[:4])

	decoded, err := decodeL1BlockInfoIsthmus(encoded)
	require.NoError(t, err)
	require.Equal(t, info.OperatorFeeScalar, decoded.OperatorFeeScalar)
	require.Equal(t, info.OperatorFeeConstant, decoded.OperatorFeeConstant)
	// Isthmus extends Ecotone's layout rather than replacing it.
	require.Equal(t, info.BaseFeeScalar, decoded.BaseFeeScalar)
	require.Equal(t, info.Number, decoded.Number)
	require.Equal(t, info.BlockHash, decoded.BlockHash)
}

func TestL1InfoDepositBytesSelectsHardfork(t *testing.T) {
	info := sampleL1BlockInfo()

	bedrockCfg := fakeHardforkCfg{ecotone: false, isthmus: false}
	data, err := L1InfoDepositBytes(bedrockCfg, info, 100)
	require.NoError(t, err)
	require.Len(t, data, l1InfoBedrockLen)

	ecotoneCfg := fakeHardforkCfg{ecotone: true, isthmus: false}
	data, err = L1InfoDepositBytes(ecotoneCfg, info, 100)
	require.NoError(t, err)
	require.Len(t, data, l1InfoEcotoneLen)

	isthmusCfg := fakeHardforkCfg{ecotone: true, isthmus: true}
	data, err = L1InfoDepositBytes(isthmusCfg, info, 100)
	require.NoError(t, err)
	require.Len(t, data, l1InfoIsthmusLen)
}

type fakeHardforkCfg struct {
	ecotone bool
	isthmus bool
}

func (c fakeHardforkCfg) IsEcotone(uint64) bool { return c.ecotone }
func (c fakeHardforkCfg) IsIsthmus(uint64) bool { return c.isthmus }

// TestL1BlockInfoFromBytesDispatchesOnLength checks the length-only
// dispatch L1BlockInfoFromBytes relies on, including the boundary where an
// unrecognized length must fail rather than silently mis-decode.
func TestL1BlockInfoFromBytesDispatchesOnLength(t *testing.T) {
	info := sampleL1BlockInfo()

	bedrock, err := L1BlockInfoFromBytes(encodeL1BlockInfoBedrock(info))
	require.NoError(t, err)
	require.Equal(t, info.Number, bedrock.Number)

	ecotone, err := L1BlockInfoFromBytes(encodeL1BlockInfoEcotone(info))
	require.NoError(t, err)
	require.Equal(t, info.BaseFeeScalar, ecotone.BaseFeeScalar)

	isthmus, err := L1BlockInfoFromBytes(encodeL1BlockInfoIsthmus(info))
	require.NoError(t, err)
	require.Equal(t, info.OperatorFeeScalar, isthmus.OperatorFeeScalar)

	_, err = L1BlockInfoFromBytes(make([]byte, l1InfoBedrockLen+1))
	require.Error(t, err)
}
