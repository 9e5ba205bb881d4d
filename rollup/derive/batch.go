package derive

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Batch type identifiers, prefixing a decompressed channel's RLP byte
// stream. Grounded on kona's types::batch::BatchType.
const (
	singleBatchType = 0x00
	spanBatchType   = 0x01
)

// SingleBatch is one decoded L2 block's worth of sequencer-supplied
// transactions, still unvalidated against the rollup's admissibility
// rules. Grounded on kona's types::SingleBatch RLP layout.
type SingleBatch struct {
	ParentHash common.Hash
	EpochNum   uint64
	EpochHash  common.Hash
	Timestamp  uint64
	// Transactions holds opaque RLP-encoded transaction bytes, exactly as
	// they will be included in the L2 block.
	Transactions [][]byte
}

func (b *SingleBatch) HasInvalidTransactions() bool {
	for _, tx := range b.Transactions {
		if len(tx) == 0 || tx[0] == 0x7E {
			return true
		}
	}
	return false
}

type singleBatchRLP struct {
	ParentHash   common.Hash
	EpochNum     uint64
	EpochHash    common.Hash
	Timestamp    uint64
	Transactions [][]byte
}

func decodeSingleBatch(data []byte) (*SingleBatch, error) {
	var raw singleBatchRLP
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid single batch RLP: %w", err)
	}
	return &SingleBatch{
		ParentHash:   raw.ParentHash,
		EpochNum:     raw.EpochNum,
		EpochHash:    raw.EpochHash,
		Timestamp:    raw.Timestamp,
		Transactions: raw.Transactions,
	}, nil
}

func encodeSingleBatch(b *SingleBatch) ([]byte, error) {
	return rlp.EncodeToBytes(singleBatchRLP{
		ParentHash:   b.ParentHash,
		EpochNum:     b.EpochNum,
		EpochHash:    b.EpochHash,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
	})
}

// RawBatch is the type-tagged union this derivation pipeline's batch
// stream decodes every payload into: exactly one of Single or Span is
// set, dispatched by the stream's leading type byte.
type RawBatch struct {
	Single *SingleBatch
	Span   *SpanBatch
}

// decodeRawBatch dispatches on the first byte of a decompressed batch
// payload: 0x00 a SingleBatch, 0x01 a SpanBatch.
func decodeRawBatch(data []byte, chainID uint64, l1InclusionBlock uint64) (*RawBatch, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty batch payload")
	}
	switch data[0] {
	case singleBatchType:
		b, err := decodeSingleBatch(data[1:])
		if err != nil {
			return nil, err
		}
		return &RawBatch{Single: b}, nil
	case spanBatchType:
		b, err := decodeSpanBatch(data[1:], chainID, l1InclusionBlock)
		if err != nil {
			return nil, err
		}
		return &RawBatch{Span: b}, nil
	default:
		return nil, fmt.Errorf("unknown batch type %d", data[0])
	}
}

// SpanBatch is a compressed representation of many consecutive L2 blocks
// sharing a contiguous L1 epoch range. Grounded on kona's types::SpanBatch
// wire format: uvarint scalars, a 20-byte parent/origin checksum pair, and
// bitlists for per-block origin advance. The per-transaction column
// layout (contract-creation bits, y-parity bits, signatures, recipients)
// is adapted from kona's decode_transactions, but each transaction body
// in this implementation carries an explicit one-byte type tag (0
// legacy, 1 access-list, 2 dynamic-fee) rather than relying on the
// reference's implicit "first RLP byte doubles as a type marker" scheme,
// which is ambiguous for legacy transactions whose value field happens to
// start with 0x01 or 0x02 — see DESIGN.md.
type SpanBatch struct {
	RelTimestamp   uint64
	L1OriginNum    uint64
	ParentCheck    [20]byte
	L1OriginCheck  [20]byte
	BlockCount     uint64
	OriginBits     []bool
	BlockTxCounts  []uint64
	Transactions   [][]byte
	L1InclusionBlk uint64
}

// StartEpochNum returns the L1 origin number of the first L2 block in the
// batch, derived from the last block's origin number and how many blocks
// advanced the epoch along the way.
func (b *SpanBatch) StartEpochNum() uint64 {
	advances := uint64(0)
	for _, bit := range b.OriginBits {
		if bit {
			advances++
		}
	}
	start := b.L1OriginNum - advances
	if len(b.OriginBits) > 0 && b.OriginBits[0] {
		start++
	}
	return start
}

// Expand decodes a SpanBatch into its constituent SingleBatches. Epoch
// hashes for blocks past the first are left zero; the batch validator
// fills them in as it walks the L1 origin chain alongside the expansion.
func (b *SpanBatch) Expand(genesisTime uint64, blockTime uint64, firstEpochHash common.Hash) ([]*SingleBatch, error) {
	if len(b.OriginBits) != int(b.BlockCount) || len(b.BlockTxCounts) != int(b.BlockCount) {
		return nil, fmt.Errorf("span batch block-count/bitlist mismatch")
	}
	epochNum := b.StartEpochNum()
	epochHash := firstEpochHash

	out := make([]*SingleBatch, 0, b.BlockCount)
	txIdx := 0
	for i := uint64(0); i < b.BlockCount; i++ {
		if i > 0 && b.OriginBits[i] {
			epochNum++
			epochHash = common.Hash{}
		}
		count := int(b.BlockTxCounts[i])
		if txIdx+count > len(b.Transactions) {
			return nil, fmt.Errorf("span batch transaction count overruns buffer")
		}
		txs := b.Transactions[txIdx : txIdx+count]
		txIdx += count

		out = append(out, &SingleBatch{
			EpochNum:     epochNum,
			EpochHash:    epochHash,
			Timestamp:    genesisTime + b.RelTimestamp + i*blockTime,
			Transactions: txs,
		})
	}
	return out, nil
}

func decodeSpanBatch(data []byte, chainID uint64, l1InclusionBlock uint64) (*SpanBatch, error) {
	relTimestamp, data, err := decodeUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode span batch rel timestamp: %w", err)
	}
	l1OriginNum, data, err := decodeUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode span batch l1 origin number: %w", err)
	}
	parentCheck, data, err := takeBytes(data, 20)
	if err != nil {
		return nil, err
	}
	originCheck, data, err := takeBytes(data, 20)
	if err != nil {
		return nil, err
	}
	blockCount, data, err := decodeUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode span batch block count: %w", err)
	}

	originBits, data, err := decodeBitlist(data, blockCount)
	if err != nil {
		return nil, err
	}
	txCounts := make([]uint64, blockCount)
	var totalTxs uint64
	for i := range txCounts {
		n, rest, err := decodeUvarint(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode span batch tx count: %w", err)
		}
		txCounts[i] = n
		totalTxs += n
		data = rest
	}

	txs, _, err := decodeSpanTransactions(data, chainID, totalTxs)
	if err != nil {
		return nil, err
	}

	var b SpanBatch
	b.RelTimestamp = relTimestamp
	b.L1OriginNum = l1OriginNum
	copy(b.ParentCheck[:], parentCheck)
	copy(b.L1OriginCheck[:], originCheck)
	b.BlockCount = blockCount
	b.OriginBits = originBits
	b.BlockTxCounts = txCounts
	b.Transactions = txs
	b.L1InclusionBlk = l1InclusionBlock
	return &b, nil
}

func takeBytes(data []byte, n int) ([]byte, []byte, error) {
	if len(data) < n {
		return nil, nil, fmt.Errorf("span batch payload truncated: need %d bytes, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}

// decodeUvarint reads an unsigned LEB128 varint, the wire format the
// batcher uses for every scalar field in a span batch.
func decodeUvarint(data []byte) (uint64, []byte, error) {
	var x uint64
	var s uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b < 0x80 {
			if i > 9 || (i == 9 && b > 1) {
				return 0, nil, fmt.Errorf("uvarint overflows uint64")
			}
			return x | uint64(b)<<s, data[i+1:], nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, nil, fmt.Errorf("uvarint truncated")
}

// decodeBitlist reads a ceil(n/8)-byte bitlist, matching kona's
// decode_bitlist: the bitlist is a big-endian integer, so bytes are read
// from the last (least-significant) byte backwards, and within each byte
// bits are emitted starting from bit 0.
func decodeBitlist(data []byte, n uint64) ([]bool, []byte, error) {
	byteLen := (n + 7) / 8
	raw, rest, err := takeBytes(data, int(byteLen))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode bitlist: %w", err)
	}
	bits := make([]bool, 0, byteLen*8)
	for i := len(raw) - 1; i >= 0; i-- {
		byt := raw[i]
		for bit := 0; bit < 8; bit++ {
			bits = append(bits, (byt>>bit)&1 == 1)
		}
	}
	return bits[:n], rest, nil
}

// spanTxBody is one transaction's column-decoded fields, before its
// signed RLP encoding is reassembled.
type spanTxBody struct {
	txType      byte
	value       *big.Int
	gasPrice    *big.Int
	maxFee      *big.Int
	maxPriority *big.Int
	data        []byte
	accessList  []spanAccessTuple
}

type spanAccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// decodeSpanTransactions reconstructs each transaction's canonical signed
// RLP (or EIP-2718 typed) encoding from the span batch's column-oriented
// layout: contract-creation bits, y-parity bits, signatures, recipients,
// explicitly-tagged bodies, nonces, gas limits, and (for legacy
// transactions only) an EIP-155 protected-signature bitlist.
func decodeSpanTransactions(data []byte, chainID uint64, txCount uint64) ([][]byte, []byte, error) {
	contractCreationBits, data, err := decodeBitlist(data, txCount)
	if err != nil {
		return nil, nil, err
	}
	yParityBits, data, err := decodeBitlist(data, txCount)
	if err != nil {
		return nil, nil, err
	}

	sigR := make([]*big.Int, txCount)
	sigS := make([]*big.Int, txCount)
	for i := range sigR {
		r, rest, err := takeBytes(data, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch signature r: %w", err)
		}
		s, rest2, err := takeBytes(rest, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch signature s: %w", err)
		}
		sigR[i] = new(big.Int).SetBytes(r)
		sigS[i] = new(big.Int).SetBytes(s)
		data = rest2
	}

	var tosCount uint64
	for _, creating := range contractCreationBits {
		if !creating {
			tosCount++
		}
	}
	tos := make([]common.Address, tosCount)
	for i := range tos {
		addr, rest, err := takeBytes(data, 20)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch recipient: %w", err)
		}
		tos[i] = common.BytesToAddress(addr)
		data = rest
	}

	bodies := make([]spanTxBody, txCount)
	for i := range bodies {
		body, rest, err := decodeSpanTxBody(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch tx body %d: %w", i, err)
		}
		bodies[i] = body
		data = rest
	}

	nonces := make([]uint64, txCount)
	for i := range nonces {
		n, rest, err := decodeUvarint(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch nonce: %w", err)
		}
		nonces[i] = n
		data = rest
	}
	gasLimits := make([]uint64, txCount)
	for i := range gasLimits {
		n, rest, err := decodeUvarint(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode span batch gas limit: %w", err)
		}
		gasLimits[i] = n
		data = rest
	}

	var legacyCount uint64
	for _, b := range bodies {
		if b.txType == 0 {
			legacyCount++
		}
	}
	protectedBits, data, err := decodeBitlist(data, legacyCount)
	if err != nil {
		return nil, nil, err
	}

	txs := make([][]byte, txCount)
	tosIdx := 0
	legacyIdx := 0
	for i := range bodies {
		var to *common.Address
		if !contractCreationBits[i] {
			to = &tos[tosIdx]
			tosIdx++
		}
		raw, err := encodeSpanTransaction(spanTxEncodeInput{
			body:      bodies[i],
			to:        to,
			nonce:     nonces[i],
			gasLimit:  gasLimits[i],
			yParity:   yParityBits[i],
			r:         sigR[i],
			s:         sigS[i],
			chainID:   chainID,
			protected: bodies[i].txType == 0 && legacyProtected(protectedBits, &legacyIdx, bodies[i].txType),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode reconstructed span batch tx %d: %w", i, err)
		}
		txs[i] = raw
	}

	return txs, data, nil
}

func legacyProtected(bits []bool, idx *int, txType byte) bool {
	if txType != 0 {
		return false
	}
	v := bits[*idx]
	*idx++
	return v
}

// decodeSpanTxBody reads one type-tagged transaction body: a leading byte
// (0 legacy, 1 access-list, 2 dynamic-fee) followed by its RLP-encoded
// value/fee/data/access-list fields.
func decodeSpanTxBody(data []byte) (spanTxBody, []byte, error) {
	if len(data) == 0 {
		return spanTxBody{}, nil, fmt.Errorf("span batch tx data truncated")
	}
	txType := data[0]
	s := rlp.NewStream(bytes.NewReader(data[1:]), 0)

	switch txType {
	case 1:
		var value, gasPrice big.Int
		var payload []byte
		var accessList []spanAccessTuple
		if err := decodeRLPSeq(s, &value, &gasPrice, &payload, &accessList); err != nil {
			return spanTxBody{}, nil, err
		}
		return spanTxBody{txType: 1, value: &value, gasPrice: &gasPrice, data: payload, accessList: accessList},
			data[1+s.Pos():], nil
	case 2:
		var value, maxPriority, maxFee big.Int
		var payload []byte
		var accessList []spanAccessTuple
		if err := decodeRLPSeq(s, &value, &maxPriority, &maxFee, &payload, &accessList); err != nil {
			return spanTxBody{}, nil, err
		}
		return spanTxBody{txType: 2, value: &value, maxPriority: &maxPriority, maxFee: &maxFee, data: payload, accessList: accessList},
			data[1+s.Pos():], nil
	default:
		var value, gasPrice big.Int
		var payload []byte
		if err := decodeRLPSeq(s, &value, &gasPrice, &payload); err != nil {
			return spanTxBody{}, nil, err
		}
		return spanTxBody{txType: 0, value: &value, gasPrice: &gasPrice, data: payload}, data[1+s.Pos():], nil
	}
}

func decodeRLPSeq(s *rlp.Stream, fields ...interface{}) error {
	for _, f := range fields {
		if err := s.Decode(f); err != nil {
			return err
		}
	}
	return nil
}

type spanTxEncodeInput struct {
	body      spanTxBody
	to        *common.Address
	nonce     uint64
	gasLimit  uint64
	yParity   bool
	r, s      *big.Int
	chainID   uint64
	protected bool
}

// encodeSpanTransaction rebuilds one transaction's canonical RLP (or
// EIP-2718 typed) encoding from its reconstructed fields.
func encodeSpanTransaction(in spanTxEncodeInput) ([]byte, error) {
	parity := uint64(0)
	if in.yParity {
		parity = 1
	}
	switch in.body.txType {
	case 0:
		var v *big.Int
		if in.protected {
			v = new(big.Int).Add(new(big.Int).Mul(new(big.Int).SetUint64(in.chainID), big.NewInt(2)), big.NewInt(35+int64(parity)))
		} else {
			v = new(big.Int).SetUint64(27 + parity)
		}
		fields := []interface{}{in.nonce, in.body.gasPrice, in.gasLimit, in.to, in.body.value, in.body.data, v, in.r, in.s}
		return rlp.EncodeToBytes(fields)
	case 1:
		fields := []interface{}{in.nonce, in.body.gasPrice, in.gasLimit, in.to, in.body.value, in.body.data, in.body.accessList, parity, in.r, in.s}
		payload, err := rlp.EncodeToBytes(fields)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x01}, payload...), nil
	case 2:
		fields := []interface{}{in.nonce, in.body.maxPriority, in.body.maxFee, in.gasLimit, in.to, in.body.value, in.body.data, in.body.accessList, parity, in.r, in.s}
		payload, err := rlp.EncodeToBytes(fields)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x02}, payload...), nil
	default:
		return nil, fmt.Errorf("unknown span batch tx type %d", in.body.txType)
	}
}
