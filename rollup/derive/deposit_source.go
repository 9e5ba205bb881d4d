package derive

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// depositSourceDomain values domain-separate the four kinds of deposit
// transaction this pipeline ever synthesizes, each hashed as
// keccak256(uint256(domain) ++ keccak256(domain-specific fields)).
// Grounded byte-for-byte on op-node/rollup/derive/deposit_source_test.go's
// vectors for domains 1, 2, and 4; domain 0 follows the well-known OP-stack
// user-deposit convention those vectors don't themselves exercise.
const (
	userDepositSourceDomain    = 0
	l1InfoDepositSourceDomain  = 1
	upgradeDepositSourceDomain = 2
	invalidatedBlockDomain     = 4
)

func sourceHash(domain uint64, payloadHash common.Hash) common.Hash {
	var domainBytes [32]byte
	new(big.Int).SetUint64(domain).FillBytes(domainBytes[:])
	return crypto.Keccak256Hash(domainBytes[:], payloadHash[:])
}

// UserDepositSource identifies an ordinary deposit transaction derived
// from one L1 deposit-contract log.
type UserDepositSource struct {
	L1BlockHash common.Hash
	LogIndex    uint64
}

func (s UserDepositSource) SourceHash() common.Hash {
	var logIndexBytes [32]byte
	new(big.Int).SetUint64(s.LogIndex).FillBytes(logIndexBytes[:])
	inner := crypto.Keccak256Hash(s.L1BlockHash[:], logIndexBytes[:])
	return sourceHash(userDepositSourceDomain, inner)
}

// L1InfoDepositSource identifies the L1-block-info deposit transaction
// prepended to the first L2 block of an epoch.
type L1InfoDepositSource struct {
	L1BlockHash common.Hash
	SeqNumber   uint64
}

func (s L1InfoDepositSource) SourceHash() common.Hash {
	var seqBytes [32]byte
	new(big.Int).SetUint64(s.SeqNumber).FillBytes(seqBytes[:])
	inner := crypto.Keccak256Hash(s.L1BlockHash[:], seqBytes[:])
	return sourceHash(l1InfoDepositSourceDomain, inner)
}

// UpgradeDepositSource identifies a hardfork-activation network-upgrade
// deposit transaction, keyed by a human-readable intent string unique to
// that upgrade.
type UpgradeDepositSource struct {
	Intent string
}

func (s UpgradeDepositSource) SourceHash() common.Hash {
	inner := crypto.Keccak256Hash([]byte(s.Intent))
	return sourceHash(upgradeDepositSourceDomain, inner)
}

// InvalidatedBlockSource identifies the deposit-only replacement block
// produced after a Holocene FlushChannel signal.
type InvalidatedBlockSource struct {
	OutputRoot common.Hash
}

func (s InvalidatedBlockSource) SourceHash() common.Hash {
	return sourceHash(invalidatedBlockDomain, s.OutputRoot)
}
