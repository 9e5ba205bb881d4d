// Package rollup holds the rollup-wide configuration the derivation
// pipeline and executor both read: genesis anchors, chain IDs, and the
// hardfork activation ladder (Canyon through Isthmus).
package rollup

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/eth"
)

var (
	ErrBlockTimeZero         = errors.New("block time cannot be 0")
	ErrMissingChannelTimeout = errors.New("channel timeout must be set")
	ErrInvalidSeqWindowSize  = errors.New("sequencing window size must be at least 2")
	ErrInvalidMaxSeqDrift    = errors.New("maximum sequencer drift must be greater than 0")
	ErrMissingGenesisL1Hash  = errors.New("genesis L1 hash cannot be empty")
	ErrMissingGenesisL2Hash  = errors.New("genesis L2 hash cannot be empty")
	ErrMissingL1ChainID      = errors.New("L1 chain ID must not be nil")
	ErrMissingL2ChainID      = errors.New("L2 chain ID must not be nil")
)

// Genesis anchors the rollup to the L1 block it starts after and the L2
// block it starts from.
type Genesis struct {
	L1           eth.BlockID      `json:"l1"`
	L2           eth.BlockID      `json:"l2"`
	L2Time       uint64           `json:"l2_time"`
	SystemConfig eth.SystemConfig `json:"system_config"`
}

// Config is the rollup-wide configuration consumed by the derivation
// pipeline, the attributes builder, and the executor. Hardfork activation
// times follow the canonical Optimism ladder: Canyon, Delta, Ecotone,
// Fjord, Granite, Holocene, Isthmus. A nil activation time means the fork
// is never active; a zero value means it's active from genesis.
type Config struct {
	Genesis Genesis `json:"genesis"`

	BlockTime             uint64   `json:"block_time"`
	MaxSequencerDrift     uint64   `json:"max_sequencer_drift"`
	SeqWindowSize         uint64   `json:"seq_window_size"`
	ChannelTimeoutBedrock uint64   `json:"channel_timeout"`
	L1ChainID             *big.Int `json:"l1_chain_id"`
	L2ChainID             *big.Int `json:"l2_chain_id"`

	BatchInboxAddress      common.Address `json:"batch_inbox_address"`
	DepositContractAddress common.Address `json:"deposit_contract_address"`
	L1SystemConfigAddress  common.Address `json:"l1_system_config_address"`

	RegolithTime *uint64 `json:"regolith_time,omitempty"`
	CanyonTime   *uint64 `json:"canyon_time,omitempty"`
	DeltaTime    *uint64 `json:"delta_time,omitempty"`
	EcotoneTime  *uint64 `json:"ecotone_time,omitempty"`
	FjordTime    *uint64 `json:"fjord_time,omitempty"`
	GraniteTime  *uint64 `json:"granite_time,omitempty"`
	HoloceneTime *uint64 `json:"holocene_time,omitempty"`
	IsthmusTime  *uint64 `json:"isthmus_time,omitempty"`
}

func activeAt(t *uint64, timestamp uint64) bool { return t != nil && timestamp >= *t }

func (c *Config) IsRegolith(t uint64) bool { return activeAt(c.RegolithTime, t) }
func (c *Config) IsCanyon(t uint64) bool   { return activeAt(c.CanyonTime, t) }
func (c *Config) IsDelta(t uint64) bool    { return activeAt(c.DeltaTime, t) }
func (c *Config) IsEcotone(t uint64) bool  { return activeAt(c.EcotoneTime, t) }
func (c *Config) IsFjord(t uint64) bool    { return activeAt(c.FjordTime, t) }
func (c *Config) IsGranite(t uint64) bool  { return activeAt(c.GraniteTime, t) }
func (c *Config) IsHolocene(t uint64) bool { return activeAt(c.HoloceneTime, t) }
func (c *Config) IsIsthmus(t uint64) bool  { return activeAt(c.IsthmusTime, t) }

// IsCanyonActivationBlock reports whether the parent block was pre-Canyon
// and the next block (at timestamp t) is the first Canyon block; the same
// shape applies to every other upgrade-tx-bearing fork below.
func (c *Config) IsCanyonActivationBlock(parentTime, t uint64) bool {
	return c.IsCanyon(t) && !c.IsCanyon(parentTime)
}

func (c *Config) IsEcotoneActivationBlock(parentTime, t uint64) bool {
	return c.IsEcotone(t) && !c.IsEcotone(parentTime)
}

func (c *Config) IsFjordActivationBlock(parentTime, t uint64) bool {
	return c.IsFjord(t) && !c.IsFjord(parentTime)
}

func (c *Config) IsIsthmusActivationBlock(parentTime, t uint64) bool {
	return c.IsIsthmus(t) && !c.IsIsthmus(parentTime)
}

// MaxChannelBankSize is the byte budget of buffered channel data past which
// ChannelBank evicts its oldest channels.
func (c *Config) MaxChannelBankSize() uint64 {
	return 100_000_000
}

func (c *Config) Check() error {
	if c.BlockTime == 0 {
		return ErrBlockTimeZero
	}
	if c.ChannelTimeoutBedrock == 0 {
		return ErrMissingChannelTimeout
	}
	if c.SeqWindowSize < 2 {
		return ErrInvalidSeqWindowSize
	}
	if c.MaxSequencerDrift == 0 {
		return ErrInvalidMaxSeqDrift
	}
	if c.Genesis.L1.Hash == (common.Hash{}) {
		return ErrMissingGenesisL1Hash
	}
	if c.Genesis.L2.Hash == (common.Hash{}) {
		return ErrMissingGenesisL2Hash
	}
	if c.L1ChainID == nil {
		return ErrMissingL1ChainID
	}
	if c.L2ChainID == nil {
		return ErrMissingL2ChainID
	}
	return nil
}
