package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// ToEVMChainConfig builds the params.ChainConfig the executor runs
// against from this rollup's genesis and hardfork ladder. Every
// pre-Bedrock Ethereum fork is treated as active from genesis since this
// verifier never executes a block that old; Shanghai/Cancun/Prague are
// aliased to their op-stack equivalents (Canyon, Ecotone, Isthmus)
// exactly as go-ethereum's own Optimism fork does, alongside the
// Optimism-specific activation times the executor and derivation
// pipeline gate on directly.
func (c *Config) ToEVMChainConfig() *params.ChainConfig {
	return &params.ChainConfig{
		ChainID:                 c.L2ChainID,
		HomesteadBlock:          common.Big0,
		EIP150Block:             common.Big0,
		EIP155Block:             common.Big0,
		EIP158Block:             common.Big0,
		ByzantiumBlock:          common.Big0,
		ConstantinopleBlock:     common.Big0,
		PetersburgBlock:         common.Big0,
		IstanbulBlock:           common.Big0,
		MuirGlacierBlock:        common.Big0,
		BerlinBlock:             common.Big0,
		LondonBlock:             common.Big0,
		ArrowGlacierBlock:       common.Big0,
		GrayGlacierBlock:        common.Big0,
		MergeNetsplitBlock:      common.Big0,
		TerminalTotalDifficulty: common.Big0,

		ShanghaiTime: c.CanyonTime,
		CancunTime:   c.EcotoneTime,
		PragueTime:   c.IsthmusTime,

		RegolithTime: c.RegolithTime,
		CanyonTime:   c.CanyonTime,
		EcotoneTime:  c.EcotoneTime,
		FjordTime:    c.FjordTime,
		GraniteTime:  c.GraniteTime,
		HoloceneTime: c.HoloceneTime,
		IsthmusTime:  c.IsthmusTime,
	}
}
