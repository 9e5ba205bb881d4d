package derive

import "github.com/ethereum/go-ethereum/common"

// Canonical predeploy addresses used while building and validating L2
// block attributes. Grounded on the canonical OP-stack address book, as
// exercised by op-node/rollup/derive/{arsia,isthmus,jovian}_upgrade_transactions_test.go.
var (
	L1BlockAddr          = common.HexToAddress("0x4200000000000000000000000000000000000015")
	GasPriceOracleAddr   = common.HexToAddress("0x420000000000000000000000000000000000000F")
	SequencerFeeVaultAddr = common.HexToAddress("0x4200000000000000000000000000000000000011")
	BaseFeeVaultAddr     = common.HexToAddress("0x4200000000000000000000000000000000000019")
	L1FeeVaultAddr       = common.HexToAddress("0x420000000000000000000000000000000000001A")
	OperatorFeeVaultAddr = common.HexToAddress("0x420000000000000000000000000000000000001b")
	EIP4788BeaconRootsAddr = common.HexToAddress("0x000F3df6D732807Ef1319fB7B8bB8522d0Beac02")
	EIP2935HistoryAddr     = common.HexToAddress("0x0000F90827F1C53a10cb7A02335B175320002935")

	ProxyAdminAddr         = common.HexToAddress("0x4200000000000000000000000000000000000018")
	EIP4788ContractDeployer = common.HexToAddress("0x0B799C86a49DEeb90402691F1041aa3AF2d3C875")
	EIP2935ContractDeployer = common.HexToAddress("0x3462413Af4609098e1E27A490f554f260213D685")
)
