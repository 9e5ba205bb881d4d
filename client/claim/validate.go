// Package claim performs the verifier's final comparison: the output root
// the driver actually derived and executed against the claimed block number
// versus the output root the claim asserts. Adapted from
// op-program/client/claim/validate.go.
package claim

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// ErrClaimNotValid is returned when the derived output root does not match
// the claim. Its presence or absence is what the program's exit code
// ultimately encodes: exit 0 when nil, exit 1 when this error (or one
// wrapping it) is returned.
var ErrClaimNotValid = errors.New("invalid claim")

// Validate compares the output root actually computed by the driver against
// the claimed one, both already committed to the same L2 block number.
func Validate(logger log.Logger, claimedOutputRoot, computedOutputRoot common.Hash) error {
	logger.Info("validating claim", "computed", computedOutputRoot, "claimed", claimedOutputRoot)
	if claimedOutputRoot != computedOutputRoot {
		return fmt.Errorf("%w: claimed %s, computed %s", ErrClaimNotValid, claimedOutputRoot, computedOutputRoot)
	}
	return nil
}
