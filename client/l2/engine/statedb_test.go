package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/client/l2/trie"
)

func noNodeFetch(h common.Hash) ([]byte, error) {
	panic("unexpected node fetch for empty trie: " + h.String())
}

func noCodeFetch(h common.Hash) ([]byte, error) {
	panic("unexpected code fetch: " + h.String())
}

func newEmptyBacking() *trie.DB {
	return trie.NewDB(types.EmptyRootHash, noNodeFetch, noCodeFetch)
}

func TestStateDBBalanceRoundTrip(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	addr := common.HexToAddress("0x00000000000000000000000000000000000001")
	amount := uint256.NewInt(1000)
	s.AddBalance(addr, amount, tracing.BalanceChangeUnspecified)
	require.True(t, s.Exist(addr))
	require.Equal(t, amount.Uint64(), s.GetBalance(addr).Uint64())

	root, err := s.FinalizeBlock()
	require.NoError(t, err)
	require.NotEqual(t, types.EmptyRootHash, root)

	acc, exists, err := backing.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, amount.Uint64(), acc.Balance.Uint64())
}

func TestStateDBSnapshotRevert(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	addr := common.HexToAddress("0x00000000000000000000000000000000000002")
	s.AddBalance(addr, uint256.NewInt(500), tracing.BalanceChangeUnspecified)

	snap := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(500), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint64(1000), s.GetBalance(addr).Uint64())

	s.RevertToSnapshot(snap)
	require.Equal(t, uint64(500), s.GetBalance(addr).Uint64())
}

func TestStateDBStorageReadThroughAfterCommit(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	addr := common.HexToAddress("0x00000000000000000000000000000000000003")
	slot := common.HexToHash("0x01")
	value := common.HexToHash("0x2a")

	s.CreateAccount(addr)
	s.SetState(addr, slot, value)
	_, err := s.FinalizeBlock()
	require.NoError(t, err)

	s2 := NewStateDB(backing)
	require.Equal(t, value, s2.GetState(addr, slot))
}

func TestStateDBEmptyAccountPrunedOnCommit(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	addr := common.HexToAddress("0x00000000000000000000000000000000000004")
	amount := uint256.NewInt(10)
	s.AddBalance(addr, amount, tracing.BalanceChangeUnspecified)
	s.SubBalance(addr, amount, tracing.BalanceChangeUnspecified)
	_, err := s.FinalizeBlock()
	require.NoError(t, err)

	_, exists, err := backing.GetAccount(addr)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStateDBSelfDestructRemovesAccount(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	addr := common.HexToAddress("0x00000000000000000000000000000000000005")
	s.AddBalance(addr, uint256.NewInt(7), tracing.BalanceChangeUnspecified)
	_, err := s.FinalizeBlock()
	require.NoError(t, err)

	s2 := NewStateDB(backing)
	s2.SelfDestruct(addr)
	require.True(t, s2.HasSelfDestructed(addr))
	_, err = s2.FinalizeBlock()
	require.NoError(t, err)

	_, exists, err := backing.GetAccount(addr)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStateDBAccessList(t *testing.T) {
	backing := newEmptyBacking()
	s := NewStateDB(backing)

	sender := common.HexToAddress("0x00000000000000000000000000000000000006")
	dest := common.HexToAddress("0x00000000000000000000000000000000000007")
	s.Prepare(params.Rules{}, sender, common.Address{}, &dest, nil, types.AccessList{})

	require.True(t, s.AddressInAccessList(sender))
	require.True(t, s.AddressInAccessList(dest))

	slot := common.HexToHash("0x09")
	s.AddSlotToAccessList(dest, slot)
	addrOk, slotOk := s.SlotInAccessList(dest, slot)
	require.True(t, addrOk)
	require.True(t, slotOk)
}
