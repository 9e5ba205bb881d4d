// Package engine implements the stateless block executor: given a parent
// header, a set of payload attributes, and a state backend, it runs every
// transaction through go-ethereum's EVM and produces the resulting header,
// block, and receipts without ever touching a live database.
package engine

import (
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"

	"github.com/l2verify/fault-proof/client/l2/trie"
)

// accountOverlay is the in-flight, uncommitted view of one account while a
// block executes: code and storage are copy-on-write relative to the
// backing trie.DB so unrelated accounts never pay for a read they didn't
// touch.
type accountOverlay struct {
	exists         bool
	selfDestructed bool
	created        bool
	nonce          uint64
	balance        *uint256.Int
	codeHash       common.Hash
	code           []byte
	storage        map[common.Hash]common.Hash
	transient      map[common.Hash]common.Hash
}

func (a *accountOverlay) clone() *accountOverlay {
	c := *a
	c.balance = new(uint256.Int).Set(a.balance)
	c.storage = maps.Clone(a.storage)
	c.transient = maps.Clone(a.transient)
	return &c
}

// snapshot captures enough of the overlay to restore it on revert: a deep
// copy of every account touched so far, plus the logs and refund counter at
// that point.
type snapshot struct {
	accounts map[common.Address]*accountOverlay
	logs     []*types.Log
	refund   uint64
}

// StateDB adapts the block-level state backend to go-ethereum's vm.StateDB
// interface. It is the sole mutable view the EVM sees while one block
// executes; FinalizeBlock flushes everything it accumulated down into the
// backing trie.DB in one deterministic pass.
type StateDB struct {
	backing *trie.DB

	accounts map[common.Address]*accountOverlay
	logs     []*types.Log
	refund   uint64
	thash    common.Hash
	txIdx    int

	accessList   map[common.Address]map[common.Hash]struct{}
	accessedAddr map[common.Address]struct{}

	snapshots []snapshot
}

func NewStateDB(backing *trie.DB) *StateDB {
	return &StateDB{
		backing:      backing,
		accounts:     make(map[common.Address]*accountOverlay),
		accessList:   make(map[common.Address]map[common.Hash]struct{}),
		accessedAddr: make(map[common.Address]struct{}),
	}
}

func (s *StateDB) account(addr common.Address) *accountOverlay {
	if a, ok := s.accounts[addr]; ok {
		return a
	}
	a := &accountOverlay{balance: new(uint256.Int), codeHash: types.EmptyCodeHash, storage: make(map[common.Hash]common.Hash), transient: make(map[common.Hash]common.Hash)}
	acc, exists, err := s.backing.GetAccount(addr)
	if err != nil {
		panic(fmt.Errorf("statedb: failed to read account %s: %w", addr, err))
	}
	if exists {
		a.exists = true
		a.nonce = acc.Nonce
		a.balance = new(uint256.Int).Set(acc.Balance)
		a.codeHash = common.BytesToHash(acc.CodeHash)
	}
	s.accounts[addr] = a
	return a
}

func (s *StateDB) CreateAccount(addr common.Address) {
	a := s.account(addr)
	a.exists = true
	a.created = true
	a.nonce = 0
	a.codeHash = types.EmptyCodeHash
	a.code = nil
	a.storage = make(map[common.Hash]common.Hash)
}

func (s *StateDB) CreateContract(addr common.Address) {}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) *uint256.Int {
	a := s.account(addr)
	prev := new(uint256.Int).Set(a.balance)
	a.balance.Sub(a.balance, amount)
	a.exists = true
	return prev
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) *uint256.Int {
	a := s.account(addr)
	prev := new(uint256.Int).Set(a.balance)
	a.balance.Add(a.balance, amount)
	a.exists = true
	return prev
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	return new(uint256.Int).Set(s.account(addr).balance)
}

func (s *StateDB) GetNonce(addr common.Address) uint64 { return s.account(addr).nonce }

func (s *StateDB) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	a := s.account(addr)
	a.nonce = nonce
	a.exists = true
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	a := s.account(addr)
	if !a.exists {
		return common.Hash{}
	}
	return a.codeHash
}

func (s *StateDB) GetCode(addr common.Address) []byte {
	a := s.account(addr)
	if a.codeHash == types.EmptyCodeHash || a.codeHash == (common.Hash{}) {
		return nil
	}
	if a.code != nil {
		return a.code
	}
	code, err := s.backing.GetCode(a.codeHash)
	if err != nil {
		panic(fmt.Errorf("statedb: failed to read code %s: %w", a.codeHash, err))
	}
	a.code = code
	return code
}

func (s *StateDB) SetCode(addr common.Address, code []byte) []byte {
	a := s.account(addr)
	prev := a.code
	a.code = code
	a.codeHash = crypto.Keccak256Hash(code)
	a.exists = true
	return prev
}

func (s *StateDB) GetCodeSize(addr common.Address) int { return len(s.GetCode(addr)) }

func (s *StateDB) AddRefund(v uint64)  { s.refund += v }
func (s *StateDB) SubRefund(v uint64)  { s.refund -= v }
func (s *StateDB) GetRefund() uint64   { return s.refund }

func (s *StateDB) GetCommittedState(addr common.Address, slot common.Hash) common.Hash {
	v, err := s.backing.GetStorage(addr, slot)
	if err != nil {
		panic(fmt.Errorf("statedb: failed to read committed storage %s/%s: %w", addr, slot, err))
	}
	return v
}

func (s *StateDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	a := s.account(addr)
	if v, ok := a.storage[slot]; ok {
		return v
	}
	v := s.GetCommittedState(addr, slot)
	a.storage[slot] = v
	return v
}

func (s *StateDB) SetState(addr common.Address, slot, value common.Hash) {
	a := s.account(addr)
	a.storage[slot] = value
}

// GetStorageRoot returns addr's current committed storage root, used by the
// executor to populate the Isthmus withdrawals-root header field before any
// transaction of the new block runs.
func (s *StateDB) GetStorageRoot(addr common.Address) common.Hash {
	root, err := s.backing.StorageRoot(addr)
	if err != nil {
		panic(fmt.Errorf("statedb: failed to read storage root %s: %w", addr, err))
	}
	return root
}

func (s *StateDB) GetTransientState(addr common.Address, slot common.Hash) common.Hash {
	return s.account(addr).transient[slot]
}

func (s *StateDB) SetTransientState(addr common.Address, slot, value common.Hash) {
	s.account(addr).transient[slot] = value
}

func (s *StateDB) SelfDestruct(addr common.Address) uint256.Int {
	a := s.account(addr)
	prev := *a.balance
	a.selfDestructed = true
	a.balance = new(uint256.Int)
	return prev
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool { return s.account(addr).selfDestructed }

func (s *StateDB) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	a := s.account(addr)
	if !a.created {
		return *a.balance, false
	}
	return s.SelfDestruct(addr), true
}

func (s *StateDB) Exist(addr common.Address) bool { return s.account(addr).exists }

func (s *StateDB) Empty(addr common.Address) bool {
	a := s.account(addr)
	return !a.exists || (a.nonce == 0 && a.balance.IsZero() && (a.codeHash == types.EmptyCodeHash || a.codeHash == (common.Hash{})))
}

func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	_, ok := s.accessedAddr[addr]
	return ok
}

func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOk := s.AddressInAccessList(addr)
	slots, ok := s.accessList[addr]
	if !ok {
		return addrOk, false
	}
	_, slotOk := slots[slot]
	return addrOk, slotOk
}

func (s *StateDB) AddAddressToAccessList(addr common.Address) { s.accessedAddr[addr] = struct{}{} }

func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessedAddr[addr] = struct{}{}
	slots, ok := s.accessList[addr]
	if !ok {
		slots = make(map[common.Hash]struct{})
		s.accessList[addr] = slots
	}
	slots[slot] = struct{}{}
}

func (s *StateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.accessedAddr = map[common.Address]struct{}{sender: {}, coinbase: {}}
	for _, p := range precompiles {
		s.accessedAddr[p] = struct{}{}
	}
	if dest != nil {
		s.accessedAddr[*dest] = struct{}{}
	}
	s.accessList = make(map[common.Address]map[common.Hash]struct{})
	for _, tuple := range txAccesses {
		s.accessedAddr[tuple.Address] = struct{}{}
		slots := make(map[common.Hash]struct{}, len(tuple.StorageKeys))
		for _, key := range tuple.StorageKeys {
			slots[key] = struct{}{}
		}
		s.accessList[tuple.Address] = slots
	}
}

func (s *StateDB) RevertToSnapshot(id int) {
	snap := s.snapshots[id]
	s.accounts = snap.accounts
	s.logs = snap.logs
	s.refund = snap.refund
	s.snapshots = s.snapshots[:id]
}

func (s *StateDB) Snapshot() int {
	cloned := make(map[common.Address]*accountOverlay, len(s.accounts))
	for addr, a := range s.accounts {
		cloned[addr] = a.clone()
	}
	s.snapshots = append(s.snapshots, snapshot{accounts: cloned, logs: append([]*types.Log{}, s.logs...), refund: s.refund})
	return len(s.snapshots) - 1
}

func (s *StateDB) AddLog(log *types.Log) {
	log.TxHash = s.thash
	log.TxIndex = uint(s.txIdx)
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

func (s *StateDB) GetLogs(txHash common.Hash, blockNumber uint64, blockHash common.Hash) []*types.Log {
	var out []*types.Log
	for _, l := range s.logs {
		if l.TxHash == txHash {
			l.BlockNumber = blockNumber
			l.BlockHash = blockHash
			out = append(out, l)
		}
	}
	return out
}

func (s *StateDB) AddPreimage(hash common.Hash, preimage []byte) {}

func (s *StateDB) PointCache() *utils.PointCache { return nil }

func (s *StateDB) Witness() *stateless.Witness { return nil }

func (s *StateDB) AccessEvents() *state.AccessEvents { return nil }

// SetTxContext resets the per-transaction bookkeeping (current tx hash and
// index, snapshot stack) ahead of running the next transaction.
func (s *StateDB) SetTxContext(txHash common.Hash, idx int) {
	s.thash = txHash
	s.txIdx = idx
	s.snapshots = nil
}

// FinalizeBlock flushes every account this block touched down into the
// backing trie.DB and returns the new state root. It is the only point
// where the in-memory overlay this type accumulated during execution ever
// reaches the trie: every prior read and write stayed entirely in
// s.accounts.
func (s *StateDB) FinalizeBlock() (common.Hash, error) {
	for addr, a := range s.accounts {
		if a.selfDestructed {
			s.backing.SelfDestruct(addr)
			continue
		}
		if !a.exists {
			continue
		}
		if a.created {
			s.backing.CreateAccount(addr)
		}
		s.backing.SetAccount(addr, types.StateAccount{
			Nonce:    a.nonce,
			Balance:  new(uint256.Int).Set(a.balance),
			CodeHash: a.codeHash.Bytes(),
		})
		if a.code != nil {
			s.backing.SetCode(addr, a.code)
		}
		for slot, value := range a.storage {
			s.backing.SetStorage(addr, slot, value)
		}
	}

	root, err := s.backing.Commit()
	if err != nil {
		return common.Hash{}, fmt.Errorf("statedb: failed to commit block: %w", err)
	}

	s.accounts = make(map[common.Address]*accountOverlay)
	s.logs = nil
	s.refund = 0
	s.snapshots = nil
	return root, nil
}

