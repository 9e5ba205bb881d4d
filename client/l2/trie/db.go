// Package trie implements the stateless, journaled state backend the
// executor runs blocks against: account and storage reads resolve lazily
// through a preimage-backed Merkle Patricia Trie, and writes are buffered
// in a journal until an explicit Commit recomputes the state root.
package trie

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/l2verify/fault-proof/client/mpt"
)

// NodeFetcher resolves a trie node preimage by its keccak256 commitment.
type NodeFetcher func(common.Hash) ([]byte, error)

// CodeFetcher resolves a contract's bytecode by its keccak256 hash.
type CodeFetcher func(common.Hash) ([]byte, error)

// accountJournalEntry tracks everything that changed about one account
// since the last commit, so Commit can decide in one place whether the
// account should be written, left alone, or pruned.
type accountJournalEntry struct {
	touched        bool
	created        bool
	selfDestructed bool
	balanceSet     bool
	nonceSet       bool
	codeSet        bool

	account types.StateAccount
	code    []byte
	storage map[common.Hash]common.Hash
}

// DB is a stateless, read-through, lazily-resolved state backend: every
// account and storage read walks the relevant trie from its blinded root,
// resolving nodes on demand via fetchNode, and every write lands in the
// journal until Commit folds it back into the tries and recomputes the
// state root.
type DB struct {
	root  *mpt.Trie
	cache map[common.Address]*types.StateAccount

	// storageRoots caches each touched account's storage trie so repeated
	// slot reads within one account don't re-open it from the state trie.
	storageRoots map[common.Address]*mpt.Trie

	journal map[common.Address]*accountJournalEntry

	fetchNode NodeFetcher
	fetchCode CodeFetcher
}

func NewDB(stateRoot common.Hash, fetchNode NodeFetcher, fetchCode CodeFetcher) *DB {
	return &DB{
		root:         mpt.OpenRoot(stateRoot),
		cache:        make(map[common.Address]*types.StateAccount),
		storageRoots: make(map[common.Address]*mpt.Trie),
		journal:      make(map[common.Address]*accountJournalEntry),
		fetchNode:    fetchNode,
		fetchCode:    fetchCode,
	}
}

func (db *DB) entry(addr common.Address) *accountJournalEntry {
	e, ok := db.journal[addr]
	if !ok {
		e = &accountJournalEntry{storage: make(map[common.Hash]common.Hash)}
		db.journal[addr] = e
	}
	return e
}

// GetAccount returns the account at addr, reading through to the trie on a
// cache miss. The second return is false when the account does not exist.
func (db *DB) GetAccount(addr common.Address) (*types.StateAccount, bool, error) {
	if e, ok := db.journal[addr]; ok && (e.touched || e.created) {
		if e.selfDestructed {
			return nil, false, nil
		}
		acc := e.account
		return &acc, true, nil
	}
	if acc, ok := db.cache[addr]; ok {
		return acc, acc != nil, nil
	}

	key := crypto.Keccak256Hash(addr.Bytes())
	raw, found, err := db.root.Get(key.Bytes(), db.mptFetcher())
	if err != nil {
		return nil, false, fmt.Errorf("trie: failed to read account %s: %w", addr, err)
	}
	if !found {
		db.cache[addr] = nil
		return nil, false, nil
	}
	var acc types.StateAccount
	if err := rlp.DecodeBytes(raw, &acc); err != nil {
		return nil, false, fmt.Errorf("trie: failed to decode account %s: %w", addr, err)
	}
	db.cache[addr] = &acc
	return &acc, true, nil
}

func (db *DB) mptFetcher() mpt.PreimageFetcher {
	return func(h common.Hash) ([]byte, error) { return db.fetchNode(h) }
}

// storageTrie returns (opening it from the account's storage root if
// necessary) the per-account storage trie.
func (db *DB) storageTrie(addr common.Address) (*mpt.Trie, error) {
	if t, ok := db.storageRoots[addr]; ok {
		return t, nil
	}
	acc, exists, err := db.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	root := types.EmptyRootHash
	if exists {
		root = acc.Root
	}
	t := mpt.OpenRoot(root)
	db.storageRoots[addr] = t
	return t, nil
}

// GetStorage returns the value at slot within addr's storage, defaulting to
// the zero hash for an unset slot.
func (db *DB) GetStorage(addr common.Address, slot common.Hash) (common.Hash, error) {
	if e, ok := db.journal[addr]; ok {
		if v, ok := e.storage[slot]; ok {
			return v, nil
		}
		if e.selfDestructed || e.created {
			return common.Hash{}, nil
		}
	}

	t, err := db.storageTrie(addr)
	if err != nil {
		return common.Hash{}, err
	}
	key := crypto.Keccak256Hash(slot.Bytes())
	raw, found, err := t.Get(key.Bytes(), db.mptFetcher())
	if err != nil {
		return common.Hash{}, fmt.Errorf("trie: failed to read storage %s/%s: %w", addr, slot, err)
	}
	if !found {
		return common.Hash{}, nil
	}
	var value uint256.Int
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return common.Hash{}, fmt.Errorf("trie: failed to decode storage value %s/%s: %w", addr, slot, err)
	}
	return value.Bytes32(), nil
}

// StorageRoot returns the current storage root committed for addr, without
// resolving the storage trie itself. Used to read the withdrawals-message
// passer's root into the Isthmus header before any transaction of the new
// block has run.
func (db *DB) StorageRoot(addr common.Address) (common.Hash, error) {
	acc, exists, err := db.GetAccount(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if !exists {
		return types.EmptyRootHash, nil
	}
	return acc.Root, nil
}

// GetCode returns the contract code stored at codeHash, empty for the
// well-known empty-code hash.
func (db *DB) GetCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == types.EmptyCodeHash {
		return nil, nil
	}
	return db.fetchCode(codeHash)
}

// SetAccount records a balance/nonce/codeHash update for addr, creating its
// journal entry if this is the first write this block.
func (db *DB) SetAccount(addr common.Address, acc types.StateAccount) {
	root := types.EmptyRootHash
	if e, ok := db.journal[addr]; ok && e.account.Root != (common.Hash{}) {
		root = e.account.Root
	} else if prev, ok := db.cache[addr]; ok && prev != nil {
		root = prev.Root
	}
	e := db.entry(addr)
	e.touched = true
	acc.Root = root
	e.account = acc
}

// SetCode records new code for addr, to be hashed and stored at commit.
func (db *DB) SetCode(addr common.Address, code []byte) {
	e := db.entry(addr)
	e.touched = true
	e.codeSet = true
	e.code = code
	e.account.CodeHash = crypto.Keccak256(code)
}

// SetStorage journals a write to one storage slot of addr.
func (db *DB) SetStorage(addr common.Address, slot, value common.Hash) {
	e := db.entry(addr)
	e.touched = true
	e.storage[slot] = value
}

// CreateAccount marks addr as freshly created this block, discarding any
// prior storage (used both for CREATE and for the EIP-161 "new account"
// path of a deposit/transfer to a previously empty address).
func (db *DB) CreateAccount(addr common.Address) {
	e := db.entry(addr)
	e.touched = true
	e.created = true
	e.account = types.StateAccount{Root: types.EmptyRootHash, CodeHash: types.EmptyCodeHash.Bytes()}
	e.storage = make(map[common.Hash]common.Hash)
}

// SelfDestruct marks addr for removal from the state trie at commit.
func (db *DB) SelfDestruct(addr common.Address) {
	e := db.entry(addr)
	e.touched = true
	e.selfDestructed = true
}

// Commit folds every journaled account and storage change back into the
// tries in deterministic lexicographic address order (then slot order
// within each account), applies EIP-161 empty-account pruning, and returns
// the new state root. The journal is cleared so the DB is ready for the
// next block.
func (db *DB) Commit() (common.Hash, error) {
	addrs := make([]common.Address, 0, len(db.journal))
	for addr := range db.journal {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })

	fetch := db.mptFetcher()
	for _, addr := range addrs {
		e := db.journal[addr]
		accountKey := crypto.Keccak256Hash(addr.Bytes())

		if e.selfDestructed {
			if err := removeFromTrie(db.root, accountKey.Bytes(), fetch); err != nil {
				return common.Hash{}, err
			}
			delete(db.storageRoots, addr)
			db.cache[addr] = nil
			continue
		}

		storageTrie, err := db.storageTrie(addr)
		if err != nil {
			return common.Hash{}, err
		}
		if e.created {
			storageTrie = mpt.OpenRoot(types.EmptyRootHash)
			db.storageRoots[addr] = storageTrie
		}

		slots := make([]common.Hash, 0, len(e.storage))
		for slot := range e.storage {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool {
			return string(slots[i][:]) < string(slots[j][:])
		})
		for _, slot := range slots {
			value := e.storage[slot]
			slotKey := crypto.Keccak256Hash(slot.Bytes())
			if value == (common.Hash{}) {
				if err := removeFromTrie(storageTrie, slotKey.Bytes(), fetch); err != nil {
					return common.Hash{}, err
				}
				continue
			}
			v := new(uint256.Int).SetBytes(value.Bytes())
			encoded, err := rlp.EncodeToBytes(v)
			if err != nil {
				return common.Hash{}, err
			}
			if err := storageTrie.Put(slotKey.Bytes(), encoded, fetch); err != nil {
				return common.Hash{}, err
			}
		}

		storageRoot, err := storageTrie.Hash()
		if err != nil {
			return common.Hash{}, err
		}
		e.account.Root = storageRoot

		if accountIsEmpty(&e.account) {
			if err := removeFromTrie(db.root, accountKey.Bytes(), fetch); err != nil {
				return common.Hash{}, err
			}
			delete(db.storageRoots, addr)
			db.cache[addr] = nil
			continue
		}

		encoded, err := rlp.EncodeToBytes(&e.account)
		if err != nil {
			return common.Hash{}, err
		}
		if err := db.root.Put(accountKey.Bytes(), encoded, fetch); err != nil {
			return common.Hash{}, err
		}
		acc := e.account
		db.cache[addr] = &acc
	}

	db.journal = make(map[common.Address]*accountJournalEntry)
	return db.root.Hash()
}

// accountIsEmpty reports whether an account meets the EIP-161 definition of
// "empty": zero nonce, zero balance, and no code.
func accountIsEmpty(acc *types.StateAccount) bool {
	return acc.Nonce == 0 && acc.Balance.IsZero() && string(acc.CodeHash) == string(types.EmptyCodeHash.Bytes())
}

// removeFromTrie deletes key from t if present, via mpt.Trie.Delete;
// deleting a key that is not in t leaves t unchanged.
func removeFromTrie(t *mpt.Trie, key []byte, fetch mpt.PreimageFetcher) error {
	return t.Delete(key, fetch)
}
