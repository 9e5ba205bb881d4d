// Package kvstore is the host's preimage store: a plain key-value mapping
// from a 32-byte preimage key to its data, either held in memory or
// persisted as one file per key on disk, plus a splitter that checks the
// boot-info local keys before falling through to the main store. Grounded
// on op-program/host/kvstore's KV/LocalPreimageSource split, trimmed to
// this host's offline (no live-fetching prefetcher) scope.
package kvstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("preimage not found")

// KV is the preimage store every source in this package implements.
type KV interface {
	Get(key common.Hash) ([]byte, error)
	Put(key common.Hash, value []byte) error
	Close() error
}

// MemKV is an in-memory KV, used when no datadir is configured. Every
// preimage it serves must already have been populated by the caller before
// the host starts serving the client.
type MemKV struct {
	mu    sync.RWMutex
	store map[common.Hash][]byte
}

func NewMemKV() *MemKV {
	return &MemKV{store: make(map[common.Hash][]byte)}
}

func (m *MemKV) Get(key common.Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemKV) Put(key common.Hash, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *MemKV) Close() error { return nil }

// DiskKV persists each preimage as its own hex-named file under a datadir,
// so a populated store can be inspected or diffed with ordinary file tools.
type DiskKV struct {
	dir string
}

func NewDiskKV(dir string) (*DiskKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preimage datadir %s: %w", dir, err)
	}
	return &DiskKV{dir: dir}, nil
}

func (d *DiskKV) path(key common.Hash) string {
	return filepath.Join(d.dir, hex.EncodeToString(key[:])+".bin")
}

func (d *DiskKV) Get(key common.Hash) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preimage %s: %w", key, err)
	}
	return data, nil
}

func (d *DiskKV) Put(key common.Hash, value []byte) error {
	if err := os.WriteFile(d.path(key), value, 0o644); err != nil {
		return fmt.Errorf("failed to write preimage %s: %w", key, err)
	}
	return nil
}

func (d *DiskKV) Close() error { return nil }
