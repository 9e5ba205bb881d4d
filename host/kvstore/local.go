package kvstore

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/client/boot"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/host/config"
)

// LocalPreimageSource answers the six local boot keys directly out of the
// host's own Config, the way op-program's kvstore.LocalPreimageSource reads
// them out of host/config.Config.
type LocalPreimageSource struct {
	cfg *config.Config
}

func NewLocalPreimageSource(cfg *config.Config) *LocalPreimageSource {
	return &LocalPreimageSource{cfg: cfg}
}

var (
	l1HeadKey             = boot.L1HeadLocalIndex.PreimageKey()
	l2OutputRootKey       = boot.L2OutputRootLocalIndex.PreimageKey()
	l2ClaimKey            = boot.L2ClaimLocalIndex.PreimageKey()
	l2ClaimBlockNumberKey = boot.L2ClaimBlockNumberLocalIndex.PreimageKey()
	l2ChainIDKey          = boot.L2ChainIDLocalIndex.PreimageKey()
	rollupConfigKey       = boot.RollupConfigLocalIndex.PreimageKey()
)

func (s *LocalPreimageSource) Get(key common.Hash) ([]byte, error) {
	switch [32]byte(key) {
	case l1HeadKey:
		return s.cfg.L1Head.Bytes(), nil
	case l2OutputRootKey:
		return s.cfg.L2OutputRoot.Bytes(), nil
	case l2ClaimKey:
		return s.cfg.L2Claim.Bytes(), nil
	case l2ClaimBlockNumberKey:
		return binary.BigEndian.AppendUint64(nil, s.cfg.L2ClaimBlockNumber), nil
	case l2ChainIDKey:
		return binary.BigEndian.AppendUint64(nil, eth.EvilChainIDToUInt64(s.cfg.L2ChainID)), nil
	case rollupConfigKey:
		if !s.cfg.InlineRollupConfig {
			// Both sides resolve the same chain-ID table independently, so
			// there's nothing to serve; the client falls through to its own
			// copy of that table on a miss here.
			return nil, ErrNotFound
		}
		return json.Marshal(s.cfg.RollupConfig)
	default:
		return nil, ErrNotFound
	}
}

// PreimageSourceSplitter tries a local source first, falling through to the
// main store on ErrNotFound.
type PreimageSourceSplitter struct {
	local KV
	main  KV
}

func NewPreimageSourceSplitter(local, main KV) *PreimageSourceSplitter {
	return &PreimageSourceSplitter{local: local, main: main}
}

func (s *PreimageSourceSplitter) Get(key common.Hash) ([]byte, error) {
	if data, err := s.local.Get(key); err == nil {
		return data, nil
	}
	return s.main.Get(key)
}

// localKV adapts LocalPreimageSource.Get to the KV interface so it can be
// passed to PreimageSourceSplitter without a PreimageSource-specific type.
type localKV struct {
	source *LocalPreimageSource
}

func NewLocalKV(cfg *config.Config) KV {
	return &localKV{source: NewLocalPreimageSource(cfg)}
}

func (l *localKV) Get(key common.Hash) ([]byte, error) { return l.source.Get(key) }
func (l *localKV) Put(common.Hash, []byte) error        { return ErrNotFound }
func (l *localKV) Close() error                         { return nil }
