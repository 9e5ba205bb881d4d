// Package host runs the preimage server side of the channel: it answers
// every Get request the client issues out of a pre-populated KV store, logs
// hints (there is nothing to prefetch against, since this host never makes
// a network connection), and runs the client program in the same process
// over an in-memory pipe pair. Grounded on op-program/host/{host,common}.go,
// trimmed to the "offline mode" branch those files already support: no
// prefetcher, no detached exec of a separate client binary.
package host

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/l2verify/fault-proof/client"
	"github.com/l2verify/fault-proof/host/config"
	"github.com/l2verify/fault-proof/host/kvstore"
	"github.com/l2verify/fault-proof/preimage"
)

// Run opens the preimage and hint channels, starts the server loop on one
// side, and runs the verifier client on the other, returning once both have
// finished.
func Run(logger log.Logger, cfg *config.Config) error {
	kv, err := openStore(logger, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	pClientRW, pHostRW, err := preimage.CreateBidirectionalChannel()
	if err != nil {
		return fmt.Errorf("failed to create preimage channel: %w", err)
	}
	defer pClientRW.Close()

	hClientRW, hHostRW, err := preimage.CreateBidirectionalChannel()
	if err != nil {
		return fmt.Errorf("failed to create hint channel: %w", err)
	}
	defer hClientRW.Close()

	serverDone := serve(logger, cfg, kv, pHostRW, hHostRW)

	clientErr := client.RunProgram(logger, pClientRW, hClientRW, client.Config{})
	pHostRW.Close()
	hHostRW.Close()
	<-serverDone

	return clientErr
}

func openStore(logger log.Logger, cfg *config.Config) (kvstore.KV, error) {
	if cfg.DataDir == "" {
		logger.Info("using in-memory preimage storage")
		return kvstore.NewMemKV(), nil
	}
	logger.Info("using on-disk preimage storage", "datadir", cfg.DataDir)
	return kvstore.NewDiskKV(cfg.DataDir)
}

// serve runs the preimage and hint server loops until the client closes its
// ends of the channels, returning a channel that's closed once both loops
// have exited.
func serve(logger log.Logger, cfg *config.Config, kv kvstore.KV, preimageChannel, hintChannel io.ReadWriteCloser) chan struct{} {
	done := make(chan struct{})

	local := kvstore.NewLocalKV(cfg)
	splitter := kvstore.NewPreimageSourceSplitter(local, kv)
	getter := preimage.PreimageGetterFn(func(key preimage.Key) ([]byte, error) {
		return splitter.Get(common.Hash(key.PreimageKey()))
	})

	server := preimage.NewOracleServer(preimageChannel)
	hintReader := preimage.NewHintReader(hintChannel)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		for {
			if err := server.NextPreimageRequest(getter); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
					return
				}
				logger.Error("preimage server error", "err", err)
				return
			}
		}
	}()

	hinterDone := make(chan struct{})
	go func() {
		defer close(hinterDone)
		for {
			if err := hintReader.NextHint(preimage.HintHandlerFn(func(hint preimage.Hint) error {
				logger.Debug("received hint", "hint", hint)
				return nil
			})); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
					return
				}
				logger.Error("hint server error", "err", err)
				return
			}
		}
	}()

	go func() {
		<-serverDone
		<-hinterDone
		close(done)
	}()
	return done
}
