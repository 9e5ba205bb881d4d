// Package interop is the landing spot for the multi-chain "super root"
// consolidation mode op-program's client/interop package implements. This
// program only ever runs in single-chain (preinterop) mode; the entrypoint
// below exists so that shape is visible without building out the
// cross-chain dependency-set machinery it would require.
package interop

import "errors"

// ErrInteropNotSupported is returned by RunInteropProgram, the only thing
// this package implements.
var ErrInteropNotSupported = errors.New("interop consolidation mode is not supported")

// RunInteropProgram mirrors the signature op-program/client/interop exposes
// to client/program.go's InteropEnabled branch, without the cross-chain
// dependency-set resolution, multi-chain output root tree, or per-chain
// pipeline fan-out an actual implementation would need.
func RunInteropProgram() error {
	return ErrInteropNotSupported
}
