//go:build !amd64 || noasm

// relax_stub.go
//
// Portable fall-back for non-amd64 builds or when assembly stubs are
// disabled. Relax compiles to nothing so callers stay unchanged.

package backoff

// Relax is a no-op on unsupported targets.
func Relax() {}
