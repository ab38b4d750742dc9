// Package abi defines the host side of a guest-callable ABI: in-band status
// codes, traps, and an immutable registration table mapping
// (namespace, name) pairs to host function implementations.
//
// This package has no WebAssembly runtime dependency. Runtime adapters such
// as infrastructure/wazero link a Registry into a concrete runtime.
//
// # Error channels
//
// A host function reports its outcome through exactly one of two channels:
//
//   - a Status returned to the guest as an i32 (StatusOK, StatusBadf, ...),
//     for expected outcomes the guest is meant to handle;
//   - a non-nil error, always a *Trap, which aborts the guest call. Traps are
//     reserved for protocol violations such as out-of-bounds memory access or
//     malformed UTF-8.
package abi
