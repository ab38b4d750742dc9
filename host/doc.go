// Package host runs guest WebAssembly modules against the logging ABI.
//
// An Executor owns one wazero runtime with WASI preview1 and the host
// modules built from an abi.Registry. Each guest loaded through it gets
// its own Session, so endpoint handles are never shared between guests.
// Executors are safe for concurrent use; a single Instance is not.
package host
