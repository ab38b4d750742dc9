package abi

// Module is a set of host functions exported under one namespace.
type Module interface {
	// Namespace is the import module name guests use, e.g. "fastly_log".
	Namespace() string

	// Functions returns the functions the module exports.
	Functions() []Function
}
