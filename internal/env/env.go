// Package env defines the interfaces to the external analysis
// environment: the host system that holds pre-existing function
// signatures and type definitions, and that receives the definitions
// this tool generates.
//
// The core pipeline only ever talks to these interfaces. The shipped
// implementation is the Dolt-backed type database in internal/store;
// tests substitute fakes.
package env

import "context"

// Function is an opaque handle to a function entity known to the
// analysis environment.
type Function interface {
	// Name returns the function's name as the environment knows it.
	Name() string
	// SetSignature replaces the function's type with the given raw C
	// declaration text.
	SetSignature(ctx context.Context, source string) error
	// Reanalyze triggers a re-run of downstream analysis for this
	// function only. Best effort.
	Reanalyze(ctx context.Context) error
}

// Environment is the external analysis environment. It is a single
// shared mutable resource; callers wrap each mutation phase in one
// Transact call so a mid-phase cancellation leaves it either fully
// before or fully after that phase.
type Environment interface {
	// Functions returns the known-names oracle: every function the
	// environment knows about, keyed by name.
	Functions(ctx context.Context) (map[string]Function, error)

	// TypeNames returns the names of all types currently defined.
	TypeNames(ctx context.Context) (map[string]struct{}, error)

	// DefineTypes compiles raw C declaration text and defines every
	// type it declares, returning the defined names. A rejection (for
	// example an unresolved macro constant in an array size) is an
	// error carrying the environment's reason text.
	DefineTypes(ctx context.Context, source string) ([]string, error)

	// Transact runs fn as one logical transaction against the
	// environment. If fn returns an error nothing fn did is kept.
	Transact(ctx context.Context, fn func(context.Context) error) error

	// Reanalyze triggers a global re-run of downstream analysis.
	Reanalyze(ctx context.Context) error
}
