// Package errors provides structured error types for the vrange module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the operation, a field path, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConfig, errors.KindInvalidInput).
//		Path("sizes", "base").
//		Value(-1).
//		Detail("size must be positive").
//		Build()
//
// Or use convenience constructors for the common cases:
//
//	err := errors.NotReady("create-uniform", "initializing")
//	err := errors.Trap("variable-range", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so the package sentinels work as targets:
//
//	if errors.Is(err, vrerrors.ErrEngineLoad) { ... }
package errors
