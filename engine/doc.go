// Package engine provides the position-index engine behind the range
// controller.
//
// The engine is a small WebAssembly module generated at first use and run
// on wazero. Each handle gets its own anonymous instance, so uniform and
// variable handles never share state.
//
// # Architecture
//
//	Runtime        - Compiles the index module and tracks live handles
//	Uniform        - O(1) arithmetic over count items of one size
//	Variable       - O(log n) lookups over per-item sizes
//
// # ABI
//
// Every export takes and returns f64. Indices are exact up to 2^53, which
// keeps the host side free of integer narrowing.
//
//	Export              Params                       Results
//	──────────────────────────────────────────────────────────────
//	uniform-init        count, size                  -
//	uniform-set-count   count                        -
//	uniform-offset      index                        offset
//	uniform-range       scroll, viewport, overscan   start, end
//	variable-build      count                        -
//	variable-offset     index                        offset
//	variable-size       index                        size
//	variable-find       offset                       index
//	variable-range      scroll, viewport, overscan   start, end
//
// # Variable Memory Layout
//
// The host writes item sizes at 8*(i+1) in the exported memory, then calls
// variable-build, which rewrites them in place into prefix sums with
// mem[0] = 0. After the build, mem[8*i] is the offset of item i and
// mem[8*n] is the total size.
//
// # Handle Lifecycle
//
// Free releases the instance exactly once. A second Free, or any lookup on
// a freed handle, returns an error matching errors.ErrReleased. Closing the
// Runtime frees whatever handles their owners never released and reports
// them to resource.Table observers as leaked.
package engine
