// Package resource tracks live engine handles.
//
// Every engine handle is backed by a native resource (a wasm module
// instance) that must be released exactly once. The Table maps integer
// handles to those resources and enforces the contract:
//
//	table := resource.NewTable()
//	h, err := table.Insert("uniform", inst)
//
//	table.Release(ctx, h) // releases inst
//	table.Release(ctx, h) // ErrUnknown, inst untouched
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	unsubscribe := table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %d %s", e.Kind, e.Handle, e.Type)
//	}))
//	defer unsubscribe()
//
// # Leaks
//
// Close releases whatever is still registered and reports each one as
// EventLeaked. Owners are expected to release their handles before the
// table is closed.
package resource
