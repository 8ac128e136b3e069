// Package exports is the call surface the native host drives.
//
// A Surface owns the state shared by every native caller: the handle
// registry, the type resolver, the snapshot builder and the exception
// bridge. Bind attaches the Surface to one native memory and returns a
// Boundary whose methods are the exported functions.
//
// Every Boundary method is total: failures never cross the boundary as a
// Go panic or error. An unresolved name or object yields the sentinel
// result silently. Any other failure, including a recovered panic, is
// reported exactly once to the registered exception callback and then
// yields the sentinel.
//
// Table lists the exported functions with their wasm signatures so that
// runtime adapters can register them without knowing their semantics.
package exports
