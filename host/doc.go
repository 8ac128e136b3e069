// Package host runs a native WASM host against the bridge.
//
// It owns the wazero runtime, registers the bridge's exported functions as a
// host module the native module imports, instantiates the native module and
// invokes its entry point. Strings cross the boundary through the native
// module's allocate/deallocate exports.
package host
