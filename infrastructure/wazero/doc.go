// Package wazero registers the bridge's exported functions with the wazero runtime.
//
// This package connects the exported call surface with native hosts compiled
// to WebAssembly. It handles:
//
//   - Converting between packed i64 pointer+length values and strings
//   - Allocating returned strings through the native module's allocator exports
//   - Binding one Boundary per calling native module
//   - Registering the export table with the wazero host module builder
//
// # Basic Usage
//
//	// Describe the types the native side may query
//	types := catalog.New()
//	types.MustRegister(catalog.TypeSpec{Type: reflect.TypeOf(Widget{}), Assembly: "App", Namespace: "App"})
//
//	surface, err := exports.NewSurface(types)
//	if err != nil {
//	    return err
//	}
//
//	// Create wazero runtime and register the bridge
//	runtime := wazero.NewRuntime(ctx)
//	binding, err := wazero.RegisterWithRuntime(ctx, runtime, surface,
//	    wazero.WithModuleName("coral"),
//	)
//
// # Native module contract
//
// The native module imports its functions from the host module and exports
// allocate(i32) i32 and deallocate(i32, i32). Exception callbacks are named
// by export; they take (i32 ptr, i32 len) and must not retain the pointer.
package wazero
