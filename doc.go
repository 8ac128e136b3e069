// Package coral exposes Go types to native code.
//
// The bridge lets a native host ask for the identity, members and JSON schema
// of catalogued Go types, hold Go objects by opaque handle and receive Go
// failures through a registered exception callback. Strings cross the
// boundary as unmanaged (pointer, length) pairs allocated in native memory.
//
// The exports package implements the call surface; infrastructure/wazero and
// host bind it to native WASM modules. Local runs the same surface against
// an in-process heap, which is how tools and tests play the native side:
//
//	c := catalog.New()
//	c.MustRegister(catalog.TypeSpec{Type: catalog.Of[Widget](), Assembly: "App", Namespace: "App"})
//
//	local, err := coral.NewLocal(c)
//	if err != nil {
//		return err
//	}
//	defer local.Close()
//
//	rt, err := local.TypeOf("App.Widget")
package coral
