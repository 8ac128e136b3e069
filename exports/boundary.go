package exports

import (
	stdErrors "errors"
	"fmt"
	"runtime/debug"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/application/snapshot"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/internal/abi"
)

// Exported function names.
const (
	OpInitialize                  = "Initialize"
	OpSetExceptionCallback        = "SetExceptionCallback"
	OpGetReflectionType           = "GetReflectionType"
	OpIsTypeAssignableTo          = "IsTypeAssignableTo"
	OpIsTypeAssignableFrom        = "IsTypeAssignableFrom"
	OpGetReflectionTypeFromObject = "GetReflectionTypeFromObject"
	OpGetTypeMethods              = "GetTypeMethods"
	OpQueryObjectFields           = "QueryObjectFields"
	OpFreeString                  = "FreeString"
	OpReleaseObject               = "ReleaseObject"
	OpGetTypeSchema               = "GetTypeSchema"
)

// Boundary is a Surface bound to one native memory.
type Boundary struct {
	surface   *Surface
	codec     *abi.Codec
	callbacks CallbackResolver
}

// Codec returns the codec strings are exchanged through.
func (b *Boundary) Codec() *abi.Codec {
	return b.codec
}

// Surface returns the shared state behind the boundary.
func (b *Boundary) Surface() *Surface {
	return b.surface
}

// guard runs body through the middleware chain. A not-found outcome is
// silent; any other error or panic is reported once.
func (b *Boundary) guard(op string, body func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.surface.report(op, &errors.PanicError{Value: r, Stack: debug.Stack()})
			ok = false
		}
	}()

	err := b.surface.invoke(newCall(op, body))
	if err == nil {
		return true
	}
	if !errors.IsNotFound(err) {
		b.surface.report(op, err)
	}
	return false
}

// Initialize logs the load contexts and assemblies visible to the boundary.
func (b *Boundary) Initialize() {
	b.guard(OpInitialize, func() error {
		logger := b.surface.config.logger
		contexts := b.surface.catalog.Contexts()
		logger.Info("bridge initialized", "load_contexts", len(contexts), "types", b.surface.catalog.Len())
		for _, lc := range contexts {
			for _, a := range lc.Assemblies() {
				logger.Info("assembly loaded",
					"context", lc.Name(), "assembly", a.DisplayName(), "types", len(a.Types()))
			}
		}
		return nil
	})
}

// SetExceptionCallback replaces the exception callback. Messages passed to
// fn are allocated in this boundary's memory. A nil fn clears it.
func (b *Boundary) SetExceptionCallback(fn func(message abi.UnmanagedString)) {
	b.surface.bridge.SetCallback(b.codec, fn)
}

// SetExceptionCallbackByName registers the native function called name as
// the exception callback. The empty name clears the registration.
func (b *Boundary) SetExceptionCallbackByName(name abi.UnmanagedString) {
	b.guard(OpSetExceptionCallback, func() error {
		if b.callbacks == nil {
			return &errors.ProtocolError{Operation: OpSetExceptionCallback, Argument: "name", Reason: "callbacks by name are not supported"}
		}
		text, err := b.codec.Decode(name)
		if err != nil {
			return fmt.Errorf("decode callback name: %w", err)
		}
		if text == "" {
			b.SetExceptionCallback(nil)
			return nil
		}
		fn, err := b.callbacks(text)
		if err != nil {
			return fmt.Errorf("resolve callback %q: %w", text, err)
		}
		b.SetExceptionCallback(fn)
		return nil
	})
}

// GetReflectionType writes the identity of the named type to out.
func (b *Boundary) GetReflectionType(name abi.UnmanagedString, out uint32) bool {
	return b.guard(OpGetReflectionType, func() error {
		if err := requirePtr(OpGetReflectionType, "out", out); err != nil {
			return err
		}
		t, err := b.findType(name)
		if err != nil {
			return err
		}
		return b.writeReflectionType(out, b.surface.builder.Build(t))
	})
}

// IsTypeAssignableTo reports whether a value of type a can be used as type b.
// It is false when either name does not resolve.
func (b *Boundary) IsTypeAssignableTo(a, other abi.UnmanagedString) bool {
	return b.assignable(OpIsTypeAssignableTo, a, other, snapshot.AssignableTo)
}

// IsTypeAssignableFrom reports whether a value of type other can be used as type a.
func (b *Boundary) IsTypeAssignableFrom(a, other abi.UnmanagedString) bool {
	return b.assignable(OpIsTypeAssignableFrom, a, other, snapshot.AssignableFrom)
}

func (b *Boundary) assignable(op string, a, other abi.UnmanagedString, rel func(t, u *catalog.Type) bool) bool {
	var result bool
	ok := b.guard(op, func() error {
		t, err := b.findType(a)
		if err != nil {
			return err
		}
		u, err := b.findType(other)
		if err != nil {
			return err
		}
		result = rel(t, u)
		return nil
	})
	return ok && result
}

// GetReflectionTypeFromObject writes the identity of the object's dynamic
// type to out.
func (b *Boundary) GetReflectionTypeFromObject(h entities.Handle, out uint32) bool {
	return b.guard(OpGetReflectionTypeFromObject, func() error {
		if err := requirePtr(OpGetReflectionTypeFromObject, "out", out); err != nil {
			return err
		}
		obj, err := b.surface.handles.Resolve(h)
		if err != nil {
			return err
		}
		return b.writeReflectionType(out, b.surface.builder.Build(b.surface.resolver.TypeOfObject(obj)))
	})
}

// GetTypeMethods lists the methods of the named type.
// With methods == 0 only the count is written; otherwise methods must have
// room for the count learned from a previous call. count is 0 on failure.
func (b *Boundary) GetTypeMethods(name abi.UnmanagedString, methods, count uint32) {
	b.listMembers(OpGetTypeMethods, name, methods, count, b.surface.builder.Methods)
}

// QueryObjectFields lists the fields of the named type. It follows the
// same two-call protocol as GetTypeMethods.
func (b *Boundary) QueryObjectFields(name abi.UnmanagedString, fields, count uint32) {
	b.listMembers(OpQueryObjectFields, name, fields, count, b.surface.builder.Fields)
}

func (b *Boundary) listMembers(
	op string,
	name abi.UnmanagedString,
	arr, count uint32,
	list func(*catalog.Type) ([]entities.MemberDescriptor, error),
) {
	b.guard(op, func() error {
		if err := requirePtr(op, "count", count); err != nil {
			return err
		}
		mem := b.codec.Memory()
		if err := abi.WriteInt32(mem, count, 0); err != nil {
			return err
		}

		t, err := b.findType(name)
		if err != nil {
			return err
		}
		members, err := list(t)
		if err != nil {
			return err
		}
		n := int32(len(members)) //nolint:gosec // G115: member counts are small
		if arr == 0 {
			return abi.WriteInt32(mem, count, n)
		}

		set := abi.NewOwnedSet(b.codec)
		layouts, err := abi.EncodeMembers(set, members)
		if err == nil {
			err = abi.WriteMembers(mem, arr, layouts)
		}
		if err == nil {
			err = abi.WriteInt32(mem, count, n)
		}
		if err != nil {
			return stdErrors.Join(err, set.ReleaseAll())
		}
		set.DetachAll()
		return nil
	})
}

// FreeString releases a string previously handed to the native side.
func (b *Boundary) FreeString(s abi.UnmanagedString) {
	b.guard(OpFreeString, func() error {
		return b.codec.Free(s)
	})
}

// ReleaseObject invalidates a handle.
func (b *Boundary) ReleaseObject(h entities.Handle) bool {
	return b.guard(OpReleaseObject, func() error {
		return b.surface.handles.Release(h)
	})
}

// GetTypeSchema writes the JSON schema of the named type to out.
func (b *Boundary) GetTypeSchema(name abi.UnmanagedString, out uint32) bool {
	return b.guard(OpGetTypeSchema, func() error {
		if err := requirePtr(OpGetTypeSchema, "out", out); err != nil {
			return err
		}
		t, err := b.findType(name)
		if err != nil {
			return err
		}
		data, err := b.surface.builder.Schema(t)
		if err != nil {
			return err
		}

		owned, err := b.codec.Encode(string(data))
		if err != nil {
			return err
		}
		if err := abi.WriteString(b.codec.Memory(), out, owned.Peek()); err != nil {
			return stdErrors.Join(err, owned.Release())
		}
		owned.Detach()
		return nil
	})
}

// findType decodes name and resolves it. Unresolved names, including
// names that are not valid text, wrap ErrNotFound.
func (b *Boundary) findType(name abi.UnmanagedString) (*catalog.Type, error) {
	text, err := b.codec.Decode(name)
	if stdErrors.Is(err, abi.ErrInvalidText) {
		return nil, fmt.Errorf("type name: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("decode type name: %w", err)
	}
	t := b.surface.resolver.FindType(text)
	if t == nil {
		return nil, fmt.Errorf("type %q: %w", text, errors.ErrNotFound)
	}
	return t, nil
}

// writeReflectionType encodes rt and stores it at out. On failure every
// string allocated for it is freed again.
func (b *Boundary) writeReflectionType(out uint32, rt *entities.ReflectionType) error {
	set := abi.NewOwnedSet(b.codec)
	layout, err := abi.EncodeReflectionType(set, rt)
	if err == nil {
		err = abi.WriteReflectionType(b.codec.Memory(), out, layout)
	}
	if err != nil {
		return stdErrors.Join(err, set.ReleaseAll())
	}
	set.DetachAll()
	return nil
}

func requirePtr(op, arg string, ptr uint32) error {
	if ptr == 0 {
		return &errors.ProtocolError{Operation: op, Argument: arg, Reason: "null pointer"}
	}
	return nil
}
