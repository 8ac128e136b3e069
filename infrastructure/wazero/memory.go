package wazero

import (
	"context"
	"fmt"
	"sync"

	"github.com/coral-dev/coral-go/domain/ports"
	"github.com/tetratelabs/wazero/api"
)

// GuestMemory is the linear memory of a native wasm module, allocated
// through the module's own allocator exports. Calls into the allocator run
// on the context of the host call currently executing (see Enter).
type GuestMemory struct {
	mod        api.Module
	allocate   api.Function
	deallocate api.Function

	mu  sync.Mutex
	ctx context.Context
}

var _ ports.NativeMemory = (*GuestMemory)(nil)

// NewGuestMemory wraps mod.
func NewGuestMemory(mod api.Module, allocateExport, deallocateExport string) (*GuestMemory, error) {
	allocate := mod.ExportedFunction(allocateExport)
	if allocate == nil {
		return nil, fmt.Errorf("guest module %q missing '%s' export", mod.Name(), allocateExport)
	}
	deallocate := mod.ExportedFunction(deallocateExport)
	if deallocate == nil {
		return nil, fmt.Errorf("guest module %q missing '%s' export", mod.Name(), deallocateExport)
	}
	return &GuestMemory{mod: mod, allocate: allocate, deallocate: deallocate}, nil
}

// Enter makes ctx the context of guest calls until the returned func runs,
// which restores the previous one. Host calls re-entered from the guest
// nest.
func (g *GuestMemory) Enter(ctx context.Context) (restore func()) {
	g.mu.Lock()
	prev := g.ctx
	g.ctx = ctx
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.ctx = prev
		g.mu.Unlock()
	}
}

// Context returns the context of the current host call, or
// context.Background outside of one.
func (g *GuestMemory) Context() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

// Allocate calls the guest allocator.
func (g *GuestMemory) Allocate(size uint32) (uint32, error) {
	results, err := g.allocate.Call(g.Context(), uint64(size))
	if err != nil {
		return 0, fmt.Errorf("failed to call guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocate returned no result")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate returned null for %d bytes", size)
	}
	return ptr, nil
}

// Free calls the guest deallocator.
func (g *GuestMemory) Free(ptr, size uint32) error {
	if _, err := g.deallocate.Call(g.Context(), uint64(ptr), uint64(size)); err != nil {
		return fmt.Errorf("failed to call guest deallocate: %w", err)
	}
	return nil
}

// Read returns a view of guest memory. Address 0 is never readable.
func (g *GuestMemory) Read(ptr, size uint32) ([]byte, bool) {
	mem := g.mod.Memory()
	if mem == nil || ptr == 0 {
		return nil, false
	}
	return mem.Read(ptr, size)
}

// Write copies data into guest memory. Address 0 is never writable.
func (g *GuestMemory) Write(ptr uint32, data []byte) bool {
	mem := g.mod.Memory()
	if mem == nil || ptr == 0 {
		return false
	}
	return mem.Write(ptr, data)
}
