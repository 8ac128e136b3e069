package abi

import (
	"errors"
	"sync"
	"testing"

	domainerrors "github.com/coral-dev/coral-go/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapMemory_AllocateFree(t *testing.T) {
	mem := NewHeapMemory()

	ptr, err := mem.Allocate(1024)
	require.NoError(t, err)
	require.NotZero(t, ptr, "allocate returned null")

	count, total := mem.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1024, total)

	data := []byte("hello world")
	require.True(t, mem.Write(ptr, data))
	got, ok := mem.Read(ptr, uint32(len(data)))
	require.True(t, ok)
	assert.Equal(t, data, got)

	require.NoError(t, mem.Free(ptr, 1024))
	count, total = mem.Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestHeapMemory_AddressesAreAlignedAndNotReused(t *testing.T) {
	mem := NewHeapMemory()

	a, err := mem.Allocate(3)
	require.NoError(t, err)
	require.NoError(t, mem.Free(a, 3))

	b, err := mem.Allocate(3)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "freed address must not be handed out again")
	assert.Zero(t, a%heapAlign)
	assert.Zero(t, b%heapAlign)
}

func TestHeapMemory_ZeroSize(t *testing.T) {
	_, err := NewHeapMemory().Allocate(0)

	var memErr *domainerrors.MemoryError
	require.True(t, errors.As(err, &memErr))
	assert.Equal(t, "allocate", memErr.Operation)
}

func TestHeapMemory_FreeUntracked(t *testing.T) {
	mem := NewHeapMemory()
	ptr, err := mem.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, mem.Free(ptr, 16))

	err = mem.Free(ptr, 16)
	var memErr *domainerrors.MemoryError
	require.True(t, errors.As(err, &memErr))
	assert.Equal(t, "untracked pointer", memErr.Reason)
}

func TestHeapMemory_Limit(t *testing.T) {
	mem := NewHeapMemory(WithMaxTotalAllocations(1024))

	ptr, err := mem.Allocate(512)
	require.NoError(t, err)

	_, err = mem.Allocate(1024)
	var limitErr *domainerrors.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 1024, limitErr.Limit)

	require.NoError(t, mem.Free(ptr, 512))
	_, err = mem.Allocate(1024)
	assert.NoError(t, err)
}

func TestHeapMemory_InvalidLimitIgnored(t *testing.T) {
	mem := NewHeapMemory(WithMaxTotalAllocations(0), WithMaxTotalAllocations(-100))
	_, err := mem.Allocate(4096)
	assert.NoError(t, err)
}

func TestHeapMemory_Bounds(t *testing.T) {
	mem := NewHeapMemory(WithInitialCapacity(64))
	ptr, err := mem.Allocate(8)
	require.NoError(t, err)

	_, ok := mem.Read(0, 4)
	assert.False(t, ok, "null pointer must not be readable")

	_, ok = mem.Read(ptr, 1<<20)
	assert.False(t, ok)

	assert.False(t, mem.Write(ptr+1<<20, []byte{1}))
	assert.False(t, mem.Write(0, []byte{1}))
}

func TestHeapMemory_FreeAll(t *testing.T) {
	mem := NewHeapMemory()
	_, _ = mem.Allocate(100)
	_, _ = mem.Allocate(200)

	count, _ := mem.Stats()
	require.Equal(t, 2, count)

	mem.FreeAll()
	count, total := mem.Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestHeapMemory_Concurrency(t *testing.T) {
	mem := NewHeapMemory()

	var wg sync.WaitGroup
	iterations := 100

	wg.Add(iterations)
	for i := 0; i < iterations; i++ {
		go func() {
			defer wg.Done()
			ptr, err := mem.Allocate(32)
			if err != nil {
				return
			}
			mem.Write(ptr, []byte("concurrent test data"))
			_ = mem.Free(ptr, 32)
		}()
	}
	wg.Wait()

	count, _ := mem.Stats()
	assert.Zero(t, count, "expected 0 allocations after concurrent operations")
}
