package ports

import "github.com/coral-dev/coral-go/domain/entities"

// ObjectRegistry maps opaque handles to live objects.
type ObjectRegistry interface {
	// Register stores obj and returns a handle that names it until released.
	Register(obj any) (entities.Handle, error)

	// Resolve returns the object named by h.
	Resolve(h entities.Handle) (any, error)

	// Release invalidates h. Later use of h fails.
	Release(h entities.Handle) error

	// Len returns the number of live handles.
	Len() int

	// Close invalidates every handle.
	Close()
}
