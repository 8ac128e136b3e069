// Package ports defines interfaces for infrastructure operations.
// These ports enable dependency inversion - the bridge core depends on abstractions,
// and infrastructure adapters (in-process heap, wazero guest memory) implement them.
package ports
