// Package entities provides the core domain entities of the interop bridge.
// These are plain values shared by every layer: object handles, member
// visibility, reflection snapshots and structured error details.
// ABI-level encodings of these values live in internal/abi.
package entities
