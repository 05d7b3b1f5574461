// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the taskstore.Store interface.
//
// # Concurrency Model
//
// The store uses sync.Map because the workload is write-heavy with
// independent keys: every worker updates the status of its own task, while
// the health server occasionally ranges over all of them. The key space only
// grows during a run and values change frequently, which is the pattern
// sync.Map is built for.
//
// For state that must outlive the process or be shared between drivers, a
// different implementation of taskstore.Store is needed.
package inmemorystore
