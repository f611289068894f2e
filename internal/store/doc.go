// Package store holds every known task in a concurrent in-memory
// registry and answers filtered, sorted listing queries over it. The
// registry owns the monotonically increasing id counter, so task
// identity needs no global state.
package store
