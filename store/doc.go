// Package store defines the contract between the batch engines and a
// hierarchical, persistent key-value configuration store such as the Windows
// registry.
//
// A store is a tree of keys. Each key holds subkeys, any number of named
// values and one unnamed default value (addressed by the empty name). Stores
// are synchronous and not transactional: every call takes effect before it
// returns, and nothing is undone automatically.
//
// Implementations:
//   - store/memstore: in-memory tree with fault injection, used by tests.
//   - store/regfile:  memstore persisted as a .reg file.
//   - store/winreg:   the live Windows registry.
package store
