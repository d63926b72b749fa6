// Package types holds the small set of shared types used across regbatch:
// typed errors with stable categories, registry value types, and the
// HRESULT-style status codes reported by the registration entry points, and
// the registry name and size limits stores enforce.
//
// Design goals:
//   - Callers branch on error categories (ErrKind), never on message text.
//   - Every store failure can be reduced to a single numeric Status.
//   - The registry value type numbers align with Windows definitions.
//
// This package has no dependencies beyond the standard library.
package types
