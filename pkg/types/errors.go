package types

import "errors"

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNotFound    ErrKind = iota // missing key/value/path
	ErrKindPermission                 // insufficient rights to open/create/write/delete
	ErrKindNotEmpty                   // key deletion blocked by remaining content
	ErrKindState                      // invalid operation for current state (closed or deleted handle)
	ErrKindUnsupported                // valid request we don't support on this platform/store
	ErrKindFormat                     // malformed input (bad names, bad .reg text, bad manifests)
)

// String returns the category name.
func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not found"
	case ErrKindPermission:
		return "permission denied"
	case ErrKindNotEmpty:
		return "not empty"
	case ErrKindState:
		return "invalid state"
	case ErrKindUnsupported:
		return "unsupported"
	case ErrKindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Error is a typed error with an optional status code and underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Code Status // zero means "derive from Kind"
	Err  error  // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same kind, so store
// implementations can build their own errors and still match the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Status returns the numeric code for this error.
func (e *Error) Status() Status {
	if e.Code != 0 {
		return e.Code
	}
	switch e.Kind {
	case ErrKindNotFound:
		return StatusFromWin32(errorFileNotFound)
	case ErrKindPermission:
		return E_ACCESSDENIED
	case ErrKindNotEmpty:
		return StatusFromWin32(errorDirNotEmpty)
	case ErrKindState:
		return StatusFromWin32(errorKeyDeleted)
	case ErrKindUnsupported:
		return E_NOTIMPL
	case ErrKindFormat:
		return E_INVALIDARG
	default:
		return E_FAIL
	}
}

// Sentinels commonly returned by stores.
var (
	// ErrNotFound indicates a missing key or value.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "not found"}
	// ErrPermissionDenied indicates the caller lacks rights for the operation.
	ErrPermissionDenied = &Error{Kind: ErrKindPermission, Msg: "permission denied"}
	// ErrNotEmpty indicates a key still holds subkeys or values.
	ErrNotEmpty = &Error{Kind: ErrKindNotEmpty, Msg: "key not empty"}
	// ErrKeyDeleted indicates the handle refers to a key that was deleted.
	ErrKeyDeleted = &Error{Kind: ErrKindState, Msg: "key marked for deletion"}
	// ErrClosed indicates the handle was already closed.
	ErrClosed = &Error{Kind: ErrKindState, Msg: "handle closed"}
	// ErrUnsupported indicates the store is not available on this platform.
	ErrUnsupported = &Error{Kind: ErrKindUnsupported, Msg: "unsupported"}
	// ErrInvalidName indicates an empty or malformed key name.
	ErrInvalidName = &Error{Kind: ErrKindFormat, Msg: "invalid key name"}
	// ErrMalformed indicates unparseable input such as .reg text or a manifest.
	ErrMalformed = &Error{Kind: ErrKindFormat, Msg: "malformed input"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}
