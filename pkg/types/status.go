package types

import (
	"context"
	"errors"
	"fmt"
)

// Status is an HRESULT-style result code. Zero is success; failures have the
// severity bit set.
type Status uint32

// Well-known codes returned by the registration entry points.
const (
	S_OK                      Status = 0x00000000
	S_FALSE                   Status = 0x00000001
	E_NOTIMPL                 Status = 0x80004001
	E_ABORT                   Status = 0x80004004
	E_FAIL                    Status = 0x80004005
	E_UNEXPECTED              Status = 0x8000FFFF
	E_ACCESSDENIED            Status = 0x80070005
	E_INVALIDARG              Status = 0x80070057
	CLASS_E_NOAGGREGATION     Status = 0x80040110
	CLASS_E_CLASSNOTAVAILABLE Status = 0x80040111
)

// Win32 error codes used when deriving a Status from an error kind.
const (
	errorFileNotFound = 2
	errorDirNotEmpty  = 145
	errorKeyDeleted   = 1018

	facilityWin32 = 7
)

// StatusFromWin32 maps a Win32 error code into the HRESULT space
// (HRESULT_FROM_WIN32).
func StatusFromWin32(code uint32) Status {
	if code == 0 {
		return S_OK
	}
	return Status(0x80000000 | facilityWin32<<16 | code&0xFFFF)
}

// StatusOf reduces err to a single status code. A nil error is S_OK.
func StatusOf(err error) Status {
	if err == nil {
		return S_OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return E_ABORT
	}
	return E_FAIL
}

// Failed reports whether the status denotes failure.
func (s Status) Failed() bool { return s&0x80000000 != 0 }

// Win32 returns the Win32 code carried by a FACILITY_WIN32 status, if any.
func (s Status) Win32() (uint32, bool) {
	if !s.Failed() || (uint32(s)>>16)&0x1FFF != facilityWin32 {
		return 0, false
	}
	return uint32(s) & 0xFFFF, true
}

var statusNames = map[Status]string{
	S_OK:                      "S_OK",
	S_FALSE:                   "S_FALSE",
	E_NOTIMPL:                 "E_NOTIMPL",
	E_ABORT:                   "E_ABORT",
	E_FAIL:                    "E_FAIL",
	E_UNEXPECTED:              "E_UNEXPECTED",
	E_ACCESSDENIED:            "E_ACCESSDENIED",
	E_INVALIDARG:              "E_INVALIDARG",
	CLASS_E_NOAGGREGATION:     "CLASS_E_NOAGGREGATION",
	CLASS_E_CLASSNOTAVAILABLE: "CLASS_E_CLASSNOTAVAILABLE",
}

// String formats the status as 0xXXXXXXXX, followed by its name when known.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("0x%08X (%s)", uint32(s), name)
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}
