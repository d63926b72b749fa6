package memstore

import (
	"github.com/joshuapare/regbatch/store"
)

// Op identifies a store call for fault injection and the journal.
type Op uint8

const (
	OpCreate      Op = iota // OpenKey with store.Create
	OpOpen                  // OpenKey with store.OpenExisting
	OpSetValue              // SetValue
	OpDeleteValue           // DeleteValue
	OpDeleteKey             // DeleteKey
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpOpen:
		return "open"
	case OpSetValue:
		return "set"
	case OpDeleteValue:
		return "delete-value"
	case OpDeleteKey:
		return "delete-key"
	default:
		return "unknown"
	}
}

// Fault makes matching calls fail with Err instead of executing.
type Fault struct {
	Op Op
	// Path is the full key path targeted by the call, including the root
	// (e.g. `HKEY_LOCAL_MACHINE\SOFTWARE\Test`). Matching is case-insensitive.
	Path string
	// Value names the value for OpSetValue/OpDeleteValue ("" = default value).
	Value string
	// Err is returned by the failing call.
	Err error
	// Times limits how often the fault fires; zero means every time.
	Times int
}

func (f *Fault) matches(op Op, path, value string) bool {
	if f.Op != op || !store.EqualNames(canonicalPath(f.Path), path) {
		return false
	}
	if op == OpSetValue || op == OpDeleteValue {
		return store.EqualNames(f.Value, value)
	}
	return true
}

// canonicalPath rewrites root abbreviations so HKLM\X matches HKEY_LOCAL_MACHINE\X.
func canonicalPath(path string) string {
	if root, rest, ok := store.SplitRoot(path); ok {
		if rest == "" {
			return root
		}
		return store.JoinPath(root, rest)
	}
	return store.JoinPath(store.SplitPath(path)...)
}

// Fail registers a fault.
func (s *Store) Fail(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &f)
}

// ClearFaults removes all registered faults.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// fault returns the error of the first matching fault. Caller holds s.mu.
func (s *Store) fault(op Op, path, value string) error {
	for i, f := range s.faults {
		if !f.matches(op, path, value) {
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				s.faults = append(s.faults[:i:i], s.faults[i+1:]...)
			}
		}
		return f.Err
	}
	return nil
}

// Event is one successful mutating call recorded in the journal.
type Event struct {
	Op    Op
	Path  string
	Value string
}

// String renders the event as "op path[:value]".
func (e Event) String() string {
	if e.Op == OpSetValue || e.Op == OpDeleteValue {
		name := e.Value
		if name == "" {
			name = "@"
		}
		return e.Op.String() + " " + e.Path + ":" + name
	}
	return e.Op.String() + " " + e.Path
}

// Journal returns a copy of the recorded events.
func (s *Store) Journal() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.journal...)
}

// ResetJournal discards the recorded events.
func (s *Store) ResetJournal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = nil
}

func (s *Store) record(op Op, path, value string) {
	s.journal = append(s.journal, Event{Op: op, Path: path, Value: value})
}
