package registration

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/symlink"
)

// Factory creates drop handlers. It counts as a live object until Release.
type Factory struct {
	s        *Server
	released atomic.Bool
}

// CreateInstance returns a new handler. Aggregation is not supported.
func (f *Factory) CreateInstance(aggregate bool) (*Handler, types.Status) {
	if aggregate {
		return nil, types.CLASS_E_NOAGGREGATION
	}
	if f.released.Load() {
		return nil, types.E_UNEXPECTED
	}
	f.s.objects.Add(1)
	return &Handler{s: f.s}, types.S_OK
}

// LockServer keeps the server loaded while locked.
func (f *Factory) LockServer(lock bool) types.Status {
	if lock {
		f.s.locks.Add(1)
	} else if f.s.locks.Add(-1) < 0 {
		f.s.locks.Store(0)
	}
	return types.S_OK
}

// Release drops the factory's reference. Extra calls are ignored.
func (f *Factory) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.s.release()
	}
}

// Handler is the drop target handler: it receives the destination folder and
// the dropped paths, then links them when invoked.
type Handler struct {
	s        *Server
	released atomic.Bool

	mu      sync.Mutex
	folder  string
	sources []string
}

// Initialize records the drop. The folder is required and at least one
// source must be given.
func (h *Handler) Initialize(folder string, sources []string) types.Status {
	if folder == "" {
		return types.E_INVALIDARG
	}
	if len(sources) == 0 {
		return types.E_UNEXPECTED
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.folder = folder
	h.sources = append(h.sources, sources...)
	return types.S_OK
}

// MenuText is the context menu entry offered for the drop.
func (h *Handler) MenuText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sources) > 1 {
		return "Create Symlinks"
	}
	return "Create Symlink"
}

// Invoke links the recorded sources into the folder and clears them. A
// declined rename yields E_ABORT; a naming failure E_UNEXPECTED. Individual
// link failures are reported in the results only.
func (h *Handler) Invoke(opts *symlink.Options) ([]symlink.Result, types.Status) {
	h.mu.Lock()
	folder, sources := h.folder, h.sources
	h.folder, h.sources = "", nil
	h.mu.Unlock()

	if folder == "" {
		return nil, types.E_UNEXPECTED
	}
	if opts == nil {
		opts = &symlink.Options{Logger: h.s.log}
	}
	results, err := symlink.Create(folder, sources, opts)
	switch {
	case err == nil:
		return results, types.S_OK
	case errors.Is(err, symlink.ErrAborted):
		return results, types.E_ABORT
	default:
		h.s.log.Error("link failed", "error", err)
		return results, types.E_UNEXPECTED
	}
}

// Release drops the handler's reference. Extra calls are ignored.
func (h *Handler) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.s.release()
	}
}
