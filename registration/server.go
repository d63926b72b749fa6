package registration

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/internal/logger"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// Server owns the registration batch and the reference counts that decide
// whether the hosting module may be unloaded.
type Server struct {
	root store.Key
	cfg  Config
	opts *batch.Options
	log  *slog.Logger

	objects atomic.Int64 // live factories and handlers
	locks   atomic.Int64 // LockServer(true) calls not yet balanced
}

// NewServer returns a server registering cfg under root (HKEY_LOCAL_MACHINE).
// Nil opts selects batch.DefaultOptions.
func NewServer(root store.Key, cfg Config, opts *batch.Options) *Server {
	if opts == nil {
		opts = batch.DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	return &Server{root: root, cfg: cfg, opts: opts, log: log.With("clsid", cfg.ClassString())}
}

// Config returns the registered class settings.
func (s *Server) Config() Config { return s.cfg }

func (s *Server) build() *batch.Batch { return s.cfg.Batch(s.root) }

// Register applies the registration batch. If any step fails, a freshly
// built batch is rolled back and the failure's status is returned.
func (s *Server) Register(ctx context.Context) types.Status {
	if err := s.cfg.Validate(); err != nil {
		s.log.Error("register refused", "error", err)
		return types.E_INVALIDARG
	}
	applied, err := batch.ApplyOrRollback(ctx, s.build, s.opts)
	status := types.StatusOf(err)
	if err != nil {
		s.log.Error("register failed", "error", err, "status", status.String())
		return status
	}
	s.log.Info("registered", "name", s.cfg.Name, "module", s.cfg.ModulePath,
		"keys", applied.KeysOpened, "values", applied.ValuesSet)
	return types.S_OK
}

// Unregister rolls back the registration batch. It always succeeds.
func (s *Server) Unregister() types.Status {
	reverted := batch.Rollback(s.build(), s.opts)
	s.log.Info("unregistered", "values", reverted.ValuesDeleted, "keys", reverted.KeysDeleted,
		"skipped", reverted.KeysSkipped, "ignored", reverted.Ignored)
	return types.S_OK
}

// Install accepts per-user install requests and does nothing.
func (s *Server) Install(install bool, cmdLine string) types.Status {
	s.log.Debug("install", "install", install, "cmdline", cmdLine)
	return types.S_OK
}

// ClassObject returns a factory for clsid. The nil UUID is an invalid
// argument; any other class than the configured one is unavailable.
func (s *Server) ClassObject(clsid uuid.UUID) (*Factory, types.Status) {
	if clsid == uuid.Nil {
		return nil, types.E_INVALIDARG
	}
	if clsid != s.cfg.CLSID {
		return nil, types.CLASS_E_CLASSNOTAVAILABLE
	}
	s.objects.Add(1)
	return &Factory{s: s}, types.S_OK
}

// Objects reports live factories and handlers.
func (s *Server) Objects() int64 { return s.objects.Load() }

// CanUnloadNow reports whether no objects are alive and the server is not
// locked.
func (s *Server) CanUnloadNow() bool {
	return s.objects.Load() == 0 && s.locks.Load() == 0
}

func (s *Server) release() { s.objects.Add(-1) }
