package batch

import (
	"errors"
	"log/slog"

	"github.com/joshuapare/regbatch/internal/logger"
)

// ErrNilValue is returned by Apply for a SetValue without a Value.
var ErrNilValue = errors.New("batch: nil value")

// Options configures Apply and Rollback.
type Options struct {
	// Logger receives per-operation debug records and failures.
	// Default: the process logger (logger.L).
	Logger *slog.Logger

	// PruneParents makes Rollback also remove the empty intermediate keys of
	// a multi-segment Create name, deepest first, after removing the leaf.
	// Rollback cannot tell intermediates Apply created from empty keys that
	// were already there, so pruning removes both.
	// Default: false (only the named leaf is deleted).
	PruneParents bool
}

// DefaultOptions returns the options used when nil is passed.
func DefaultOptions() *Options {
	return &Options{}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.L
}
