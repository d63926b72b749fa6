package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuapare/regbatch/store"
)

// Applied counts the work done by Apply, up to the point of failure.
type Applied struct {
	KeysOpened int
	ValuesSet  int
}

// Apply performs b's operations depth-first in declared order.
//
// The first failure aborts the walk and is returned wrapped with the path of
// the key or value involved; nothing already written is undone. Every handle
// Apply opens is closed before it returns, on success or failure. The
// context is checked before each operation.
func Apply(ctx context.Context, b *Batch, opts *Options) (Applied, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	a := &applier{ctx: ctx, log: opts.logger()}
	err := a.ops(b.Root, "", b.Ops)
	if err != nil {
		a.log.Error("apply aborted", "error", err, "keys", a.stats.KeysOpened, "values", a.stats.ValuesSet)
		return a.stats, err
	}
	a.log.Debug("apply complete", "keys", a.stats.KeysOpened, "values", a.stats.ValuesSet)
	return a.stats, nil
}

type applier struct {
	ctx   context.Context
	log   *slog.Logger
	stats Applied
}

func (a *applier) ops(k store.Key, path string, ops []Op) error {
	for _, op := range ops {
		if err := a.ctx.Err(); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		switch op := op.(type) {
		case SetValue:
			if err := a.setValue(k, path, op); err != nil {
				return err
			}
		case Key:
			if err := a.key(k, path, op); err != nil {
				return err
			}
		default:
			return fmt.Errorf("apply: unknown op %T", op)
		}
	}
	return nil
}

func (a *applier) setValue(k store.Key, path string, op SetValue) error {
	ref := valueRef(path, op.Name)
	if op.Value == nil {
		return fmt.Errorf("apply: set value %q: %w", ref, ErrNilValue)
	}
	if err := k.SetValue(op.Name, op.Value.Type(), op.Value.Bytes()); err != nil {
		return fmt.Errorf("apply: set value %q: %w", ref, err)
	}
	a.stats.ValuesSet++
	a.log.Debug("set value", "value", ref, "type", op.Value.Type().String(), "data", op.Value.String())
	return nil
}

func (a *applier) key(parent store.Key, path string, op Key) (err error) {
	full := joinRel(path, op.Name)
	child, err := parent.OpenKey(op.Name, op.Mode)
	if err != nil {
		return fmt.Errorf("apply: %s key %q: %w", op.Mode, full, err)
	}
	a.stats.KeysOpened++
	a.log.Debug("opened key", "key", full, "mode", op.Mode.String())

	defer func() {
		if cerr := child.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("apply: close key %q: %w", full, cerr)
		}
	}()
	return a.ops(child, full, op.Ops)
}
