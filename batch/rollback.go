package batch

import (
	"context"
	"log/slog"

	"github.com/joshuapare/regbatch/store"
)

// Reverted counts what Rollback removed and what it passed over.
type Reverted struct {
	ValuesDeleted int
	KeysDeleted   int
	// KeysSkipped counts subtrees not visited because their key could not
	// be opened.
	KeysSkipped int
	// Ignored counts failed deletions.
	Ignored int
}

// Rollback undoes b: operations are visited depth-first in reverse declared
// order, values are deleted, and keys the batch creates are deleted after
// their contents. Keys are only ever opened, never created; a key that
// cannot be opened has its subtree skipped. Failures are logged and
// counted, never returned.
func Rollback(b *Batch, opts *Options) Reverted {
	if opts == nil {
		opts = DefaultOptions()
	}
	r := &rollbacker{log: opts.logger(), prune: opts.PruneParents}
	r.ops(b.Root, "", b.Ops)
	r.log.Debug("rollback complete",
		"values", r.stats.ValuesDeleted, "keys", r.stats.KeysDeleted,
		"skipped", r.stats.KeysSkipped, "ignored", r.stats.Ignored)
	return r.stats
}

// ApplyOrRollback applies build() and, if that fails, rolls back a freshly
// built batch before returning the apply error.
func ApplyOrRollback(ctx context.Context, build BuildFunc, opts *Options) (Applied, error) {
	applied, err := Apply(ctx, build(), opts)
	if err != nil {
		Rollback(build(), opts)
	}
	return applied, err
}

type rollbacker struct {
	log   *slog.Logger
	prune bool
	stats Reverted
}

func (r *rollbacker) ops(k store.Key, path string, ops []Op) {
	for i := len(ops) - 1; i >= 0; i-- {
		switch op := ops[i].(type) {
		case SetValue:
			ref := valueRef(path, op.Name)
			if err := k.DeleteValue(op.Name); err != nil {
				r.ignore("delete value", ref, err)
				continue
			}
			r.stats.ValuesDeleted++
			r.log.Debug("deleted value", "value", ref)
		case Key:
			r.key(k, path, op)
		}
	}
}

func (r *rollbacker) key(parent store.Key, path string, op Key) {
	full := joinRel(path, op.Name)
	child, err := parent.OpenKey(op.Name, store.OpenExisting)
	if err != nil {
		r.stats.KeysSkipped++
		r.log.Debug("skipped key", "key", full, "error", err)
		return
	}
	r.ops(child, full, op.Ops)
	if err := child.Close(); err != nil {
		r.ignore("close key", full, err)
	}

	if op.Mode != store.Create {
		return
	}
	if err := parent.DeleteKey(op.Name); err != nil {
		r.ignore("delete key", full, err)
		return
	}
	r.stats.KeysDeleted++
	r.log.Debug("deleted key", "key", full)

	if r.prune {
		r.pruneParents(parent, path, op.Name)
	}
}

// pruneParents deletes the intermediate segments of name, deepest first,
// stopping at the first one the store refuses to delete.
func (r *rollbacker) pruneParents(parent store.Key, path, name string) {
	segs := store.SplitPath(name)
	for i := len(segs) - 1; i > 0; i-- {
		rel := store.JoinPath(segs[:i]...)
		if err := parent.DeleteKey(rel); err != nil {
			r.log.Debug("kept parent key", "key", joinRel(path, rel), "error", err)
			return
		}
		r.stats.KeysDeleted++
		r.log.Debug("deleted key", "key", joinRel(path, rel))
	}
}

func (r *rollbacker) ignore(action, target string, err error) {
	r.stats.Ignored++
	r.log.Debug("rollback "+action+" ignored", "target", target, "error", err)
}
