// Package batch describes a tree of registry mutations and applies or
// reverts it against a store.
//
// A Batch is built once, from ordinary Go values or the builder helpers,
// and can then be handed to Apply and Rollback any number of times:
//
//	b := batch.New(root,
//		batch.Create(`SOFTWARE\Vendor\App`,
//			batch.Default(batch.Str("App")),
//			batch.Set("Version", batch.Str("1.0")),
//		),
//	)
//	if _, err := batch.Apply(ctx, b, nil); err != nil {
//		batch.Rollback(b, nil)
//	}
//
// Apply walks the tree depth-first in declared order and stops at the first
// failure without undoing anything. Rollback walks it depth-first in reverse
// order, never creates keys, skips subtrees whose key is missing, deletes
// keys the batch created after their contents, and ignores every failure, so
// it can be run against a store in any partial state.
package batch
