package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/batch/manifest"
	"github.com/joshuapare/regbatch/internal/logger"
	"github.com/joshuapare/regbatch/printer"
)

const pruneUsage = "On rollback, also delete empty parent keys of multi-segment names, even ones that existed before"

var (
	manifestPath string
	manifestVars []string
	applyDryRun  bool
	pruneParents bool
)

func init() {
	apply := newApplyCmd()
	apply.Flags().StringVarP(&manifestPath, "file", "f", "", "Manifest file (YAML)")
	apply.Flags().StringArrayVar(&manifestVars, "var", nil, "Manifest variable as NAME=VALUE (repeatable)")
	apply.Flags().BoolVar(&applyDryRun, "dry-run", false, "Print the planned steps without applying them")
	apply.Flags().BoolVar(&pruneParents, "prune", false, pruneUsage)
	_ = apply.MarkFlagRequired("file")

	rollback := newRollbackCmd()
	rollback.Flags().StringVarP(&manifestPath, "file", "f", "", "Manifest file (YAML)")
	rollback.Flags().StringArrayVar(&manifestVars, "var", nil, "Manifest variable as NAME=VALUE (repeatable)")
	rollback.Flags().BoolVar(&pruneParents, "prune", false, pruneUsage)
	_ = rollback.MarkFlagRequired("file")

	rootCmd.AddCommand(apply, rollback)
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply -f <manifest>",
		Short: "Apply a manifest, rolling back on failure",
		Long: `The apply command runs the manifest's operations in order. If any step
fails, the keys and values the manifest describes are removed again and the
command exits with the failure.

Example:
  regbatch apply --store machine.reg -f ext.yaml --var CLSID={96D16936-E510-4EA4-8EE8-BC9C0BD7057B}
  regbatch apply -f ext.yaml --var NAME=Demo --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context())
		},
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback -f <manifest>",
		Short: "Remove what a manifest creates",
		Long: `The rollback command walks the manifest in reverse and removes its values and
created keys. Missing entries are skipped; rollback never fails on them.

Example:
  regbatch rollback --store machine.reg -f ext.yaml --var NAME=Demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback()
		},
	}
}

// parseVars turns NAME=VALUE flags into a map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want NAME=VALUE", p)
		}
		vars[name] = value
	}
	return vars, nil
}

func loadManifest() (*manifest.Manifest, map[string]string, error) {
	vars, err := parseVars(manifestVars)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Loading manifest: %s\n", manifestPath)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	return m, vars, nil
}

func batchOptions() *batch.Options {
	opts := batch.DefaultOptions()
	opts.Logger = logger.L
	opts.PruneParents = pruneParents
	return opts
}

func runApply(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m, vars, err := loadManifest()
	if err != nil {
		return err
	}

	if applyDryRun {
		b, err := m.Build(nil, vars)
		if err != nil {
			return err
		}
		opts := printer.DefaultOptions()
		if jsonOut {
			opts.Format = printer.FormatJSON
		}
		return printer.New(nil, os.Stdout, opts).PrintPlan(b, m.RootName())
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	root, err := sess.Root(m.RootName())
	if err != nil {
		return fmt.Errorf("open %s: %w", m.RootName(), err)
	}
	build, err := m.Builder(root, vars)
	if err != nil {
		_ = root.Close()
		return err
	}

	applied, applyErr := batch.ApplyOrRollback(ctx, build, batchOptions())
	if err := root.Close(); err != nil {
		logger.Warn("closing root failed", "error", err)
	}
	if err := sess.save(); err != nil {
		return err
	}

	if jsonOut {
		result := map[string]any{
			"manifest":    manifestPath,
			"store":       sess.name(),
			"keys_opened": applied.KeysOpened,
			"values_set":  applied.ValuesSet,
			"success":     applyErr == nil,
		}
		if applyErr != nil {
			result["error"] = applyErr.Error()
		}
		if err := printJSON(result); err != nil {
			return err
		}
	}
	if applyErr != nil {
		return fmt.Errorf("apply %s (rolled back): %w", manifestPath, applyErr)
	}
	printInfo("Applied %s to %s: %d keys, %d values\n", manifestPath, sess.name(), applied.KeysOpened, applied.ValuesSet)
	return nil
}

func runRollback() error {
	m, vars, err := loadManifest()
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	root, err := sess.Root(m.RootName())
	if err != nil {
		return fmt.Errorf("open %s: %w", m.RootName(), err)
	}
	b, err := m.Build(root, vars)
	if err != nil {
		_ = root.Close()
		return err
	}
	reverted := batch.Rollback(b, batchOptions())
	if err := root.Close(); err != nil {
		logger.Warn("closing root failed", "error", err)
	}
	if err := sess.save(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"manifest":       manifestPath,
			"store":          sess.name(),
			"values_deleted": reverted.ValuesDeleted,
			"keys_deleted":   reverted.KeysDeleted,
			"keys_skipped":   reverted.KeysSkipped,
			"ignored":        reverted.Ignored,
		})
	}
	printInfo("Rolled back %s in %s: %d values, %d keys deleted, %d subtrees skipped\n",
		manifestPath, sess.name(), reverted.ValuesDeleted, reverted.KeysDeleted, reverted.KeysSkipped)
	return nil
}
