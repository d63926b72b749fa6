package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regbatch/printer"
)

var (
	dumpFormat   string
	dumpDepth    int
	dumpNoValues bool
	dumpMaxBytes int
	dumpMeta     bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().StringVar(&dumpFormat, "format", "text", "Output format (text, json, reg)")
	cmd.Flags().IntVar(&dumpDepth, "depth", 0, "Maximum depth (0 = unlimited)")
	cmd.Flags().BoolVar(&dumpNoValues, "keys-only", false, "Print keys without their values")
	cmd.Flags().IntVar(&dumpMaxBytes, "max-bytes", printer.DefaultMaxValueBytes, "Binary bytes shown per value (0 = all)")
	cmd.Flags().BoolVar(&dumpMeta, "counts", false, "Show subkey and value counts")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [path]",
		Short: "Print a subtree of the store",
		Long: `The dump command prints the key at path and everything below it. Without a
path every root key is printed.

Example:
  regbatch dump --store machine.reg
  regbatch dump --store machine.reg "HKLM\SOFTWARE\Classes\CLSID" --depth 2
  regbatch dump --store system "HKCU\Software\Vendor" --format reg > vendor.reg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runDump(path)
		},
	}
}

func runDump(path string) error {
	format, err := printer.ParseFormat(dumpFormat)
	if err != nil {
		return err
	}
	if jsonOut {
		format = printer.FormatJSON
	}
	sess, err := openSession()
	if err != nil {
		return err
	}

	opts := printer.DefaultOptions()
	opts.Format = format
	opts.MaxDepth = dumpDepth
	opts.ShowValues = !dumpNoValues
	opts.MaxValueBytes = dumpMaxBytes
	opts.PrintMetadata = dumpMeta

	return printer.New(sess, os.Stdout, opts).PrintTree(path)
}
