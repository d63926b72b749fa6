package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regbatch/internal/logger"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/registration"
	"github.com/joshuapare/regbatch/symlink"
)

var (
	linkYes bool

	// promptInput is read for rename confirmations.
	promptInput io.Reader = os.Stdin
)

func init() {
	cmd := newLinkCmd()
	cmd.Flags().BoolVarP(&linkYes, "yes", "y", false, "Pick a new name without asking when a link already exists")
	rootCmd.AddCommand(cmd)
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <folder> <source>...",
		Short: "Create symbolic links to files in a folder",
		Long: `The link command does what dropping files onto a folder with the extension
does: each source gets a symbolic link of the same name inside folder. When the
name is taken you are asked whether to continue with "name (1)", "name (2)" and
so on; answering no stops the command.

Example:
  regbatch link ~/Desktop ./report.pdf ./data.csv
  regbatch link --yes /srv/www/current ./build`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(args[0], args[1:])
		},
	}
}

// confirmRename asks on stdout and reads the answer from in.
func confirmRename(in *bufio.Reader) func(string) bool {
	return func(path string) bool {
		if linkYes {
			return true
		}
		fmt.Fprintf(os.Stdout, "%q already exists. Create a link with a new name? [y/N] ", path)
		answer, err := in.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

// linkResult is the JSON form of a symlink.Result.
type linkResult struct {
	Source  string `json:"source"`
	Link    string `json:"link,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runLink(folder string, sources []string) error {
	cfg, err := registrationConfig()
	if err != nil {
		return err
	}
	srv := registration.NewServer(nil, cfg, nil)

	factory, status := srv.ClassObject(cfg.CLSID)
	if status.Failed() {
		return fmt.Errorf("class object: %s", status)
	}
	defer factory.Release()

	handler, status := factory.CreateInstance(false)
	if status.Failed() {
		return fmt.Errorf("create handler: %s", status)
	}
	defer handler.Release()

	if status := handler.Initialize(folder, sources); status.Failed() {
		return fmt.Errorf("initialize: %s", status)
	}
	printVerbose("%s: %d source(s) into %s\n", handler.MenuText(), len(sources), folder)

	results, status := handler.Invoke(&symlink.Options{
		Confirm: confirmRename(bufio.NewReader(promptInput)),
		Logger:  logger.L,
	})

	if jsonOut {
		out := make([]linkResult, 0, len(results))
		for _, r := range results {
			lr := linkResult{Source: r.Source, Link: r.Link, Skipped: r.Skipped}
			if r.Err != nil {
				lr.Error = r.Err.Error()
			}
			out = append(out, lr)
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Skipped:
				printError("skipped %s: %v\n", r.Source, r.Err)
			case r.Err != nil:
				printError("link %s: %v\n", r.Link, r.Err)
			default:
				printInfo("%s -> %s\n", r.Link, r.Source)
			}
		}
	}

	switch status {
	case types.S_OK:
		return nil
	case types.E_ABORT:
		return fmt.Errorf("link: %w", symlink.ErrAborted)
	default:
		return fmt.Errorf("link failed: %s", status)
	}
}
