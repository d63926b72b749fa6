package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joshuapare/regbatch/internal/logger"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/registration"
	"github.com/joshuapare/regbatch/store"
)

var (
	regModule    string
	regCLSID     string
	regName      string
	installUndo  bool
	installCmdLn string
)

func init() {
	reg := newRegisterCmd()
	reg.Flags().StringVar(&regModule, "module", "", "Path of the extension module (InProcServer32)")
	reg.Flags().StringVar(&regCLSID, "clsid", "", "Class identifier (default "+registration.DefaultCLSID.String()+")")
	reg.Flags().StringVar(&regName, "name", "", "Handler name (default \""+registration.DefaultName+"\")")
	reg.Flags().BoolVar(&pruneParents, "prune", false, pruneUsage)

	unreg := newUnregisterCmd()
	unreg.Flags().AddFlagSet(reg.Flags())

	inst := newInstallCmd()
	inst.Flags().BoolVar(&installUndo, "uninstall", false, "Request uninstallation instead of installation")
	inst.Flags().StringVar(&installCmdLn, "cmdline", "", "Install command line passed to the extension")

	rootCmd.AddCommand(reg, unreg, inst)
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the Drop for Symlink shell extension",
		Long: `The register command writes the extension's class, drag-and-drop handler
and approval entries under HKEY_LOCAL_MACHINE. If any step fails, every entry
written so far is removed again and the failure status is reported.

Example:
  regbatch register --store system --module "C:\Program Files\dropsym\dropsym.dll"
  regbatch register --store machine.reg --module dropsym.dll --name "Link Here"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context())
		},
	}
}

func newUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister",
		Short: "Remove the shell extension's registry entries",
		Long: `The unregister command removes what register writes. Entries that are
already gone are skipped; unregister always succeeds.

Example:
  regbatch unregister --store system`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnregister()
		},
	}
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Per-user install entry point (does nothing)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall()
		},
	}
}

// registrationConfig merges the defaults, the config file and the flags.
func registrationConfig() (registration.Config, error) {
	file := settings.Registration
	cfg := registration.DefaultConfig(file.Module)
	if file.Name != "" {
		cfg.Name = file.Name
	}
	if file.ThreadingModel != "" {
		cfg.ThreadingModel = file.ThreadingModel
	}
	clsid := file.CLSID
	if regCLSID != "" {
		clsid = regCLSID
	}
	if clsid != "" {
		id, err := uuid.Parse(clsid)
		if err != nil {
			return cfg, fmt.Errorf("invalid CLSID %q: %w", clsid, err)
		}
		cfg.CLSID = id
	}
	if regName != "" {
		cfg.Name = regName
	}
	if regModule != "" {
		cfg.ModulePath = regModule
	}
	return cfg, nil
}

// newServer opens the store and returns a registration server on its
// HKEY_LOCAL_MACHINE root. done closes the root handle.
func newServer() (srv *registration.Server, sess *session, done func(), err error) {
	cfg, err := registrationConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	sess, err = openSession()
	if err != nil {
		return nil, nil, nil, err
	}
	root, err := sess.Root(store.HKEYLocalMachine)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", store.HKEYLocalMachine, err)
	}
	opts := batchOptions()
	done = func() {
		if err := root.Close(); err != nil {
			logger.Warn("closing root failed", "error", err)
		}
	}
	return registration.NewServer(root, cfg, opts), sess, done, nil
}

// statusResult is the JSON form of an entry point's outcome.
type statusResult struct {
	Command string `json:"command"`
	Store   string `json:"store"`
	CLSID   string `json:"clsid,omitempty"`
	Status  string `json:"status"`
	Code    uint32 `json:"code"`
	Success bool   `json:"success"`
}

func report(command string, sess *session, cfg registration.Config, status types.Status) error {
	if jsonOut {
		if err := printJSON(statusResult{
			Command: command,
			Store:   sess.name(),
			CLSID:   cfg.ClassString(),
			Status:  status.String(),
			Code:    uint32(status),
			Success: !status.Failed(),
		}); err != nil {
			return err
		}
	} else if !status.Failed() {
		printInfo("%s %s in %s: %s\n", command, cfg.ClassString(), sess.name(), status)
	}
	if status.Failed() {
		return fmt.Errorf("%s failed: %s", command, status)
	}
	return nil
}

func runRegister(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	srv, sess, done, err := newServer()
	if err != nil {
		return err
	}
	status := srv.Register(ctx)
	done()

	// A failed register has been rolled back; saving keeps the file in the
	// same state as the registry it models.
	if err := sess.save(); err != nil {
		return err
	}
	return report("register", sess, srv.Config(), status)
}

func runUnregister() error {
	srv, sess, done, err := newServer()
	if err != nil {
		return err
	}
	status := srv.Unregister()
	done()
	if err := sess.save(); err != nil {
		return err
	}
	return report("unregister", sess, srv.Config(), status)
}

func runInstall() error {
	cfg, err := registrationConfig()
	if err != nil {
		return err
	}
	srv := registration.NewServer(nil, cfg, nil)
	status := srv.Install(!installUndo, installCmdLn)
	if jsonOut {
		return printJSON(statusResult{Command: "install", Status: status.String(), Code: uint32(status), Success: !status.Failed()})
	}
	printInfo("install: %s\n", status)
	return nil
}
