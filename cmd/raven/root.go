package main

import (
	gocontext "context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ravenlang/raven/internal/compiler"
	"github.com/ravenlang/raven/internal/config"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/raven"
	"github.com/ravenlang/raven/internal/rlog"
)

// driverVersion is checked against a mudlib's requires_driver_version
// constraint (§AMBIENT "Configuration", a semver minimum checked via
// golang.org/x/mod).
const driverVersion = "v0.1.0"

// bootError and versionError tag the two non-zero exit codes §6 names
// without forcing every caller of newEngine to pattern-match error
// strings.
type bootError struct{ err error }

func (e *bootError) Error() string { return e.err.Error() }
func (e *bootError) Unwrap() error { return e.err }

type versionError struct{ err error }

func (e *versionError) Error() string { return e.err.Error() }
func (e *versionError) Unwrap() error { return e.err }

func isBootError(err error) bool {
	_, ok := err.(*bootError)
	return ok
}

func isVersionError(err error) bool {
	_, ok := err.(*versionError)
	return ok
}

func newRootCmd() *cobra.Command {
	var configPath string
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "raven [mudlib-dir]",
		Short: "run the raven mudlib driver",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, args, listenAddr)
			if err != nil {
				return &bootError{err}
			}
			log := rlog.New("raven")
			ctx, _, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			return ctx.Run(gocontext.Background())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on, e.g. :4000 (overrides the config file)")

	cmd.AddCommand(newConsoleCmd())
	return cmd
}

// loadConfig layers config.Load's YAML defaults with the §6 mudlib-path
// resolution order and an optional --listen override.
func loadConfig(configPath string, args []string, listenAddr string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	var cliMudlibPath string
	if len(args) > 0 {
		cliMudlibPath = args[0]
	}
	cfg = config.ApplyOverrides(cfg, cliMudlibPath)
	if cfg.MudlibPath == "" {
		return config.Config{}, fmt.Errorf("raven: no mudlib path given (positional arg, RAVEN_MUDLIB, or config mudlib_path)")
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	return cfg, nil
}

// newEngine wires the Object Table, the compiler, and the engine Context
// together and boots it. The Object Table and compiler are constructed
// in two steps because raven.New and internal/compiler are mutually
// dependent: the compiler needs the exact *objtable.Table and *vfs.FS
// the engine ends up using (symbol identity matters for method
// dispatch), but raven.New is the thing that builds both. A throwaway
// table seeds the compiler before raven.New runs; its Table and Resolver
// fields are rebound to the engine's real ones immediately after.
func newEngine(cfg config.Config, log *rlog.Log) (*raven.Context, *compiler.Compiler, error) {
	comp := compiler.New(objtable.New(), nil, log)
	ctx := raven.New(cfg, comp, log)
	comp.Table = ctx.Table
	comp.Resolver = ctx.VFS

	if err := config.CheckDriverVersion(cfg, driverVersion); err != nil {
		return nil, nil, &versionError{err}
	}
	if err := ctx.Boot(); err != nil {
		return nil, nil, &bootError{err}
	}
	return ctx, comp, nil
}
