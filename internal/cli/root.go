// Package cli implements the landrecords command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/config"
	"github.com/mesh-intelligence/landrecords/internal/logging"
	"github.com/mesh-intelligence/landrecords/internal/paths"
)

// Version is the CLI version.
const Version = "0.3.0"

// Exit codes.
const (
	exitUserError = 1
	exitSysError  = 2
)

// env holds global flag values and the state loaded before each command.
type env struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd creates the "landrecords" command with every subcommand.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "landrecords",
		Short:         "Village land records store",
		Long:          "landrecords imports spreadsheets of land records and keeps them in a\nlocal store, falling back from remote tiers when they are unreachable.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&e.dataDir, "data-dir", "", "local store directory (default: ./.landrecords-db)")
	pf.StringVar(&e.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&e.jsonMode, "json", false, "print results as JSON")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(e),
		newImportCmd(e),
		newDatasetsCmd(e),
		newListCmd(e),
		newInsertCmd(e),
		newEditCmd(e),
		newAckCmd(e),
		newAddColumnCmd(e),
		newAuxCmd(e),
		newDeleteCmd(e),
		newDeleteDatasetCmd(e),
		newDeleteAuxCmd(e),
		newRestoreCmd(e),
		newPurgeCmd(e),
		newEmptyBinCmd(e),
		newBinCmd(e),
		newStatusCmd(e),
		newWatchCmd(e),
		newExportCmd(e),
		newImportBackupCmd(e),
		newServeCmd(e),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func (e *env) load() error {
	dir, err := paths.ResolveConfigDir(e.configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}
	e.configDir = dir

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = log
	return nil
}

func (e *env) resolveDataDir() (string, error) {
	return paths.ResolveDataDir(e.dataDir, e.cfg.DataDir)
}
