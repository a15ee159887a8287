// Command svcpipe generates the per-service child pipeline for a monorepo of
// deployable services, and carries the repository's CI helper tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"svcpipe/internal/config"
	"svcpipe/internal/logging"
)

var (
	// Global flags
	verbose    bool
	repoDir    string
	configPath string
	envFiles   []string

	logger *zap.Logger

	// getenv reads CI signals; tests replace it.
	getenv = os.Getenv
)

var rootCmd = &cobra.Command{
	Use:   "svcpipe",
	Short: "Dynamic CI pipeline generator for service monorepos",
	Long: `svcpipe decides which services changed in the current CI context and
emits a child pipeline with a validate, preflight, backup, deploy and verify
job for each of them.

Diagnostics go to stderr; documents and lists go to stdout or files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(verbose, cmd.ErrOrStderr())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "Repository root")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: <repo>/"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load variables from .env files (default: ./.env when present)")

	rootCmd.AddCommand(detectCmd, generateCmd, lintCmd, inventoryCmd, ledgerCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings resolves the settings for the selected repository.
func loadSettings() (config.Settings, error) {
	path, explicit := configPath, configPath != ""
	if !explicit {
		path = filepath.Join(repoDir, config.DefaultFile)
	}
	config.LoadDotEnv(envFiles...)
	return config.Load(path, explicit, os.Getenv)
}

// repoPath resolves a repository-relative path unless it is absolute.
func repoPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoDir, p)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
