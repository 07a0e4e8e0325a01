// Command nutridash is the operator CLI for the nutrition dashboard. It
// talks to the same store and change stream as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nutridash/internal/app"
	"nutridash/internal/platform/config"
	"nutridash/internal/platform/logger"
)

var (
	backendFlag    string
	collectionFlag string
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:           "nutridash",
	Short:         "Operate the child nutrition dashboard store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "store backend (memory, postgres, redis); overrides STORE_BACKEND")
	rootCmd.PersistentFlags().StringVar(&collectionFlag, "collection", "", "collection name; overrides COLLECTION")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(ingestCmd, summaryCmd, topCmd, exportCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() (config.Server, error) {
	if backendFlag != "" {
		os.Setenv("STORE_BACKEND", backendFlag)
	}
	if collectionFlag != "" {
		os.Setenv("COLLECTION", collectionFlag)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, err
	}
	cfg.Log.Format = "text"
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// withDeps builds the store and publisher, runs fn, and closes everything.
// The change publisher runs for the duration of fn and flushes afterwards.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, d *app.Deps) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)

	ctx := cmd.Context()
	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	bgCtx, cancel := context.WithCancel(ctx)
	bgDone := make(chan error, 1)
	go func() { bgDone <- deps.RunBackground(bgCtx) }()

	runErr := fn(ctx, deps)
	cancel()
	if err := <-bgDone; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
