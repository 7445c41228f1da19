// Command syncindexes creates the declared indexes of every model and exits
// non-zero when any collection could not be synchronized.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gogotex/mongomodel/internal/app"
	"github.com/gogotex/mongomodel/internal/config"
	"github.com/gogotex/mongomodel/internal/indexsync"
	"github.com/gogotex/mongomodel/pkg/logger"
	"github.com/spf13/cobra"
)

var errSyncFailed = errors.New("index sync failed")

func newRootCmd() *cobra.Command {
	var (
		timeout time.Duration
		output  string
		list    bool
	)
	cmd := &cobra.Command{
		Use:   "syncindexes",
		Short: "Create the declared indexes of every model",
		Long: `syncindexes connects to MONGODB_URI and creates the indexes each model
declares. Existing identical indexes are left alone. Conflicting definitions
are reported and never dropped. When REDIS_HOST or INDEX_SYNC_LOCK_DIR is set,
collections being synchronized by another process are skipped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level)
			logger.SetOutput(os.Stderr, cfg.Log.Format)
			if cfg.MongoDB.URI == "" {
				return errors.New("MONGODB_URI is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			a := app.New(ctx, cfg)
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					logger.Warnf("closing dependencies: %v", err)
				}
			}()

			results, syncErr := indexsync.Report(ctx, a.Locker, a.Targets()...)
			var names map[string][]string
			if list {
				names = listIndexes(ctx, a.Targets())
			}
			if err := render(cmd.OutOrStdout(), output, results, names); err != nil {
				return err
			}
			if syncErr != nil {
				return errSyncFailed
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "report format: table, json or yaml")
	cmd.Flags().BoolVar(&list, "list", false, "also list the indexes present afterwards")
	return cmd
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errSyncFailed) {
			logger.Errorf("%v", err)
		}
		os.Exit(1)
	}
}
