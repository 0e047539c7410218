package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/config"
	"github.com/jmylchreest/huematch/internal/recommend"
	"github.com/jmylchreest/huematch/internal/server"
	"github.com/jmylchreest/huematch/internal/version"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload page and JSON API",
	Long: `Start the HTTP server.

Routes:
  GET  /             upload page
  GET  /healthz      liveness and catalog size
  GET  /api/catalog  paginated catalog (?page=1&per_page=12)
  POST /api/match    multipart upload (image, top, colours, quality, algorithm, metric)

Settings are read from HUEMATCH_* environment variables and an optional .env
file. Flags set on the command line take precedence.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	def := config.Default()
	serveCmd.Flags().String(flagAddr, def.Addr, "listen address")
	serveCmd.Flags().Int64(flagMaxUploadBytes, def.MaxUploadBytes, "largest accepted upload in bytes")
	serveCmd.Flags().Bool(flagWatch, false, "reload the catalog when its file changes")
	addCatalogFlags(serveCmd.Flags())
	addExtractionFlags(serveCmd.Flags())
	addMatchFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := catalog.NewStore(cfg.CatalogPath, catalogLoadOptions(cmd, cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	snapshot := store.Snapshot()
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "colours", snapshot.Len(), "in_stock", snapshot.InStock())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	svc := recommend.New(cfg.RecommendOptions(), logger)
	srv := server.New(server.Options{
		Addr:           cfg.Addr,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, store, svc, logger)

	logger.Info("huematch starting", "version", version.Short(), "algorithm", cfg.Algorithm, "metric", cfg.Metric)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
