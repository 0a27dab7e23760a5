package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dealflow-ingest/api"
	"dealflow-ingest/metrics"
	"dealflow-ingest/schema"
	"dealflow-ingest/services"
	"dealflow-ingest/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		migrate  bool
		dryRun   bool
		pipeOpts pipelineOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var store storage.Store
			if !dryRun {
				s, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer s.Close()
				if migrate {
					if err := s.Migrate(ctx); err != nil {
						return err
					}
				}
				store = s
			}

			pipelines := make(map[schema.ID]*services.Pipeline)
			for _, def := range schema.All() {
				p, err := a.newPipeline(ctx, def, pipeOpts)
				if err != nil {
					return err
				}
				pipelines[def.ID] = p
			}

			srv := api.NewServer(pipelines, store, metrics.NewRegistry(), api.Options{
				Upload: services.UploadOptions{
					BatchSize:        a.cfg.UpsertBatchSize,
					IgnoreDuplicates: a.cfg.IgnoreDuplicates,
				},
				MaxConcurrentUploads: a.cfg.MaxConcurrentUploads,
				MaxUploadBytes:       a.cfg.MaxUploadBytes,
			}, a.logger)

			return a.listen(ctx, &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create tables before serving")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Serve without a store; every upload is a dry run")
	cmd.Flags().StringVar(&pipeOpts.profilePath, "mapping", "", "YAML mapping profile applied to every upload")
	cmd.Flags().BoolVar(&pipeOpts.noAssist, "no-assist", false, "Skip the Gemini resolver")
	return cmd
}

// listen runs server until ctx is cancelled, then drains in-flight requests.
func (a *app) listen(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("[serve] Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("[serve] Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
