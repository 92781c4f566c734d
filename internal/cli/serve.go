package cli

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"storyscape/api/internal/app"
	"storyscape/api/internal/cache"
	"storyscape/api/internal/config"
	"storyscape/api/internal/export"
	"storyscape/api/internal/logging"
	"storyscape/api/internal/search"
	"storyscape/api/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.cfg, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	logger := logging.FromContext(ctx)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
			return err
		}
	}

	opts := []app.Option{app.WithLogger(logger)}

	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Warn("session cache disabled", "err", err)
		} else {
			defer redisCache.Close()
			opts = append(opts, app.WithCache(redisCache))
			logger.Info("session cache enabled", "ttl", cfg.CacheTTL)
		}
	}

	var primary search.Backend
	if cfg.SearchEnabled() {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
		primary = meili
	}
	searchService := search.NewService(primary, search.NewPgFTS(db), logger)
	searchService.ReindexAll(ctx)
	opts = append(opts, app.WithSearch(searchService))

	var archive export.Archiver
	if cfg.ArchiveEnabled() {
		minioArchive, err := export.NewMinioArchiver(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Warn("report archive disabled", "err", err)
		} else {
			archive = minioArchive
			logger.Info("report archive enabled", "bucket", cfg.MinioBucket)
		}
	}
	opts = append(opts, app.WithExporter(export.NewService(archive, logger)))

	service := app.New(store.NewPostgresStore(db), opts...)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("StoryScape API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
		return err
	}
	return nil
}
