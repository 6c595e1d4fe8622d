package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-store/assignments"
	"campus-store/collections"
	"campus-store/config"
	"campus-store/core"
	"campus-store/handlers"
	"campus-store/handlers/realtime"
	"campus-store/stores"
	"campus-store/stores/mirror"
	"campus-store/uploads"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "campus-store",
		Short:         "Collection and upload storage for the campus learning platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := config.NewFromFlags(cmd.Flags())

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.SetFlagsFromEnv(cmd.Flags()); err != nil {
			return err
		}
		return cfg.Validate()
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cfg); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}
	return cmd
}

func setupLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format: %q", cfg.LogFormat)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	cache, err := mirror.NewCache(mirror.CacheConfig{Size: cfg.MirrorSizeMB, TTL: cfg.MirrorTTL})
	if err != nil {
		return fmt.Errorf("creating local mirror: %w", err)
	}

	store, err := stores.GetStore(ctx, cfg, cache)
	if err != nil {
		return err
	}
	schemas, err := cfg.Schemas()
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	defer hub.Close()

	repo := collections.NewRepository(store, collections.Options{
		Schemas:         schemas,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
		Notifier:        hub,
	})
	gateway := uploads.NewGateway(store, uploads.Options{
		MaxSize:       cfg.MaxUploadSize,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	router := handlers.NewRouter(handlers.Deps{
		Store:       store,
		Collections: repo,
		Uploads:     gateway,
		Assignments: assignments.NewService(repo, gateway, cache),
		NoteIDs:     core.NewIDGenerator("course_note"),
		Realtime:    hub.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("address", cfg.Address).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
