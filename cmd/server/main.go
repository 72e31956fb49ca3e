package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/tabletrack/api/internal/config"
	"github.com/tabletrack/api/internal/logger"
	"github.com/tabletrack/api/internal/remote"
	"github.com/tabletrack/api/internal/router"
	"github.com/tabletrack/api/internal/seed"
	"github.com/tabletrack/api/internal/service"
	"github.com/tabletrack/api/internal/transport"
	"github.com/tabletrack/api/internal/ws"
)

func main() {
	cfg := config.Load()
	log := logrus.NewEntry(logger.New(cfg.LogLevel, cfg.LogFile))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, cleanup, err := openTransport(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open transport")
	}
	defer cleanup()

	defaultUsers, err := seed.Users()
	if err != nil {
		log.WithError(err).Fatal("build default users")
	}
	registry, err := service.NewRegistry(ctx, tr, log, seed.Branches(), defaultUsers)
	if err != nil {
		log.WithError(err).Fatal("open global collections")
	}

	backend := remote.NewHTTPBackend(cfg.RemoteBaseURL, cfg.RemoteTimeout)
	printer := remote.NewHTTPPrinter(cfg.PrinterTimeout)
	orders := service.New(backend, printer, log)

	hub := ws.NewHub()
	go hub.Run()

	g, ctx := errgroup.WithContext(ctx)

	// Open every known branch up front so its stations get events and its
	// overdue watcher runs even before the first request.
	for _, br := range registry.Branches.Get() {
		b, err := registry.Branch(br.ID)
		if err != nil {
			log.WithError(err).WithField("branch", br.ID).Fatal("open branch")
		}
		ws.BindBranch(hub, b, log)

		watcher := service.NewOverdueWatcher(b, cfg.OverdueThreshold, cfg.OverdueInterval,
			ws.NotifyOverdue(hub, log), log)
		g.Go(func() error {
			watcher.Run(ctx)
			return nil
		})
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			Config:   cfg,
			Registry: registry,
			Orders:   orders,
			Hub:      hub,
			Log:      log,
		}),
	}

	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// openTransport selects the document-store backend from TRANSPORT.
func openTransport(ctx context.Context, cfg *config.Config, log *logrus.Entry) (transport.Transport, func(), error) {
	switch cfg.Transport {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, nil, err
		}
		tr := transport.NewMongo(client, cfg.MongoDatabase, log)
		return tr, func() { client.Disconnect(context.Background()) }, nil

	case "memory":
		return transport.NewMemory(), func() {}, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		tr, err := transport.NewPostgres(ctx, pool, log)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return tr, pool.Close, nil
	}
}
