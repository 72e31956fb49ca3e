// Command seed writes the bootstrap branch, users, and floor plan
// straight through the document transport. Safe to re-run: existing
// non-empty collections are left alone.
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tabletrack/api/internal/config"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/logger"
	"github.com/tabletrack/api/internal/seed"
	"github.com/tabletrack/api/internal/transport"
)

func main() {
	cfg := config.Load()
	log := logrus.NewEntry(logger.New(cfg.LogLevel, cfg.LogFile))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tr, cleanup, err := openTransport(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open transport")
	}
	defer cleanup()

	users, err := seed.Users()
	if err != nil {
		log.WithError(err).Fatal("build default users")
	}
	branches := seed.Branches()

	writeIfEmpty(ctx, tr, transport.GlobalPath(enum.CollectionBranches), branches, log)
	writeIfEmpty(ctx, tr, transport.GlobalPath(enum.CollectionUsers), users, log)
	for _, b := range branches {
		writeIfEmpty(ctx, tr, transport.BranchPath(b.ID, enum.CollectionTables), seed.Tables(), log)
	}

	log.Info("seed complete")
}

func writeIfEmpty(ctx context.Context, tr transport.Transport, path string, value interface{}, log *logrus.Entry) {
	sub, err := tr.Subscribe(ctx, path)
	if err != nil {
		log.WithError(err).WithField("path", path).Fatal("read document")
	}
	if len(sub.Initial) > 0 && string(sub.Initial) != "null" && string(sub.Initial) != "[]" {
		log.WithField("path", path).Info("already seeded, skipping")
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		log.WithError(err).WithField("path", path).Fatal("encode document")
	}
	if err := tr.Write(ctx, path, raw); err != nil {
		log.WithError(err).WithField("path", path).Fatal("write document")
	}
	log.WithField("path", path).Info("seeded")
}

func openTransport(ctx context.Context, cfg *config.Config, log *logrus.Entry) (transport.Transport, func(), error) {
	switch cfg.Transport {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		return transport.NewMongo(client, cfg.MongoDatabase, log), func() { client.Disconnect(context.Background()) }, nil
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
