package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"message-relay/internal/config"
	"message-relay/internal/repositories"
)

const connectTimeout = 10 * time.Second

// OpenMessageStore builds the Message Store selected by cfg.StoreDriver and returns its close function.
func OpenMessageStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (repositories.MessageRepository, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		database, err := ConnectPostgres(ctx, cfg.DBDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewPostgresMessageRepo(database, logger), database.Close, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		repo := repositories.NewMongoMessageRepo(client.Database(cfg.MongoDatabase), logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("create mongo indexes: %w", err)
		}
		logger.Infow("mongo connected", "database", cfg.MongoDatabase)
		return repo, func() error { return client.Disconnect(context.Background()) }, nil

	case config.DriverBadger:
		bdb, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger: %w", err)
		}
		logger.Infow("badger opened", "path", cfg.BadgerPath)
		return repositories.NewBadgerMessageRepo(bdb, logger), bdb.Close, nil

	case config.DriverMemory:
		logger.Warn("using in-memory message store, messages are lost on restart")
		return repositories.NewMemoryMessageRepo(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
