package cli

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/config"
	"mcq-queue-service/internal/infra/events"
	"mcq-queue-service/internal/infra/feed"
	"mcq-queue-service/internal/infra/file"
	"mcq-queue-service/internal/infra/memory"
	"mcq-queue-service/internal/infra/mongo"
	"mcq-queue-service/internal/infra/objectstore"
	"mcq-queue-service/internal/infra/postgres"
	infraredis "mcq-queue-service/internal/infra/redis"
	"mcq-queue-service/internal/infra/telegram"
	"mcq-queue-service/internal/logging"
)

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// buildBackend opens the configured document backend.
func buildBackend(ctx context.Context, cfg config.Config, logger *zap.Logger, cl *closers) (app.DocumentBackend, error) {
	sc := cfg.Store
	var backend app.DocumentBackend
	switch sc.Driver {
	case "memory":
		backend = memory.NewDocumentStore()
	case "file":
		backend = file.NewDocumentStore(sc.Path)
	case "redis":
		client := newRedisClient(sc.Redis)
		cl.add(func() { _ = client.Close() })
		backend = infraredis.NewDocumentStore(client, sc.Redis.Key)
	case "postgres":
		if sc.Postgres.Migrate {
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return nil, err
			}
		}
		pool, err := pgxpool.Connect(ctx, sc.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cl.add(pool.Close)
		backend = postgres.NewDocumentStore(pool, sc.Postgres.Document)
	case "mongo":
		client, err := mongo.Connect(ctx, sc.Mongo.URI, 3, 2*time.Second)
		if err != nil {
			return nil, err
		}
		cl.add(func() { _ = client.Disconnect(context.Background()) })
		backend = mongo.NewDocumentStore(client.Database(sc.Mongo.Database), sc.Mongo.Collection, sc.Mongo.Document)
	case "s3":
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  sc.S3.Endpoint,
			AccessKey: sc.S3.AccessKey,
			SecretKey: sc.S3.SecretKey,
			Bucket:    sc.S3.Bucket,
			Object:    sc.S3.Object,
			Region:    sc.S3.Region,
			Secure:    sc.S3.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		backend = store
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}

	if sc.RedisCache {
		client := newRedisClient(sc.Redis)
		cl.add(func() { _ = client.Close() })
		ttl := config.TTLDuration(sc.Redis.TTL, 10*time.Minute)
		backend = infraredis.NewCachedBackend(client, backend, sc.Redis.Key, ttl, logger.Named("redis-cache"))
	}
	return backend, nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger, cl *closers) (*app.Store, error) {
	backend, err := buildBackend(ctx, cfg, logger, cl)
	if err != nil {
		return nil, err
	}
	opts := []app.StoreOption{app.WithStoreLogger(logger.Named("store"))}
	if cfg.Store.Cache {
		opts = append(opts, app.WithWriteThroughCache())
	}
	return app.NewStore(backend, opts...), nil
}

// delivery bundles the configured port with what the front ends need from it.
type delivery struct {
	port      app.DeliveryPort
	announcer app.Announcer
	hub       *feed.Hub
}

func buildDelivery(cfg config.Config, bot *tgbotapi.BotAPI, logger *zap.Logger) (delivery, error) {
	switch cfg.Delivery.Driver {
	case "telegram":
		if bot == nil {
			return delivery{}, fmt.Errorf("telegram delivery needs a bot token")
		}
		sender := telegram.NewSender(bot, cfg.Delivery.AnnounceBefore, logger.Named("telegram"))
		return delivery{port: sender, announcer: sender}, nil
	case "feed":
		hub := feed.NewHub()
		return delivery{port: hub, announcer: hub, hub: hub}, nil
	case "log":
		outbox := memory.NewOutbox(logger.Named("outbox"))
		return delivery{port: outbox, announcer: outbox}, nil
	default:
		return delivery{}, fmt.Errorf("unknown delivery driver %q", cfg.Delivery.Driver)
	}
}

// buildEvents returns the delivery-event listener and, for the in-process driver, a consumer
// that writes every event to the audit log.
func buildEvents(cfg config.Config, logger *zap.Logger, cl *closers) (app.DeliveryListener, func(context.Context) error, error) {
	var publisher *events.Publisher
	var consume func(context.Context) error
	switch cfg.Events.Driver {
	case "", "none":
		return nil, nil, nil
	case "gochannel":
		pubsub := events.NewGoChannel(logger)
		publisher = events.NewPublisher(pubsub, cfg.Events.Topic, logger.Named("events"))
		audit := logger.Named("audit")
		consume = func(ctx context.Context) error {
			return events.Consume(ctx, pubsub, publisher.Topic(), audit, events.AuditLog(audit))
		}
	case "kafka":
		var err error
		publisher, err = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger.Named("events"))
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
	cl.add(func() { _ = publisher.Close() })
	return publisher, consume, nil
}
