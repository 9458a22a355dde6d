package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/rugstore/gateway"
	"github.com/example/rugstore/pkg/address"
	"github.com/example/rugstore/pkg/auth"
	"github.com/example/rugstore/pkg/catalog"
	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/discovery"
	"github.com/example/rugstore/pkg/events"
	"github.com/example/rugstore/pkg/grpc"
	"github.com/example/rugstore/pkg/logging"
	"github.com/example/rugstore/pkg/metrics"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/repository"
	"github.com/example/rugstore/pkg/review"
	"github.com/example/rugstore/pkg/session"
	"github.com/example/rugstore/pkg/shop"
	"github.com/example/rugstore/pkg/telemetry"
)

// backends are the stores the storefront runs on.
type backends struct {
	products    catalog.Repository
	cache       catalog.Cache
	users       address.Repository
	orders      order.Repository
	intents     order.IntentStore
	reviews     review.Repository
	auditor     order.Auditor
	audit       gateway.AuditTrail
	fulfillment gateway.StatusUpdater
	closers     []func(context.Context) error
}

func (b *backends) close(ctx context.Context, logger *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Warn("Close failed", zap.Error(err))
		}
	}
}

func memoryBackends(logger *zap.Logger) *backends {
	orders := repository.NewMemoryOrders()
	audit := repository.NewMemoryAudit()
	return &backends{
		products:    repository.NewMemoryProducts(),
		users:       repository.NewMemoryUsers(),
		orders:      orders,
		intents:     repository.NewMemoryIntents(),
		reviews:     repository.NewMemoryReviews(),
		auditor:     audit,
		audit:       audit,
		fulfillment: order.NewFulfillment(orders, audit, logger),
	}
}

func databaseBackends(cfg *config.Config, logger *zap.Logger, sd *discovery.ServiceDiscovery) (*backends, error) {
	b := &backends{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongo, err := repository.NewMongoRepository(&cfg.MongoDB, cfg.Server.Name)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, mongo.Close)
	if err := mongo.Ping(ctx); err != nil {
		b.close(ctx, logger)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	if err := mongo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to create MongoDB indexes", zap.Error(err))
	}
	b.products = mongo.Products()
	b.users = mongo.Users()
	b.auditor = mongo
	b.audit = mongo

	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		b.close(ctx, logger)
		return nil, err
	}
	b.orders = repository.NewOrderStore(db)
	b.reviews = repository.NewReviewStore(db)

	redis := repository.NewRedisRepository(&cfg.Redis)
	b.closers = append(b.closers, func(context.Context) error { return redis.Close() })
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}
	b.cache = redis
	b.intents = redis.Intents()

	clients := grpc.NewClientManager(&cfg.GRPC, logger, sd)
	if err := clients.Connect(); err != nil {
		b.close(ctx, logger)
		return nil, err
	}
	b.closers = append(b.closers, func(context.Context) error { return clients.Close() })
	b.fulfillment = clients.Fulfillment()

	return b, nil
}

func paymentGateway(cfg *config.Config, logger *zap.Logger) (payment.Gateway, error) {
	if cfg.Payment.Mode == "http" {
		return payment.NewHTTPGateway(&cfg.Payment, logger)
	}
	logger.Warn("Using the fake payment gateway")
	return payment.NewFakeGateway(cfg.Payment.KeySecret), nil
}

func main() {
	// Local development keeps secrets in .env
	_ = godotenv.Load()

	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log, cfg.Server.Name)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("storage", cfg.Server.Storage),
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host))

	tracer, err := telemetry.Setup(cfg.Telemetry, cfg.Server.Name, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	rules, err := cfg.Pricing.Rules()
	if err != nil {
		logger.Fatal("Invalid pricing rules", zap.Error(err))
	}

	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		}
	}

	var b *backends
	if cfg.Server.Storage == "memory" {
		b = memoryBackends(logger)
	} else {
		b, err = databaseBackends(cfg, logger, sd)
		if err != nil {
			logger.Fatal("Failed to open stores", zap.Error(err))
		}
	}

	gw, err := paymentGateway(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create payment gateway", zap.Error(err))
	}

	authn, err := auth.New(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to create authenticator", zap.Error(err))
	}

	m := metrics.New()
	opts := order.Options{Auditor: b.auditor, Metrics: m}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS, cfg.Server.Name, logger)
		if err != nil {
			logger.Warn("Failed to connect to NATS, orders will not be announced", zap.Error(err))
		} else {
			defer nc.Drain()
			opts.Publisher = events.NewPublisher(nc, cfg.NATS.OrdersPlaced)
		}
	}

	system := actor.NewActorSystem()
	sessions := session.NewManager(system, rules, cfg.Session, m, logger)

	cat := catalog.New(b.products, b.cache, logger)
	book := address.NewBook(b.users, logger)
	assembler := order.NewAssembler(b.products, rules, b.orders, b.intents, gw, opts, logger)

	api := gateway.NewGateway(cfg, gateway.Services{
		Shop:        shop.NewService(sessions, cat, book, assembler, logger),
		Catalog:     cat,
		Book:        book,
		Orders:      assembler,
		Reviews:     review.NewGate(b.reviews, b.orders, cfg.Reviews.MinTextLength, m, logger),
		Fulfillment: b.fulfillment,
		Audit:       b.audit,
		Auth:        authn,
		Metrics:     m,
	}, logger)

	apiErr := make(chan error, 1)
	go func() {
		if err := api.Start(); err != nil {
			apiErr <- err
		}
	}()

	logger.Info("Storefront started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-apiErr:
		logger.Error("Gateway error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	system.Shutdown()
	b.close(ctx, logger)
	if sd != nil {
		sd.Close()
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.Warn("Tracer shutdown failed", zap.Error(err))
	}

	logger.Info("Storefront stopped")
}
