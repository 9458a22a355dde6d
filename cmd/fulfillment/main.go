package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/discovery"
	"github.com/example/rugstore/pkg/events"
	"github.com/example/rugstore/pkg/grpc"
	"github.com/example/rugstore/pkg/logging"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config/fulfillment-config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log, cfg.Server.Name)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting fulfillment service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	ctx := context.Background()

	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}

	mongo, err := repository.NewMongoRepository(&cfg.MongoDB, cfg.Server.Name)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongo.Close(ctx)
	if err := mongo.Ping(ctx); err != nil {
		logger.Warn("MongoDB connection failed, audit entries will be lost", zap.Error(err))
	} else {
		logger.Info("MongoDB connected successfully")
	}

	fulfillment := order.NewFulfillment(repository.NewOrderStore(db), mongo, logger)
	server := grpc.NewOrderServer(fulfillment, logger)

	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS, cfg.Server.Name, logger)
		if err != nil {
			logger.Warn("Failed to connect to NATS, placed orders will not be tracked", zap.Error(err))
		} else {
			defer nc.Drain()
			if _, err := events.NewSubscriber(nc, cfg.NATS.OrdersPlaced, fulfillment, logger).Start(); err != nil {
				logger.Fatal("Failed to subscribe to order events", zap.Error(err))
			}
		}
	}

	var (
		sd       *discovery.ServiceDiscovery
		instance = &discovery.ServiceInstance{
			Name: cfg.Server.Name,
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		}
	)
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Fatal("Failed to connect to etcd", zap.Error(err))
		}
		defer sd.Close()

		if err := sd.Register(ctx, instance); err != nil {
			logger.Fatal("Failed to register service", zap.Error(err))
		}
		logger.Info("Service registered in etcd",
			zap.String("name", instance.Name),
			zap.String("address", instance.Addr()))
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.Start(addr); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	if sd != nil {
		deregisterCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := sd.Deregister(deregisterCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		cancel()
	}
	server.Stop()

	logger.Info("Service stopped")
}
