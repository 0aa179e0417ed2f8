package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/config"
	"ms-watchmarket/internal/database"
	"ms-watchmarket/internal/database/migrations"
	"ms-watchmarket/internal/kafka"
	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/order"
	"ms-watchmarket/internal/order/db"
	"ms-watchmarket/internal/order/lifecycle"
	"ms-watchmarket/internal/order/order_api"
	rediswrap "ms-watchmarket/internal/order/redis"
	"ms-watchmarket/internal/payment"
	"ms-watchmarket/internal/returns/label"
	"ms-watchmarket/internal/shipping"
	"ms-watchmarket/internal/sse"
	"ms-watchmarket/internal/verification"

	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Service:  "order-service",
		Dir:      cfg.Log.Dir,
		MinLevel: logger.ParseLevel(cfg.Log.Level),
		Color:    cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Order Service initialization")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB.DB, migrations.Options{AutoMigrate: cfg.Database.AutoMigrate}, log)
	if err := runner.Run(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))

	var publisher order.EventPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.OrderTopic}, cfg.Kafka.Partitions, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, log)
		defer producer.Close()
		publisher = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	payments, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	var tokens verification.TokenProvider
	if cfg.Partner.TokenURL != "" {
		tokens = auth.NewTokenSource(auth.M2MConfig{
			TokenURL:     cfg.Partner.TokenURL,
			ClientID:     cfg.Partner.ClientID,
			ClientSecret: cfg.Partner.ClientSecret,
		}, httpClient, auth.NewPartnerTokenCache(redisClient, cfg.Partner.ClientID), log)
	} else {
		log.Warn("AUTH", "M2M_TOKEN_URL not set, partner calls are unauthenticated")
	}

	labelSecret := cfg.Partner.LabelSecret
	if labelSecret == "" {
		labelSecret = cfg.Stripe.WebhookSecret
		log.Warn("CONFIG", "RETURN_LABEL_SECRET not set, deriving label key from the webhook secret")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.DevSecret, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	estimator := shipping.NewEstimator()
	emitter := sse.NewOrderEventEmitter()

	orderService := order.NewOrderService(order.Deps{
		DB:        &db.DB{Bun: bunDB},
		Lock:      rediswrap.NewRedis(redisClient, cfg.Lifecycle.OrderLockTTL, log),
		Publisher: publisher,
		Emitter:   emitter,
		Payments:  payments,
		Partner:   verification.NewClient(cfg.Partner.BaseURL, cfg.Partner.CallbackURL, httpClient, tokens, log),
		Estimator: estimator,
		Labels:    label.NewGenerator(labelSecret),
		Logger:    log,
	}, order.Options{
		Policy: lifecycle.Policy{
			AllowReturnFromDelivered: cfg.Lifecycle.AllowReturnFromDelivered,
			InspectionPeriod:         cfg.Lifecycle.InspectionPeriod(),
		},
		PublicURL:      cfg.Server.PublicURL,
		PartnerTimeout: cfg.Lifecycle.OrderLockTTL / 2,
	})

	handler := order_api.NewHandler(orderService, estimator, cfg.Stripe.WebhookSecret, log)
	router := order_api.NewRouter(handler, order_api.NewSSEHandler(handler, emitter), order_api.RouterConfig{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Verifier:       verifier,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Order Service running on :%s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Order Service shutdown complete")
	}
}
