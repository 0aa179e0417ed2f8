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

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/config"
	"ms-watchmarket/internal/database"
	"ms-watchmarket/internal/kafka"
	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/notification"
	"ms-watchmarket/internal/order/db"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Service:  "notification-service",
		Dir:      cfg.Log.Dir,
		MinLevel: logger.ParseLevel(cfg.Log.Level),
		Color:    cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	mailer := notification.NewEmailClient(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.From,
		&http.Client{Timeout: 10 * time.Second}, log)
	notifier := notification.NewOrderNotifier(&db.DB{Bun: bunDB}, mailer, log)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go func() {
			log.Info("KAFKA", fmt.Sprintf("Consuming %s as %s", cfg.Kafka.OrderTopic, cfg.Kafka.GroupID))
			if err := consumer.Start(ctx, notifier.HandleOrderEvent); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
			}
		}()
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.DevSecret, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogAPI(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	notification.NewHandler(mailer, cfg.Email.SupportAddress, log).RegisterRoutes(r.Group("/api"), verifier)

	server := &http.Server{
		Addr:         ":" + cfg.Server.NotificationPort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Notification Service running on :%s", cfg.Server.NotificationPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
}
