package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopper-service/config"
	"shopper-service/internal/api"
	"shopper-service/internal/broker"
	"shopper-service/internal/localstore"
	"shopper-service/internal/recommend"
	"shopper-service/internal/service"
	"shopper-service/internal/store"
	"shopper-service/internal/util"
	"shopper-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shopper service")

	tp, err := util.InitTracer("shopper-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	sessionTTL := time.Duration(cfg.Redis.SessionTTL) * time.Hour
	kv, err := localstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, sessionTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer kv.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBehavior)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	recBuilder := recommend.NewBuilder(db)
	shopperService := service.NewShopperService(
		kv, db, eventPublisher, recBuilder,
		time.Duration(cfg.Business.MergeTimeoutSeconds)*time.Second,
		time.Duration(cfg.Business.SyncTimeoutSeconds)*time.Second,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	viewConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBehavior, cfg.Kafka.ConsumerGroup)
	trendingWorker := worker.NewTrendingWorker(
		viewConsumer, kv, db,
		time.Duration(cfg.Business.TrendingIntervalSeconds)*time.Second,
		cfg.Business.TrendingSize,
	)
	go func() {
		if err := trendingWorker.Start(workerCtx); err != nil {
			log.Printf("Trending worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(shopperService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	trendingWorker.Stop()

	log.Println("Server exited")
}
