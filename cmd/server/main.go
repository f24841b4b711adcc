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

	"github.com/zeineb-manai/depot-vente/config"
	"github.com/zeineb-manai/depot-vente/internal/api"
	"github.com/zeineb-manai/depot-vente/internal/auth"
	"github.com/zeineb-manai/depot-vente/internal/broker"
	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/redisclient"
	"github.com/zeineb-manai/depot-vente/internal/refresh"
	"github.com/zeineb-manai/depot-vente/internal/service"
	"github.com/zeineb-manai/depot-vente/internal/store"
	"github.com/zeineb-manai/depot-vente/internal/util"
	"github.com/zeineb-manai/depot-vente/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting depot-vente service")

	tp, err := util.InitTracer("depot-vente", cfg.Observ.JaegerEndpoint)
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

	ledger, err := store.NewStore(cfg.Ledger.Driver, cfg.Ledger.DSN)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %v", err)
	}
	defer ledger.Close()
	log.Println("Ledger database connected")

	cat, err := catalogue.Open(cfg.Catalogue.Path, ledger.ValidateUserID)
	if err != nil {
		log.Fatalf("Failed to open catalogue: %v", err)
	}
	log.Printf("Catalogue opened: %s", cfg.Catalogue.Path)

	var cache *redisclient.Client
	if rc, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		// The cache is advisory; every read path falls back to the
		// catalogue file.
		log.Printf("Redis unavailable, continuing without cache: %v", err)
	} else {
		cache = rc
		defer cache.Close()
		log.Println("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	sales := service.NewSaleService(cat, ledger, cache, eventPublisher, cfg.Business.CommissionRate)

	verifier, err := auth.NewVerifier(cfg.Auth.OwnerSecretHash, cfg.Auth.OwnerSecret, cfg.Auth.TokenSecret)
	if err != nil {
		log.Fatalf("Failed to initialize owner verifier: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	guard := refresh.NewGuard()
	refreshWorker := refresh.NewWorker(cat, guard, cache,
		time.Duration(cfg.Business.RefreshIntervalSeconds)*time.Second)
	go refreshWorker.Run(workerCtx)

	auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewAuditWorker(auditConsumer, sales)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil {
			log.Printf("Audit worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(sales, cat, ledger, refreshWorker, cache, verifier)
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
	auditWorker.Stop()

	log.Println("Server exited")
}
