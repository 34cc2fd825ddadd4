package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-order-service/config"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	catalogRepository "github.com/fekuna/omnipos-order-service/internal/catalog/repository"
	"github.com/fekuna/omnipos-order-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-order-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-order-service/internal/pkg/clock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/database"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	planHandler "github.com/fekuna/omnipos-order-service/internal/plan/handler"
	planRepository "github.com/fekuna/omnipos-order-service/internal/plan/repository"
	planUseCase "github.com/fekuna/omnipos-order-service/internal/plan/usecase"
	promotionHandler "github.com/fekuna/omnipos-order-service/internal/promotion/handler"
	promotionRepository "github.com/fekuna/omnipos-order-service/internal/promotion/repository"
	promotionUseCase "github.com/fekuna/omnipos-order-service/internal/promotion/usecase"
	tablegroupHandler "github.com/fekuna/omnipos-order-service/internal/tablegroup/handler"
	tablegroupRepository "github.com/fekuna/omnipos-order-service/internal/tablegroup/repository"
	tablegroupUseCase "github.com/fekuna/omnipos-order-service/internal/tablegroup/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "dev",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	db, err := database.NewPostgres(&database.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("connected to postgres", zap.String("host", cfg.Postgres.Host))

	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	producer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer producer.Close()

	clk := clock.New()

	catalogRepo := catalogRepository.NewPGRepository(db)
	promotionRepo := promotionRepository.NewPGRepository(db)
	tablegroupRepo := tablegroupRepository.NewPGRepository(db)
	planRepo := planRepository.NewPGRepository(db)

	promotionUC := promotionUseCase.NewPromotionUseCase(promotionRepo, catalogRepo, redisClient, clk, appLogger)
	planUC := planUseCase.NewPlanUseCase(planRepo, redisClient, clk, appLogger)
	tablegroupUC := tablegroupUseCase.NewTableGroupUseCase(
		tablegroupRepo, catalogRepo, promotionUC, planUC, producer, redisClient, clk, appLogger,
	)

	promoHandler := promotionHandler.NewHandler(promotionUC, appLogger)
	groupHandler := tablegroupHandler.NewHandler(tablegroupUC, appLogger)
	usageHandler := planHandler.NewHandler(planUC, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.RestaurantContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/promotions", promoHandler.Map)
		r.Route("/table-groups", groupHandler.Map)
		r.Route("/plan", usageHandler.Map)
	})

	r.Route("/internal/plan", func(r chi.Router) {
		r.Use(auth.RequireInternalToken(cfg.Server.InternalToken))
		usageHandler.MapInternal(r)
	})

	server := &http.Server{
		Addr:         cfg.Server.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("http server listening", zap.String("addr", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
