package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peer-review-service/internal/config"
	"peer-review-service/internal/database"
	"peer-review-service/internal/domain"
	"peer-review-service/internal/handler"
	"peer-review-service/internal/repository"
	"peer-review-service/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	// Логгер
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Конфиг
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warnf(".env not found: %v", err)
	}

	// База данных (database/sql поверх pgx)
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	// Репозитории
	stepRepo := repository.NewStepRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	// Consistency Manager поверх явной транзакционной области
	txRunner := database.NewTxRunner(db)
	manager := usecase.NewReviewManager(txRunner, stepRepo, summaryRepo, reviewRepo, logger)

	// Матчеры: реестр собирается один раз при старте
	policy := usecase.NewLeastReviewedPolicy(summaryRepo, stepRepo)
	peerMatcher := usecase.NewPeerMatcher(manager, policy, stepRepo, reviewRepo, submissionRepo)

	registry := usecase.NewMatcherRegistry()
	if err := registry.Register("peer", peerMatcher); err != nil {
		logger.Fatalf("Matcher registration failed: %v", err)
	}

	facade, err := usecase.NewReviewFacade(registry, cfg.DefaultMatcher, nil, stepRepo, summaryRepo, submissionRepo)
	if err != nil {
		logger.Fatalf("Facade configuration invalid: %v", err)
	}

	// Expiry Sweeper по таймеру
	sweeper := usecase.NewExpirySweeper(manager, stepRepo, logger)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	go runSweeper(sweepCtx, sweeper, summaryRepo, cfg, logger)

	// Echo + Handlers
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(handler.LoggingMiddleware(logger))

	apiHandler := handler.NewAPIHandler(facade, submissionRepo, logger)
	handler.RegisterRoutes(e, apiHandler)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Запуск сервера
	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			logger.Infof("Server stopped: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatalf("Shutdown failed: %v", err)
	}

	logger.Info("Server exited")
}

// runSweeper периодически гасит протухшие назначения во всех юнитах с
// активным процессом ревью.
func runSweeper(ctx context.Context, sweeper *usecase.ExpirySweeper, summaries domain.SummaryRepository, cfg config.Config, logger *logrus.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			units, err := summaries.ListUnits(ctx)
			if err != nil {
				logger.WithError(err).Error("Sweep skipped: failed to list units")
				continue
			}

			result := sweeper.ExpireStaleAll(ctx, cfg.ReviewWindow, units)
			logger.WithFields(logrus.Fields{
				"candidates": result.Candidates,
				"expired":    result.Expired,
				"skipped":    result.Skipped,
				"failed":     result.Failed,
			}).Info("Expiry sweep finished")
		}
	}
}
