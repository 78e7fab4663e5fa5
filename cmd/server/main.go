package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examgrade/internal/api"
	"examgrade/internal/app/service"
	"examgrade/internal/common/security"
	"examgrade/internal/domain/repository"
	"examgrade/internal/platform/cache"
	"examgrade/internal/platform/config"
	"examgrade/internal/platform/database"
	"examgrade/internal/platform/logger"
	"examgrade/internal/platform/runner"

	"go.uber.org/zap"
)

func main() {
	config.Load()
	security.InitJWT()

	log := logger.New()
	defer log.Sync()

	database.Connect()
	defer database.Close()
	log.Info("database connected")

	cache.ConnectRedis()
	defer cache.CloseRedis()
	log.Info("redis connected")

	// Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	testRepo := repository.NewPgTestRepository(database.DB)
	studentRepo := repository.NewPgStudentRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)

	// Platform clients
	runnerClient := runner.NewHTTPClient(
		config.AppConfig.RunnerURL,
		time.Duration(config.AppConfig.RunnerTimeoutSeconds)*time.Second,
		log,
	)
	linkCache := cache.NewLinkCache(cache.RDB, time.Duration(config.AppConfig.LinkCacheTTLSeconds)*time.Second)
	txRunner := database.NewTxRunner(database.DB)

	// Services
	authService := service.NewAuthService(userRepo)
	scoreService := service.NewScoreService()
	testService := service.NewTestService(testRepo, studentRepo, submissionRepo, scoreService, linkCache, txRunner, log)
	submissionService := service.NewSubmissionService(submissionRepo, testRepo, runnerClient, txRunner, log)

	router := api.NewRouter(authService, testService, submissionService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server starting", zap.String("port", config.AppConfig.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-stop

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown failed", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}
