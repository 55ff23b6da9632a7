package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasks-api/internal/config"
	"github.com/BuzzLyutic/tasks-api/internal/handler"
	"github.com/BuzzLyutic/tasks-api/internal/server"
	"github.com/BuzzLyutic/tasks-api/internal/service"
	"github.com/BuzzLyutic/tasks-api/internal/worker"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Подключаем хранилище
	store, closeStore, err := server.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open the store", zap.Error(err)) // Fatal потому что дальнейшая работа теряет смысл
	}
	defer closeStore()

	taskService := service.NewTaskService(store)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	if cfg.StatsInterval > 0 { // Периодический отчет по задачам в лог
		reporter := worker.NewReporter(taskService, logger, cfg.StatsInterval)
		reporter.Start(context.Background())
		defer reporter.Stop()
	}

	srv := http.Server{ // Создаем сервер
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(taskHandler, logger, server.RouterOptions{
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		return
	}
	logger.Info("Server stopped successfully!")
}
