// Command document runs the workspace and document API without the login
// routes. Callers bring access tokens minted by the main service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/app"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/config"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if port := os.Getenv("DOC_SERVICE_PORT"); port != "" {
		cfg.Server.Port = port
	}
	logger.InitWithFormat(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	log := logger.L().With(zap.String("service", "document"))

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close(context.Background())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.Router(app.RouterOptions{}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("document service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
