package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-optical-measure/internal/config"
	"go-optical-measure/internal/container"
	"go-optical-measure/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.WithError(err).Fatal("Failed to load .env")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if err := logger.Configure(cfg.Log); err != nil {
		logger.WithError(err).Fatal("Failed to configure logging")
	}
	gin.SetMode(gin.ReleaseMode)

	c, err := container.NewContainer(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":           cfg.ServerAddress(),
			"timeout":           cfg.RequestTimeout,
			"landmark_strategy": cfg.LandmarkStrategy,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	c.Close()

	logger.Info("Server exited")
}
