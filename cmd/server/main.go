package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/malaria-api/internal/config"
	"github.com/Brownie44l1/malaria-api/internal/handlers"
	"github.com/Brownie44l1/malaria-api/internal/inference"
	"github.com/Brownie44l1/malaria-api/internal/logging"
	"github.com/Brownie44l1/malaria-api/internal/model"
)

func main() {
	cfg := config.Load()
	logger := logging.Init(cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))

	// Load the model once before serving. A failure leaves the service
	// running in degraded mode; the loader has already logged why.
	loader := &model.Loader{
		Strategies: model.DefaultStrategies(),
		SmokeTest:  cfg.Model.SmokeTest,
		SmokeSeed:  cfg.Model.SmokeSeed,
		Logger:     logger,
	}
	state, _ := loader.Load(model.Artifacts{
		ModelPath:              cfg.Model.ModelPath,
		OpenCVModelPath:        cfg.Model.OpenCVModelPath,
		BackbonePath:           cfg.Model.BackbonePath,
		HeadWeightsPath:        cfg.Model.HeadWeightsPath,
		PretrainedBackbonePath: cfg.Model.PretrainedBackbonePath,
		Shape:                  model.DefaultInputShape,
		Runtime: model.Runtime{
			LibPath:        cfg.Model.RuntimeLibPath,
			IntraOpThreads: cfg.Model.IntraOpThreads,
		},
	})
	defer func() {
		if err := state.Close(); err != nil {
			logger.Error("failed to release model", "error", err)
		}
		if err := model.ShutdownRuntime(); err != nil {
			logger.Error("failed to shut down onnx runtime", "error", err)
		}
	}()

	pipeline := inference.New(state, logger)
	handler := handlers.NewHandler(pipeline, logger, cfg.Server.MaxUploadBytes)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Server.Port,
			"model_loaded", state.Loaded(),
			"endpoints", []string{"GET /", "GET /health", "POST /predict", "POST /predict/tensor"})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}
