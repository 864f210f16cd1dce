package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carbontracker/internal/assist"
	"carbontracker/internal/auth"
	"carbontracker/internal/backend"
	"carbontracker/internal/cli"
	"carbontracker/internal/config"
	apphttp "carbontracker/internal/http"
	applog "carbontracker/internal/log"
	"carbontracker/internal/task"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWeb)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	var keys auth.KeySet
	if cfg.AuthJWKSURL != "" {
		jwks := auth.NewJWKS(cfg.AuthJWKSURL, &http.Client{Timeout: cfg.RequestTimeout})
		if err := jwks.Refresh(ctx); err != nil {
			// retried on the first token with an unknown key id
			logger.Warn("Failed to load token key set", "error", err, "url", cfg.AuthJWKSURL)
		}
		keys = jwks
	} else {
		logger.Warn("Verifying session tokens with AUTH_HMAC_SECRET, use AUTH_JWKS_URL in production")
		keys = auth.HMACKeySet(cfg.AuthHMACSecret)
	}
	verifier := auth.NewVerifier(keys, cfg.AuthIssuer, cfg.AuthAudience)

	var assistant *assist.Assistant
	if cfg.GeminiAPIKey != "" {
		caller := assist.NewCaller(cfg.GeminiEndpoint, cfg.GeminiModel, cfg.GeminiAPIKey,
			assist.WithDoer(&http.Client{Timeout: cfg.RequestTimeout}))
		assistant = assist.NewAssistant(caller)
		logger.Info("Assistant enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("Assistant disabled - no GEMINI_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Store:         result.Store,
		Verifier:      verifier,
		Assistant:     assistant,
		Tasks:         task.NewTracker(),
		Logger:        logger,
		Ready:         result.Ready,
		LoadTimeout:   cfg.RequestTimeout,
		AssistTimeout: cfg.RequestTimeout,
	})

	// WriteTimeout stays above AssistTimeout, which covers an assistant call
	// with all its retries.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 15*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting carbon tracker server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
