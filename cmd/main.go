package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kdduha/vick-gateway/internal/cache"
	"github.com/kdduha/vick-gateway/internal/config"
	"github.com/kdduha/vick-gateway/internal/handler"
	"github.com/kdduha/vick-gateway/internal/ingress"
	"github.com/kdduha/vick-gateway/internal/llm"
	"github.com/kdduha/vick-gateway/internal/logger"
	"github.com/kdduha/vick-gateway/internal/service"
	"github.com/sirupsen/logrus"

	_ "github.com/kdduha/vick-gateway/docs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg := logger.New(cfg.Log.Level, cfg.Log.Format)

	model := newModel(ctx, cfg)
	if err := model.Ready(); err != nil {
		lg.WithError(err).WithField("provider", model.Name()).
			Warn("model is not configured, every analysis will degrade to partial")
	}

	analysisService := service.NewAnalysisService(lg, model, cfg.Analysis, cfg.Model.Timeout)

	if cfg.CacheEnable {
		redisCache := cache.NewRedisCache(
			cfg.RedisConfig.Addr,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.RedisConfig.TTL,
		)
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			lg.WithError(err).Warn("redis is unreachable, cache lookups will fail open")
		}
		analysisService.SetCacheClient(redisCache)
		lg.WithField("addr", cfg.RedisConfig.Addr).Info("set redis as cache")
	}

	h := handler.NewAnalyseHandler(analysisService, ingress.NewParser(cfg.Server.MaxBodyBytes), lg)
	r := handler.NewRouter(h, lg, handler.RouterOptions{
		AllowedOrigin:          cfg.Server.AllowedOrigin,
		ThrottleLimit:          cfg.Server.ThrottleLimit,
		ThrottleBacklogTimeout: cfg.Server.ThrottleBacklogTimeout,
		Timeout:                cfg.Server.Timeout,
		Compress:               cfg.Server.Compress,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		lg.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"provider": model.Name(),
		}).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Fatal("listen error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Fatal("server forced to shutdown")
	}
	lg.Info("server stopped")
}

func newModel(ctx context.Context, cfg *config.Config) llm.Model {
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	default:
		return llm.NewGemini(ctx, cfg.Gemini.Key(), cfg.Gemini.Model)
	}
}
