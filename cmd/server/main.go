package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/config"
	"github.com/d60-Lab/postboard/internal/api"
	"github.com/d60-Lab/postboard/internal/api/handler"
	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/internal/service"
	rediscli "github.com/d60-Lab/postboard/pkg/cache"
	"github.com/d60-Lab/postboard/pkg/database"
	"github.com/d60-Lab/postboard/pkg/logger"
	"github.com/d60-Lab/postboard/pkg/token"
	"github.com/d60-Lab/postboard/pkg/tracing"
)

// @title Postboard API
// @version 1.0
// @description 帖子、点赞、评论与账号服务
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			logger.Fatal("init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer database.Close(db)

	redisClient, err := rediscli.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("init redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("redis not configured, user cache disabled")
	} else {
		defer redisClient.Close()
	}

	tokens, err := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		logger.Fatal("init token manager", zap.Error(err))
	}
	storage, err := media.NewStorage(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		logger.Fatal("init upload storage", zap.Error(err))
	}
	resolver := media.NewResolver(cfg.Server.PublicURL, cfg.Upload.URLPrefix)

	janitor := service.NewMediaJanitor(storage, 1024)
	stopJanitor := janitor.Start(2)

	userCache := cache.NewUserCache(redisClient, cfg.Redis.UserTTL)
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)

	authService := service.NewAuthService(users, tokens, userCache, service.NewLinkDelivery(cfg.Server.FrontendURL),
		service.WithBcryptCost(cfg.Auth.BcryptCost), service.WithResetTTL(cfg.Auth.ResetTTL))
	sessionService := service.NewSessionService(tokens, users, userCache)
	postService := service.NewPostService(posts, users, userCache, resolver, janitor)

	h := handler.NewHandler(authService, postService, storage)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(cfg, h, sessionService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := stopJanitor(shutdownCtx); err != nil {
		logger.Warn("media janitor stop", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
