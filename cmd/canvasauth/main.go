package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	canvasadapter "github.com/smallbiznis/canvas-auth/internal/adapter/canvas"
	sessionadapter "github.com/smallbiznis/canvas-auth/internal/adapter/session"
	"github.com/smallbiznis/canvas-auth/internal/config"
	httptransport "github.com/smallbiznis/canvas-auth/internal/http"
	"github.com/smallbiznis/canvas-auth/internal/http/handler"
	apimiddleware "github.com/smallbiznis/canvas-auth/internal/middleware"
	"github.com/smallbiznis/canvas-auth/internal/repository"
	"github.com/smallbiznis/canvas-auth/internal/server"
	oauthservice "github.com/smallbiznis/canvas-auth/internal/service/oauth"
	"github.com/smallbiznis/canvas-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newTokenRepository,
			newRedisClient,
			newSessionStore,
			newCanvasClient,
			newRateLimiter,
			newErrorRenderer,
			oauthservice.NewFlowService,
			handler.NewOAuthHandler,
			handler.NewDispatcher,
			newRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTokenRepository(pool *pgxpool.Pool, node *snowflake.Node) repository.TokenRepository {
	return repository.NewPostgresTokenRepo(pool, node)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newSessionStore(client redis.UniversalClient) repository.SessionStore {
	return sessionadapter.NewRedisSessionStore(client)
}

func newCanvasClient(logger *zap.Logger) canvasadapter.Client {
	return canvasadapter.NewHTTPClient(nil, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newErrorRenderer(cfg config.Config, logger *zap.Logger) *handler.ErrorRenderer {
	return handler.NewErrorRenderer(cfg.ErrorTemplate, logger)
}

func newRouter(cfg config.Config, oauthHandler *handler.OAuthHandler, dispatcher *handler.Dispatcher, rateLimiter *apimiddleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httptransport.NewRouter(cfg, oauthHandler, dispatcher, rateLimiter, logger)
}

func useTelemetry(*telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			logger.Info("starting http server", zap.String("addr", addr))
			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
