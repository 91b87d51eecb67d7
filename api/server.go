package api

import (
	"context"
	"fmt"

	"github.com/brpaz/echozap"
	"github.com/glucolab/agp/auth"
	"github.com/glucolab/agp/config"
	"github.com/glucolab/agp/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewServer(handler *Handler, healthCheck *HealthCheck, authenticator *auth.Authenticator, zlog *zap.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	// The readiness probe is reachable without a token
	skipper := RouteSkipper([]string{"/ready"})

	e.Use(middleware.Recover())
	e.Use(echozap.ZapLogger(zlog))
	e.Use(authenticator.Middleware(skipper))

	e.HTTPErrorHandler = errors.CustomHTTPErrorHandler

	e.GET("/ready", healthCheck.Ready)
	RegisterHandlers(e, handler)

	return e, nil
}

func Start(e *echo.Echo, cfg *config.Config, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) {
	address := fmt.Sprintf(":%d", cfg.HttpPort)
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(address); err != nil {
					logger.Infow("http server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func SetReady(healthCheck *HealthCheck, db *mongo.Database, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, nil); err != nil {
				return err
			}

			// Lifecycle hooks run in topological order, so mongo
			// initialization has completed by the time this runs.
			healthCheck.SetReady(true)
			return nil
		},
		OnStop: nil,
	})
}
