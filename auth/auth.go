// Package auth provides shared-secret bearer token authentication for the
// HTTP surface.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/glucolab/agp/errors"
)

const SubjectContextKey = "auth.subject"

type Config struct {
	Secret   string `envconfig:"AGP_AUTH_SECRET"`
	Disabled bool   `envconfig:"AGP_AUTH_DISABLED"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if !cfg.Disabled && cfg.Secret == "" {
		return nil, fmt.Errorf("AGP_AUTH_SECRET is required unless auth is disabled")
	}
	return cfg, nil
}

type Authenticator struct {
	config *Config
}

func NewAuthenticator(config *Config) *Authenticator {
	return &Authenticator{config: config}
}

// Middleware validates HS256 bearer tokens and stores the token subject on
// the request context.
func (a *Authenticator) Middleware(skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a.config.Disabled || (skipper != nil && skipper(c)) {
				return next(c)
			}

			raw, err := tokenFromHeader(c)
			if err != nil {
				return err
			}

			token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
				return []byte(a.config.Secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return fmt.Errorf("invalid token: %w", errors.Unauthorized)
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if subject, ok := claims["sub"].(string); ok && subject != "" {
					c.Set(SubjectContextKey, subject)
				}
			}
			return next(c)
		}
	}
}

func tokenFromHeader(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", errors.Unauthorized)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("malformed authorization header: %w", errors.Unauthorized)
	}
	return parts[1], nil
}
