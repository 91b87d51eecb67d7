package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouteSkipper skips middlewares for the given route prefixes.
func RouteSkipper(routes []string) middleware.Skipper {
	return func(c echo.Context) bool {
		path := c.Request().URL.Path
		for _, route := range routes {
			if strings.HasPrefix(path, route) {
				return true
			}
		}
		return false
	}
}
