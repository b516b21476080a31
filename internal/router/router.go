// Package router maps the HTTP surface onto the handlers and applies the
// middleware stack per group.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/todo-api/internal/config"
	"github.com/iliyamo/todo-api/internal/handler"
	"github.com/iliyamo/todo-api/internal/middleware"
	"github.com/iliyamo/todo-api/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth  *handler.AuthHandler
	OAuth *handler.OAuthHandler
	User  *handler.UserHandler
	Todo  *handler.TodoHandler
	Admin *handler.AdminHandler
}

// Register mounts all routes. rdb may be nil; the rate limiter and the
// response cache then pass everything through.
func Register(e *echo.Echo, h Handlers, cfg config.Config, db *sql.DB, rdb *redis.Client, promReg *prometheus.Registry) {
	e.GET("/healthz", handler.Health)
	e.GET("/readiness", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Credential endpoints; the brute-forceable ones sit behind the limiter.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login, limiter)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	auth.POST("/verify-email", h.Auth.VerifyEmail)
	auth.POST("/request-password-reset", h.Auth.RequestPasswordReset, limiter)
	auth.POST("/reset-password", h.Auth.ResetPassword, limiter)

	// Federated login round trip; the callback serves both modes.
	oa := e.Group("/v1/oauth/:provider")
	oa.GET("/login", h.OAuth.Login)
	oa.GET("/callback", h.OAuth.Callback)

	// Everything below requires a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(cfg.JWTAccessSecret))

	v1.POST("/auth/resend-verification", h.Auth.ResendVerification)

	v1.GET("/oauth/:provider/link", h.OAuth.Link)
	v1.DELETE("/oauth/:provider/unlink", h.OAuth.Unlink)

	v1.GET("/me", h.User.Me)
	v1.PATCH("/me", h.User.UpdateMe)
	v1.POST("/me/change-password", h.User.ChangePassword)
	v1.DELETE("/me", h.User.DeleteMe)

	v1.POST("/todos", h.Todo.Create)
	v1.GET("/todos", h.Todo.List)
	v1.GET("/todos/:id", h.Todo.Get)
	v1.PATCH("/todos/:id", h.Todo.Update)
	v1.DELETE("/todos/:id", h.Todo.Delete)

	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", h.Admin.ListUsers, cache)
	admin.GET("/users/:id", h.Admin.GetUser)
	admin.PATCH("/users/:id", h.Admin.UpdateUser)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.POST("/merge-users", h.Admin.MergeUsers, middleware.RequireRole(model.RoleSysadmin))
}
