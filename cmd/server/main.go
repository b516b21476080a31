package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iliyamo/todo-api/internal/config"
	"github.com/iliyamo/todo-api/internal/database"
	"github.com/iliyamo/todo-api/internal/handler"
	"github.com/iliyamo/todo-api/internal/metrics"
	"github.com/iliyamo/todo-api/internal/oauth"
	"github.com/iliyamo/todo-api/internal/queue"
	"github.com/iliyamo/todo-api/internal/repository"
	"github.com/iliyamo/todo-api/internal/router"
	"github.com/iliyamo/todo-api/internal/service"
	"github.com/iliyamo/todo-api/internal/utils"
)

func newLogger(env string) *zap.Logger {
	if env == "dev" {
		l, _ := zap.NewDevelopmentConfig().Build()
		return l
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, _ := cfg.Build()
	return l
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()
	log := logger.Sugar()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalw("database connection failed", "err", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
		log.Fatalw("migrations failed", "err", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and response caching disabled")
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	tokens := repository.NewTokenRepo(db)
	todos := repository.NewTodoRepo(db)
	audits := repository.NewAuditRepo(db)

	promReg := prometheus.NewRegistry()
	recorder := metrics.NewCollector(promReg)

	auditor := service.NewQueueAuditor(log)
	emailer := service.NewEmailSender(cfg, log)

	sessionMgr := &service.SessionManager{
		Sessions:       sessions,
		Users:          users,
		AccessSecret:   cfg.JWTAccessSecret,
		RefreshSecret:  cfg.JWTRefreshSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
	}
	authSvc := &service.AuthService{
		Users:    users,
		Tokens:   tokens,
		Sessions: sessionMgr,
		Audit:    auditor,
		Email:    emailer,
		Metrics:  recorder,
		Hash:     utils.DefaultArgon2,
	}
	adminSvc := &service.AdminService{Users: users, Audit: auditor, Hash: utils.DefaultArgon2}
	todoSvc := service.NewTodoService(todos)

	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret,
		cfg.APIURL+"/v1/oauth/google/callback")
	microsoft := oauth.NewMicrosoft(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret,
		cfg.APIURL+"/v1/oauth/microsoft/callback")

	// Persists audit events published by the services to MySQL.
	go queue.StartAuditConsumer(audits, log)

	// Without SMTP nobody could ever redeem a verification email.
	autoverify := cfg.SMTPHost == ""

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:  handler.NewAuthHandler(authSvc, autoverify),
		OAuth: handler.NewOAuthHandler(authSvc, google, microsoft, cfg.OAuthStateSecret, cfg.FrontendURL),
		User:  handler.NewUserHandler(authSvc),
		Todo:  handler.NewTodoHandler(todoSvc),
		Admin: handler.NewAdminHandler(adminSvc, authSvc),
	}, cfg, db, rdb, promReg)

	addr := ":" + cfg.Port
	log.Infow("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatalw("server stopped", "err", err)
	}
}
