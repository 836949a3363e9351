package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"grapevpn/keyhub/internal/config"
	"grapevpn/keyhub/internal/handler"
	"grapevpn/keyhub/internal/keygen"
	"grapevpn/keyhub/internal/metrics"
	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
	"grapevpn/keyhub/internal/service"
	jwtpkg "grapevpn/keyhub/pkg/jwt"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the YAML config file (empty to use env only)")
	pflag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. Initialize credential store (PostgreSQL or in-memory)
	var store repository.CredentialStore
	switch cfg.State.Store {
	case "postgres":
		db, err := config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		if cfg.Database.Postgres.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				logger.Fatal("failed to auto-migrate", zap.Error(err))
			}
			logger.Info("database migration completed")
		}
		store = repository.NewPGCredentialStore(db)
		logger.Info("using PostgreSQL credential store")
	case "memory":
		store = repository.NewMemoryCredentialStore()
		logger.Warn("using in-memory credential store; data is lost on restart")
	default:
		logger.Fatal("unknown credential store", zap.String("store", cfg.State.Store))
	}

	// 4. Initialize admin session store (Redis or in-memory)
	var sessionStore repository.AdminSessionStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		sessionStore = repository.NewRedisSessionStore(redisClient)
		logger.Info("using Redis session store")
	case "memory":
		sessionStore = repository.NewMemorySessionStore()
		logger.Info("using in-memory session store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 5. Bearer credentials, metrics, keypairs
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	m := metrics.New()
	keys := keygen.NewProvider(cfg.WireGuard.ToolPath, cfg.WireGuard.KeygenTimeout, logger.Named("keygen"))

	profile, err := service.NewClientProfile(cfg.WireGuard)
	if err != nil {
		logger.Fatal("invalid wireguard config", zap.Error(err))
	}
	if profile.ServerPublicKey == "<SERVER_PUBLIC_KEY>" {
		logger.Warn("wireguard.server_public_key is not set; client configs carry a placeholder")
	}

	// 6. Initialize services
	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithMetrics(m),
	}
	tokenService := service.NewTokenService(
		store, keys, profile,
		cfg.Token.Bytes, cfg.Token.Lifetime, cfg.Token.DailyLimit,
		opts...,
	)
	referralService := service.NewReferralService(store, keys, tokenService, cfg.Referral.Reward, opts...)
	memberService := service.NewMemberService(store, tokenService, referralService, opts...)
	redemptionService := service.NewRedemptionService(store, jwtManager, opts...)
	adminService := service.NewAdminService(
		store, tokenService,
		service.NewLogNotifier(logger.Named("notifier")),
		cfg.Admin.UserIDs,
		opts...,
	)
	sessionService := service.NewAdminSessionService(sessionStore, adminService, cfg.Admin.SessionTimeout, opts...)

	// 7. Initialize handlers and router
	router := handler.SetupRouter(cfg, logger, jwtManager, m,
		handler.NewRedeemHandler(redemptionService, jwtManager),
		handler.NewMemberHandler(memberService),
		handler.NewAdminHandler(adminService, sessionService),
	)

	// 8. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
