// Command jetdesk levanta el servicio de autenticación: captcha, login con
// 2FA, emisión y refresh de tokens y administración de usuarios.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ediflysi/jetdesk/internal/auth"
	"github.com/ediflysi/jetdesk/internal/cache"
	"github.com/ediflysi/jetdesk/internal/captcha"
	"github.com/ediflysi/jetdesk/internal/config"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	httpx "github.com/ediflysi/jetdesk/internal/http"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
	"github.com/ediflysi/jetdesk/internal/observability/logger"
	"github.com/ediflysi/jetdesk/internal/rate"
	"github.com/ediflysi/jetdesk/internal/security/password"
	"github.com/ediflysi/jetdesk/internal/security/secretbox"
	"github.com/ediflysi/jetdesk/internal/store/memory"
	"github.com/ediflysi/jetdesk/internal/store/pg"
)

func main() {
	var (
		flagEnvFile = flag.String("env-file", ".env", "ruta al archivo .env")
		flagConfig  = flag.String("config", "", "ruta al config.yaml (opcional)")
	)
	flag.Parse()

	if err := godotenv.Load(*flagEnvFile); err != nil {
		log.Printf("warn: no se pudo cargar %s: %v", *flagEnvFile, err)
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "jetdesk",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache: respaldo de captchas y, si es redis, del rate limit compartido.
	cacheClient, err := cache.New(cache.Config{
		Driver: cfg.Cache.Kind,
		Addr:   cfg.Cache.Redis.Addr,
		DB:     cfg.Cache.Redis.DB,
		Prefix: cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		lg.Fatal("cache init failed", logger.Err(err))
	}
	defer func() { _ = cacheClient.Close() }()

	var (
		repo   repository.CredentialRepository
		poolFn func() *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case "postgres":
		lifetime, _ := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxConns:        int32(cfg.Storage.Postgres.MaxOpenConns),
			MinConns:        int32(cfg.Storage.Postgres.MaxIdleConns),
			ConnMaxLifetime: lifetime,
		})
		if err != nil {
			lg.Fatal("postgres init failed", logger.Err(err))
		}
		defer store.Close()

		applied, err := store.Migrate(ctx)
		if err != nil {
			lg.Fatal("migrations failed", logger.Err(err))
		}
		lg.Info("migrations applied", logger.Count(applied))

		repo = store
		poolFn = store.Pool
	default:
		lg.Warn("using in-memory credential store, data is volatile")
		repo = memory.New()
	}

	passwordSecret := cfg.Security.PasswordSecret
	if passwordSecret == "" {
		lg.Warn("PASSWORD_SECRET not set, using dev secret")
		passwordSecret = "jetdesk-dev-password-secret"
	}
	verifier, err := password.NewVerifier(passwordSecret)
	if err != nil {
		lg.Fatal("password verifier init failed", logger.Err(err))
	}

	masterKey := cfg.Security.MasterKey
	if masterKey == "" {
		lg.Warn("MASTER_KEY not set, using dev key")
		masterKey = "jetdesk-dev-master-key-32-bytes!"
	}
	box, err := secretbox.New(masterKey)
	if err != nil {
		lg.Fatal("secretbox init failed", logger.Err(err))
	}

	var keys *jwtx.KeySet
	if cfg.JWT.SigningSeed != "" {
		keys, err = jwtx.FromSeed(cfg.JWT.SigningSeed, cfg.JWT.KID)
	} else {
		lg.Warn("JWT_SIGNING_SEED not set, using ephemeral dev key")
		keys, err = jwtx.NewDevEd25519(cfg.JWT.KID)
	}
	if err != nil {
		lg.Fatal("signing key init failed", logger.Err(err))
	}
	issuer := jwtx.NewIssuer(keys, cfg.JWT.Issuer, cfg.AccessTTL())

	captchaStore := captcha.New(cacheClient, cfg.CaptchaTTL())

	svc := auth.New(auth.Deps{
		Repo:     repo,
		Captcha:  captchaStore,
		Verifier: verifier,
		Issuer:   issuer,
		Box:      box,
	})

	// Admin inicial; solo si hay password configurado vía env.
	if cfg.Auth.DefaultAdminPassword != "" {
		if _, err := svc.CreateDefaultUser(ctx, cfg.Auth.DefaultAdminUser, cfg.Auth.DefaultAdminPassword); err != nil {
			lg.Fatal("default admin seed failed", logger.Err(err))
		}
		lg.Info("default admin ensured", logger.Username(cfg.Auth.DefaultAdminUser))
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if rc := cache.Redis(cacheClient); rc != nil {
			limiter = rate.NewRedisLimiter(rc, "rate:login", cfg.Rate.Login.Limit, cfg.LoginRateWindow())
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.LoginRateWindow())
		}
	}

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: poolFn})
	if err != nil {
		lg.Fatal("metrics init failed", logger.Err(err))
	}

	server := httpx.NewServer(cfg.Server.Addr, httpx.Deps{
		Auth:               svc,
		Captcha:            captchaStore,
		Issuer:             issuer,
		TokenHeader:        cfg.Auth.TokenHeader,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Prod:               cfg.IsProd(),
		Limiter:            limiter,
		HealthCheck: func(ctx context.Context) error {
			if err := cacheClient.Ping(ctx); err != nil {
				return err
			}
			if poolFn != nil {
				return poolFn().Ping(ctx)
			}
			return nil
		},
		Metrics: metricsHandler,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("server exited with error", logger.Err(err))
	}
	lg.Info("server stopped")
}
