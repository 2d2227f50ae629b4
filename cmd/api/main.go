package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketscanner-platform/internal/alerts"
	"marketscanner-platform/internal/billing"
	"marketscanner-platform/internal/config"
	"marketscanner-platform/internal/entitlements"
	"marketscanner-platform/internal/httpapi"
	"marketscanner-platform/internal/ratelimit"
	"marketscanner-platform/internal/session"
	"marketscanner-platform/internal/subscriptions"
	"marketscanner-platform/pkg/logger"
	"marketscanner-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// Login attempts per email per window, enforced before any billing call.
const (
	loginRateLimit  = 10
	loginRateWindow = 15 * time.Minute
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local convenience only; deployed environments inject real env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	// The override switches silently disable monetization; make their state
	// auditable from the very first log lines.
	log.Info("entitlement configuration",
		"free_for_all_mode", cfg.Entitlements.FreeForAll,
		"pro_override_emails", len(cfg.Entitlements.ProOverrideEmails),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	codec, err := session.NewCodec(cfg.Session.SigningSecret)
	if err != nil {
		log.Error("session codec init failed", "err", err)
		os.Exit(1)
	}
	appTokens, err := session.NewAppTokenManager(cfg.Session.AppTokenSecret, cfg.Session.AppTokenTTL)
	if err != nil {
		log.Error("app token init failed", "err", err)
		os.Exit(1)
	}

	stripeClient, err := billing.NewStripeClient(billing.StripeConfig{SecretKey: cfg.Billing.StripeSecretKey})
	if err != nil {
		log.Error("stripe init failed", "err", err)
		os.Exit(1)
	}

	var provider entitlements.Provider
	if cfg.Entitlements.RevenueCatAPIKey != "" {
		rc, err := entitlements.NewRevenueCatClient(entitlements.RevenueCatConfig{APIKey: cfg.Entitlements.RevenueCatAPIKey})
		if err != nil {
			log.Error("revenuecat init failed", "err", err)
			os.Exit(1)
		}
		provider = rc
	} else {
		log.Warn("no entitlement provider configured; paid mobile tiers resolve to free")
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	denylist, err := session.NewDenylist(rdb)
	if err != nil {
		log.Error("denylist init failed", "err", err)
		os.Exit(1)
	}
	loginLimiter, err := ratelimit.New(rdb, "login:attempts:", loginRateLimit, loginRateWindow)
	if err != nil {
		log.Error("rate limiter init failed", "err", err)
		os.Exit(1)
	}

	var alertService *alerts.Service
	if cfg.AlertsEnabled() {
		sender, err := alerts.NewSMTPSender(alerts.SMTPConfig{
			Host:     cfg.Alerts.SMTPHost,
			Port:     cfg.Alerts.SMTPPort,
			Username: cfg.Alerts.SMTPUsername,
			Password: cfg.Alerts.SMTPPassword,
			From:     cfg.Alerts.SMTPFrom,
		})
		if err != nil {
			log.Error("smtp init failed", "err", err)
			os.Exit(1)
		}
		alertService = alerts.NewService(sender, db, log)
	} else {
		log.Warn("alerts disabled: SMTP not configured")
	}

	issuer := session.NewIssuer(codec, stripeClient, session.IssuerConfig{
		Prices: session.TierPrices{
			Pro:       cfg.Billing.PricePro,
			ProTrader: cfg.Billing.PriceProTrader,
		},
		CookieDomain: cfg.Session.CookieDomain,
	}, log)

	handlers := httpapi.NewHandlers(httpapi.Handlers{
		Issuer:         issuer,
		Reader:         session.NewReader(codec, denylist, log),
		Codec:          codec,
		AppTokens:      appTokens,
		Entitlements:   entitlements.NewService(provider, entitlements.Config{FreeForAll: cfg.Entitlements.FreeForAll, OverrideEmails: cfg.Entitlements.ProOverrideEmails}, log),
		Subscriptions:  subscriptions.NewService(db),
		Billing:        stripeClient,
		Alerts:         alertService,
		LoginLimiter:   loginLimiter,
		Production:     cfg.IsProduction(),
		PricePro:       cfg.Billing.PricePro,
		PriceProTrader: cfg.Billing.PriceProTrader,
		AlertsSendKey:  cfg.Alerts.SendKey,
	}, cfg.CORS.AllowedOrigins)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	// Sliding session expiration: every request may silently re-mint a
	// near-expiry cookie, so this sits ahead of all routes.
	r.Use(session.RefreshMiddleware(codec, cfg.IsProduction(), log))

	registerRoutes(r, handlers)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
