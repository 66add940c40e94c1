// Command watcher runs the Zano/FUSD deposit-watching service: a set of
// per-ticker polling loops that detect confirmed wallet deposits, apply the
// confirmation policy, and dispatch webhooks to the configured merchant
// backend, fronted by a small intake HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/zano-fusd/deposit-watcher/internal/config"
	"github.com/zano-fusd/deposit-watcher/internal/intake"
	"github.com/zano-fusd/deposit-watcher/internal/jobstore"
	"github.com/zano-fusd/deposit-watcher/internal/kv"
	"github.com/zano-fusd/deposit-watcher/internal/logger"
	"github.com/zano-fusd/deposit-watcher/internal/scheduler"
	"github.com/zano-fusd/deposit-watcher/internal/secrets"
	"github.com/zano-fusd/deposit-watcher/internal/shutdown"
	"github.com/zano-fusd/deposit-watcher/internal/statemachine"
	"github.com/zano-fusd/deposit-watcher/internal/walletrpc"
	"github.com/zano-fusd/deposit-watcher/internal/webhook"
)

// @title Zano/FUSD Deposit Watcher API
// @version 1.0
// @description Deposit detection, confirmation, and webhook-settlement service for Zano and FUSD wallets.

// @contact.name Platform Team

// @license.name Proprietary

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
// @description API key required to create deposit jobs.

var (
	schedulerLagGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deposit_watcher_scheduler_tickers",
		Help: "Number of ticker polling loops currently running.",
	}, []string{"ticker"})
)

func init() {
	prometheus.MustRegister(schedulerLagGauge)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment, cfg.LogErrorFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secretsProvider, err := secrets.New(ctx, cfg.Secrets.Provider, cfg.Secrets.AWSRegion)
	if err != nil {
		log.Fatal("failed to build secrets provider", "error", err)
	}
	resolveSecret(ctx, secretsProvider, "ZANO_KV_PASSWORD", &cfg.KV.Password, log)
	resolveSecret(ctx, secretsProvider, "ZANO_WALLET_BASIC_AUTH_PASS", &cfg.Wallet.BasicAuthPass, log)
	resolveSecret(ctx, secretsProvider, "ZANO_WEBHOOK_SECRET", &cfg.WebhookSecret, log)

	store := kv.NewRedisStore(kv.RedisConfig{
		Addr:     cfg.KV.Addr,
		Password: cfg.KV.Password,
		DB:       cfg.KV.DB,
	})

	repo := jobstore.NewRepository(
		store,
		cfg.KeyPrefix,
		time.Duration(cfg.JobTTLSeconds)*time.Second,
		time.Duration(cfg.StatusTTLSeconds)*time.Second,
		time.Duration(cfg.SeenTTLSeconds)*time.Second,
		time.Duration(cfg.DepositLedgerTTLSeconds)*time.Second,
	)

	walletClient := walletrpc.NewClient(walletrpc.Config{
		URL:           cfg.Wallet.URL,
		BasicAuthUser: cfg.Wallet.BasicAuthUser,
		BasicAuthPass: cfg.Wallet.BasicAuthPass,
		Timeout:       time.Duration(cfg.Wallet.TimeoutMs) * time.Millisecond,
	}, log)

	dispatcher, err := webhook.NewDispatcher(log)
	if err != nil {
		log.Fatal("failed to build webhook dispatcher", "error", err)
	}

	machine := statemachine.New(repo, walletClient, walletClient, dispatcher, log)

	smCfg := statemachine.Config{
		WebhookSecret:  cfg.WebhookSecret,
		WebhookTimeout: time.Duration(cfg.WebhookTimeoutMs) * time.Millisecond,
		Backoff: webhook.BackoffConfig{
			BaseMs:  cfg.WebhookBackoffBaseMs,
			Factor:  cfg.WebhookBackoffFactor,
			MaxMs:   cfg.WebhookBackoffMaxMs,
			Jitter:  cfg.WebhookBackoffJitter,
		},
		MaxAttempts:     cfg.WebhookMaxAttempts,
		MaxRetryWindow:  time.Duration(cfg.WebhookMaxRetryWindowMs) * time.Millisecond,
		DepositLedgerOn: cfg.DepositLedgerMode != "off",
	}

	schedCfg := scheduler.Config{
		IntervalMs:     cfg.IntervalMs,
		ScanCount:      cfg.ScanCount,
		ErrorBackoffMs: cfg.ErrorBackoffMs,
	}

	tickerSpecs := make([]scheduler.TickerSpec, 0, len(cfg.Tickers))
	for _, t := range cfg.Tickers {
		tc := cfg.Ticker[t]
		tickerSpecs = append(tickerSpecs, scheduler.TickerSpec{
			Ticker: t,
			Policy: statemachine.TickerPolicy{
				Decimals:                      tc.Decimals,
				AssetID:                       tc.AssetID,
				WebhookURL:                    tc.WebhookURL,
				ConsolidationEnabled:          tc.Consolidation.Enabled,
				ConsolidationAddress:          tc.Consolidation.Address,
				ConsolidationFeeAtomic:        tc.Consolidation.FeeAtomic,
				ConsolidationMinConfirmations: tc.Consolidation.MinConfirmations,
				ConsolidationMixin:            tc.Consolidation.Mixin,
				ConsolidationPriority:         tc.Consolidation.Priority,
			},
		})
		schedulerLagGauge.WithLabelValues(t).Set(1)
	}

	sched := scheduler.New(repo, machine, walletClient, smCfg, schedCfg, log)
	sched.Start(ctx, tickerSpecs)
	log.Info("deposit watcher scheduler started", "tickers", cfg.Tickers)

	lookup := &tickerLookupAdapter{cfg: cfg}
	intakeSrv := intake.NewServer(repo, lookup, walletClient, intake.Config{
		APIKey:             cfg.APIKey,
		WebhookSecret:      cfg.WebhookSecret,
		DefaultJobTTL:      time.Duration(cfg.JobTTLSeconds) * time.Second,
		RateLimitPerSecond: cfg.IntakeRateLimitPerSecond,
		RateLimitBurst:     cfg.IntakeRateLimitBurst,
		StatusCacheTTL:     time.Duration(min(cfg.StatusCacheTTLMs, cfg.IntervalMs)) * time.Millisecond,
	}, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	intakeSrv.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Environment != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting intake server", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("intake server failed", "error", err)
		}
	}()

	mgr := shutdown.NewManager(httpServer, log)
	mgr.Register(shutdown.SchedulerShutdowner{StopFunc: sched.Stop})
	mgr.Register(shutdown.KVShutdowner{CloseFunc: store.Close})

	mgr.WaitForShutdown()
}

// resolveSecret overwrites *dest with the value from the secrets provider
// under envName, if present; leaves dest untouched (falling back to plain
// config) when the provider has nothing under that name.
func resolveSecret(ctx context.Context, p secrets.Provider, envName string, dest *string, log *logger.Logger) {
	v, err := p.GetSecret(ctx, envName)
	if err != nil {
		log.Debug("secret not resolved from provider, using config value", "name", envName)
		return
	}
	*dest = v
}

// tickerLookupAdapter implements intake.TickerLookup over config.Config's
// ticker map.
type tickerLookupAdapter struct {
	cfg *config.Config
}

func (a *tickerLookupAdapter) Lookup(ticker string) (decimals int, assetID, depositAddress string, minConfirmations int, enabled bool) {
	tc, ok := a.cfg.Ticker[ticker]
	if !ok {
		return 0, "", "", 0, false
	}
	for _, t := range a.cfg.Tickers {
		if t == ticker {
			return tc.Decimals, tc.AssetID, tc.DepositAddress, tc.MinConfirmations, true
		}
	}
	return tc.Decimals, tc.AssetID, tc.DepositAddress, tc.MinConfirmations, false
}
