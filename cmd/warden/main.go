// Command warden runs the user/group/role administration backend: the HTTP
// API on the main port, health and metrics on a side port, and the periodic
// reconciliation pass.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wardenhq/warden/pkg/api"
	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/database"
	"github.com/wardenhq/warden/pkg/groups"
	"github.com/wardenhq/warden/pkg/middleware"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/reconcile"
	"github.com/wardenhq/warden/pkg/roles"
	"github.com/wardenhq/warden/pkg/sso"
	"github.com/wardenhq/warden/pkg/users"
)

// reconcileSchedule is how often drift between the assignment tables and the
// policy store is repaired.
const reconcileSchedule = "@every 5m"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	observability.SetupLogging(cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("warden exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	})
	if err != nil {
		return err
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	db, err := database.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	for component, migrations := range map[string][]database.Migration{
		"authz":  authz.Migrations(),
		"users":  users.Migrations(),
		"roles":  roles.Migrations(),
		"groups": groups.Migrations(),
	} {
		if err := database.Migrate(ctx, db, component, migrations); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	enforcer, err := authz.NewEnforcer(model, authz.NewStore(db),
		authz.WithDecisionCounter(metrics.AuthzDecisionsTotal))
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	userSvc := users.NewService(db)
	roleSvc := roles.NewService(db, enforcer)
	groupSvc := groups.NewService(db, enforcer)
	catalogSvc := catalog.NewService(enforcer)

	var redisClient *redis.Client
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		limiter = middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.WindowDuration,
		}, "warden")
	}

	ssoDeps, err := buildSSO(ctx, cfg, userSvc, roleSvc)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Users:       userSvc,
		Roles:       roleSvc,
		Groups:      groupSvc,
		Catalog:     catalogSvc,
		Enforcer:    enforcer,
		Tokens:      tokens,
		SSO:         ssoDeps,
		RateLimiter: limiter,
		Metrics:     metrics,
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	scheduler := cron.New()
	reconciler := reconcile.NewReconciler(db, enforcer,
		reconcile.WithRepairCounter(metrics.ReconcileRepairsTotal))
	if _, err := reconciler.Schedule(scheduler, reconcileSchedule); err != nil {
		return err
	}
	scheduler.Start()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logrus.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if cfg.Observability.MetricsEnabled {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					metrics.CollectDBStats(db)
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		<-scheduler.Stop().Done()
		apiServer.Shutdown(shutdownCtx)
		healthServer.Shutdown(shutdownCtx)
		if otelProviders != nil {
			observability.ShutdownOTel(shutdownCtx, otelProviders)
		}
		return nil
	})

	return g.Wait()
}

func loadModel(cfg *config.Config) (*authz.Model, error) {
	if cfg.Authz.ModelConfPath != "" {
		logrus.WithField("path", cfg.Authz.ModelConfPath).Info("loading policy model from file")
		return authz.LoadModel(cfg.Authz.ModelConfPath)
	}
	return authz.DefaultModel()
}

// buildSSO assembles the configured external identity providers; nil when
// none are configured.
func buildSSO(ctx context.Context, cfg *config.Config, userSvc *users.Service, roleSvc *roles.Service) (*api.SSODeps, error) {
	registry := sso.NewRegistry()
	configured := false

	if cfg.SSO.ChatClientID != "" {
		chat, err := sso.NewChatProvider(sso.ChatConfig{
			ClientID:     cfg.SSO.ChatClientID,
			ClientSecret: cfg.SSO.ChatClientSecret,
			AuthURL:      cfg.SSO.ChatAuthURL,
			TokenURL:     cfg.SSO.ChatTokenURL,
			UserInfoURL:  cfg.SSO.ChatUserInfoURL,
			RedirectURL:  cfg.SSO.BaseURL + "/auth/sso/chat/callback",
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(chat); err != nil {
			return nil, err
		}
		configured = true
	}

	if cfg.SSO.EnterpriseIssuerURL != "" {
		enterprise, err := sso.NewEnterpriseProvider(ctx, sso.EnterpriseConfig{
			IssuerURL:    cfg.SSO.EnterpriseIssuerURL,
			ClientID:     cfg.SSO.EnterpriseClientID,
			ClientSecret: cfg.SSO.EnterpriseClientSecret,
			RedirectURL:  cfg.SSO.BaseURL + "/auth/sso/enterprise/callback",
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(enterprise); err != nil {
			return nil, err
		}
		configured = true
	}

	var saml *sso.SAMLProvider
	if cfg.SSO.SAMLSSOURL != "" {
		var err error
		saml, err = sso.NewSAMLProvider(sso.SAMLConfig{
			IdentityProviderSSOURL: cfg.SSO.SAMLSSOURL,
			IdentityProviderIssuer: cfg.SSO.SAMLIssuer,
			Certificate:            cfg.SSO.SAMLCertificate,
			BaseURL:                cfg.SSO.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		configured = true
	}

	if !configured {
		return nil, nil
	}

	states, err := sso.NewStateCodec(cfg.Auth.TokenSecret)
	if err != nil {
		return nil, err
	}

	return &api.SSODeps{
		Registry:    registry,
		SAML:        saml,
		States:      states,
		Provisioner: sso.NewProvisioner(userSvc, roleSvc, 0),
	}, nil
}
