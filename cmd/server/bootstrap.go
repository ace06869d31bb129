package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/api"
	"github.com/MarcosLauremiro/miKan-api/internal/app"
	"github.com/MarcosLauremiro/miKan-api/internal/app/maintenance"
	iauth "github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
	"github.com/MarcosLauremiro/miKan-api/internal/cache"
	"github.com/MarcosLauremiro/miKan-api/internal/database"
	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/middleware"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring/checks"
	"github.com/MarcosLauremiro/miKan-api/internal/notifications"
	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Redis       *cache.RedisStore
	Bus         events.Bus
	Cleaner     *maintenance.Cleaner
	RateStore   middleware.RateStore
	Health      *monitoring.HealthManager
	Router      *gin.Engine
	unsubscribe func()
	memoryRate  *middleware.MemoryRateStore
}

// bootstrapRuntime initialises the database, event transport, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Health = monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
	stack.Health.Register(checks.Database(stack.DB))

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to in-memory rate limiting", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			stack.Health.Register(checks.Redis(stack.Redis))
		}
	}

	if stack.Bus, err = initialiseBus(ctx, cfg, stack.Health); err != nil {
		return nil, err
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; notification emails will be skipped")
	}
	notifier, err := notifications.NewEmailNotifier(stack.DB, mailer, cfg.Server.NotificationConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise notifications: %w", err)
	}
	stack.unsubscribe = notifier.Register(stack.Bus)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	tokens, err := iauth.NewTokenService(stack.DB, jwtSvc, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	svc, err := initialiseServices(cfg, stack.DB, stack.Bus, tokens, log)
	if err != nil {
		return nil, err
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, tokens, svc.Audit,
			maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	if stack.Redis != nil {
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis)
	} else {
		stack.memoryRate = middleware.NewMemoryRateStore(time.Minute)
		stack.RateStore = stack.memoryRate
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		Services:  svc,
		RateStore: stack.RateStore,
		Health:    stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func initialiseBus(ctx context.Context, cfg *app.Config, health *monitoring.HealthManager) (events.Bus, error) {
	local := events.NewMemoryBus(events.WithHandlerTimeout(cfg.Events.HandlerTimeout))
	if !cfg.Events.UsesAMQP() {
		return local, nil
	}

	bus, err := events.NewAMQPBus(ctx, cfg.Events.AMQPBusConfig(), local)
	if err != nil {
		_ = local.Close(context.Background())
		return nil, fmt.Errorf("connect event broker: %w", err)
	}
	health.Register(checks.Broker(bus))
	return bus, nil
}

func initialiseServices(cfg *app.Config, db *gorm.DB, bus events.Bus, tokens *iauth.TokenService, log *zap.Logger) (api.Services, error) {
	var out api.Services
	var err error

	if out.Audit, err = services.NewAuditService(db); err != nil {
		return out, fmt.Errorf("initialise audit service: %w", err)
	}

	authOpts := []services.AuthOption{
		services.WithAuthEvents(bus),
		services.WithAuthAudit(out.Audit),
		services.WithPasswordCost(cfg.Auth.BcryptCost),
	}
	oauthOpts, err := oauthOptions(cfg, log)
	if err != nil {
		return out, err
	}
	authOpts = append(authOpts, oauthOpts...)

	if out.Auth, err = services.NewAuthService(db, tokens, authOpts...); err != nil {
		return out, fmt.Errorf("initialise auth service: %w", err)
	}
	if out.Workspaces, err = services.NewWorkspaceService(db, bus, out.Audit); err != nil {
		return out, fmt.Errorf("initialise workspace service: %w", err)
	}
	if out.Projects, err = services.NewProjectService(db, bus, out.Audit); err != nil {
		return out, fmt.Errorf("initialise project service: %w", err)
	}
	if out.Lists, err = services.NewListService(db, bus, out.Audit); err != nil {
		return out, fmt.Errorf("initialise list service: %w", err)
	}
	if out.Tasks, err = services.NewTaskService(db); err != nil {
		return out, fmt.Errorf("initialise task service: %w", err)
	}
	if out.Users, err = services.NewUserService(db); err != nil {
		return out, fmt.Errorf("initialise user service: %w", err)
	}
	return out, nil
}

// oauthOptions registers the enabled social login providers. Google also
// verifies One Tap credentials posted to /api/auth/google.
func oauthOptions(cfg *app.Config, log *zap.Logger) ([]services.AuthOption, error) {
	var (
		opts []services.AuthOption
		list []providers.Provider
	)

	if clientCfg, ok := cfg.Auth.GoogleClientConfig(); ok {
		google, err := providers.NewGoogle(clientCfg, providers.GoogleOptions{})
		if err != nil {
			return nil, fmt.Errorf("initialise google login: %w", err)
		}
		list = append(list, google)
		opts = append(opts, services.WithGoogleVerifier(google))
	}
	if clientCfg, ok := cfg.Auth.GitHubClientConfig(); ok {
		github, err := providers.NewGitHub(clientCfg, providers.GitHubOptions{})
		if err != nil {
			return nil, fmt.Errorf("initialise github login: %w", err)
		}
		list = append(list, github)
	}
	if len(list) == 0 {
		return opts, nil
	}

	state, err := iauth.NewStateCodec(cfg.Auth.StateKey(), cfg.Auth.OAuth.StateTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise oauth state: %w", err)
	}
	registry := providers.NewRegistry(list...)
	log.Info("social login enabled", zap.Strings("providers", registry.Names()))
	return append(opts, services.WithOAuthProviders(registry, state)), nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.Bus != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.Bus.Close(closeCtx); err != nil {
			log.Warn("event bus shutdown", zap.Error(err))
		}
		cancel()
	}

	if s.memoryRate != nil {
		s.memoryRate.Stop()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
