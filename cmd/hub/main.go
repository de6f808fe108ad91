// Package main - точка входа REST API (Hub) практикума.
//
// Hub обслуживает игровой слой платформы: жизненный цикл сессий,
// разрешение решений, бизнес-симуляцию, начисление XP и дневной прогресс.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/config"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/command"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/eventhandler"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/query"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/decision"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/persistence/redis"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/service"
	httpapi "github.com/bilim-hub/bilim-practice-hub/internal/interface/http"
	"github.com/bilim-hub/bilim-practice-hub/internal/interface/http/handlers"
	"github.com/bilim-hub/bilim-practice-hub/pkg/circuitbreaker"
	"github.com/bilim-hub/bilim-practice-hub/pkg/logger"
	"github.com/bilim-hub/bilim-practice-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	// slog покрывает инфраструктурные компоненты, pkg/logger - HTTP слой.
	log := setupLogger(cfg)
	httpLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})

	log.Info("starting practice hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"features", len(cfg.Features.GetAllFeatures()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *rediscache.Cache
	var counterCache *rediscache.CounterCache
	var viewCache *rediscache.SessionViewCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := rediscache.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = rediscache.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, running without cache tier", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			counterCache = rediscache.NewCounterCache(redisCache)
			viewCache = rediscache.NewSessionViewCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	store := postgres.NewStore(dbConn)
	sessionRepo := store.Sessions()
	consequenceRepo := store.Consequences()
	progressionRepo := postgres.NewProgressionRepository(dbConn)
	durableMissionRepo := postgres.NewMissionRepository(dbConn)

	// Ограничитель миссий сидит на горячем пути, поэтому при живом Redis
	// его состояние читается из кэша, а postgres остаётся источником истины.
	var missionRepo mission.Repository = durableMissionRepo
	if counterCache != nil && cfg.Features.IsEnabled(config.FeatureLimiterCacheTier, nil) {
		breaker := circuitbreaker.New("limiter_cache",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithTimeout(15*time.Second),
		)
		missionRepo = service.NewLimiterStore(counterCache, durableMissionRepo, breaker, log)
	}

	// Дневной XP зеркалируется в Redis; при живом зеркале дневной прогресс
	// читается из него, postgres остаётся источником истины.
	var xpMirror *rediscache.CounterCache
	var xpTodayCache query.XPTodayCache
	if counterCache != nil && cfg.Features.IsEnabled(config.FeatureProgressionCounterCache, nil) {
		xpMirror = counterCache
		xpTodayCache = counterCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS И DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)

	if err := registerEventHandlers(dispatcher, sessionRepo, viewCache, xpMirror, log); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ ОБРАБОТЧИКОВ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	rng := rand.New(rand.NewSource(timeutil.Now().UnixNano()))

	businessCfg := business.Config{
		ProcessingWindow: cfg.Engine.RegistrationWindow,
		MarketVolatility: cfg.Engine.MarketVolatility,
	}
	limiterCfg := mission.Config{
		Threshold:   cfg.Engine.MissionThreshold,
		CooldownMin: cfg.Engine.CooldownMin,
		CooldownMax: cfg.Engine.CooldownMax,
	}
	startBundle := resource.NewBundle(
		cfg.Engine.StartCurrency, cfg.Engine.StartTimeUnits, cfg.Engine.StartEnergy)

	resolver := decision.NewResolver(decision.DefaultCatalog())

	deps := httpapi.Dependencies{
		SessionLifecycleHandler: command.NewSessionLifecycleHandler(store, startBundle),
		ResolveChoiceHandler: command.NewResolveChoiceHandler(
			store, resolver, eventBus),
		RealizeHandler: command.NewRealizeDueConsequencesHandler(
			store, consequence.NewScheduler(), eventBus),
		TickBusinessHandler: command.NewTickBusinessHandler(
			store, eventBus, businessCfg, rng),
		AwardLabXPHandler: command.NewAwardLabXPHandler(
			progressionRepo, eventBus, cfg.Engine.DailyXPCap, cfg.App.Location),
		CompleteMissionHandler: command.NewCompleteMissionHandler(
			missionRepo, progressionRepo, eventBus,
			limiterCfg, cfg.Engine.DailyXPCap, cfg.App.Location, rng),
		GetSessionStateHandler: query.NewGetSessionStateHandler(
			sessionRepo, consequenceRepo, businessCfg),
		GetDailyProgressHandler: query.NewGetDailyProgressHandler(
			progressionRepo, missionRepo, xpTodayCache, limiterCfg, cfg.Engine.DailyXPCap, cfg.App.Location),
		Logger:        httpLog,
		HealthChecker: buildHealthChecker(cfg, dbConn, redisCache),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК HTTP СЕРВЕРА
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	server := httpapi.NewServer(serverCfg, deps)
	errCh := server.StartAsync()
	log.Info("practice hub API is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// buildHealthChecker собирает health-чеки из доступных зависимостей.
func buildHealthChecker(cfg *config.Config, dbConn *postgres.Connection, cache *rediscache.Cache) handlers.HealthChecker {
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if cache != nil {
		checker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}
	return checker
}

// registerEventHandlers подключает обработчики доменных событий.
func registerEventHandlers(
	dispatcher *messaging.Dispatcher,
	sessionRepo *postgres.SessionRepository,
	viewCache *rediscache.SessionViewCache,
	xpMirror *rediscache.CounterCache,
	log *slog.Logger,
) error {
	cooldownHandler := eventhandler.NewOnCooldownStartedHandler(log)
	if err := dispatcher.Register(shared.EventCooldownStarted,
		"on_cooldown_started", cooldownHandler.Handle); err != nil {
		return err
	}

	if xpMirror != nil {
		xpHandler := eventhandler.NewOnXPAwardedHandler(xpMirror, log)
		if err := dispatcher.Register(shared.EventXPAwarded,
			"on_xp_awarded", xpHandler.Handle); err != nil {
			return err
		}
	}

	if viewCache == nil {
		log.Warn("session view cache unavailable, skipping invalidation handlers")
		return nil
	}

	realizedHandler := eventhandler.NewOnConsequenceRealizedHandler(viewCache, log)
	if err := dispatcher.Register(shared.EventConsequenceRealized,
		"on_consequence_realized", realizedHandler.Handle); err != nil {
		return err
	}

	approvedHandler := eventhandler.NewOnBusinessApprovedHandler(sessionRepo, viewCache, log)
	return dispatcher.Register(shared.EventBusinessApproved,
		"on_business_approved", approvedHandler.Handle)
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
