// Package main - точка входа фоновых процессов (Worker) практикума.
//
// Worker отвечает за периодические задачи симуляции:
// - Реализация созревших отложенных следствий
// - Продвижение бизнес-симуляций (обработка регистраций, рынок)
// - Архивация завершённых сессий за порогом хранения
//
// Следствия должны наступать даже для сессий, в которые никто не
// заходит: погашение кредита не ждёт, пока ученик откроет приложение.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilim-hub/bilim-practice-hub/config"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/command"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/eventhandler"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/persistence/redis"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/scheduler"
	"github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/scheduler/jobs"
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
	log := setupLogger(cfg)
	log.Info("starting practice hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
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
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker тоже должен видеть актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *rediscache.Cache
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
			log.Warn("failed to connect to Redis, view cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			viewCache = rediscache.NewSessionViewCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	store := postgres.NewStore(dbConn)
	sessionRepo := store.Sessions()
	consequenceRepo := store.Consequences()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS И DISPATCHER
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

	if err := registerEventHandlers(dispatcher, sessionRepo, viewCache, log); err != nil {
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
	// 8. ИНИЦИАЛИЗАЦИЯ ОБРАБОТЧИКОВ КОМАНД
	// ─────────────────────────────────────────────────────────────────────────
	rng := rand.New(rand.NewSource(timeutil.Now().UnixNano()))

	businessCfg := business.Config{
		ProcessingWindow: cfg.Engine.RegistrationWindow,
		MarketVolatility: cfg.Engine.MarketVolatility,
	}
	// При выключенном рыночном флаге тики продолжают гнать регистрации,
	// но рыночная поправка баланса обнуляется.
	if !cfg.Features.IsEnabled(config.FeatureSimMarket, nil) {
		log.Warn("market fluctuation disabled by feature flag", "feature", config.FeatureSimMarket)
		businessCfg.MarketVolatility = 0
	}

	realizeHandler := command.NewRealizeDueConsequencesHandler(
		store, consequence.NewScheduler(), eventBus)
	tickHandler := command.NewTickBusinessHandler(store, eventBus, businessCfg, rng)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ И ЗАПУСК ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker will idle until shutdown")
		waitForShutdown(log)
		return nil
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	realizeJob := jobs.NewRealizeDueJob(consequenceRepo, realizeHandler, log,
		jobs.DefaultRealizeDueConfig())
	if err := sched.Register(realizeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RealizeInterval)); err != nil {
		return fmt.Errorf("failed to register realize job: %w", err)
	}

	tickJob := jobs.NewTickBusinessesJob(sessionRepo, tickHandler, log,
		jobs.DefaultTickBusinessesConfig())
	if err := sched.Register(tickJob, scheduler.NewIntervalSchedule(cfg.Scheduler.TickInterval)); err != nil {
		return fmt.Errorf("failed to register tick job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		_ = sched.Stop()
	}()

	// Архивация идёт раз в сутки по cron-расписанию в таймзоне практикума,
	// чтобы сжатие не конкурировало с дневным трафиком.
	archiveExpr := "disabled"
	nextArchive := "disabled"
	if cfg.Features.IsEnabled(config.FeatureSimArchival, nil) {
		archiveConfig := jobs.DefaultArchiveSessionsConfig()
		archiveConfig.Retention = cfg.Scheduler.ArchiveRetention

		archiveJob, err := jobs.NewArchiveSessionsJob(sessionRepo, sessionRepo, eventBus, log, archiveConfig)
		if err != nil {
			return fmt.Errorf("failed to create archive job: %w", err)
		}

		cronSched := scheduler.NewCronScheduler(
			scheduler.WithLocation(cfg.App.Location),
			scheduler.WithCronLogger(log),
		)
		archiveExpr = fmt.Sprintf("%d %d * * *", cfg.Scheduler.ArchiveMinute, cfg.Scheduler.ArchiveHour)
		if err := cronSched.AddJob(archiveJob.Name(), archiveExpr, archiveJob); err != nil {
			return fmt.Errorf("failed to register archive job: %w", err)
		}
		if err := cronSched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cron scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping cron scheduler...")
			cronSched.Stop()
		}()

		nextArchive = timeutil.NextDailyRun(timeutil.Now(),
			cfg.Scheduler.ArchiveHour, cfg.Scheduler.ArchiveMinute, cfg.App.Location).
			Format("2006-01-02 15:04 MST")
	} else {
		log.Warn("session archival disabled by feature flag", "feature", config.FeatureSimArchival)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("practice hub worker is running",
		"realize_interval", cfg.Scheduler.RealizeInterval.String(),
		"tick_interval", cfg.Scheduler.TickInterval.String(),
		"archive_cron", archiveExpr,
		"next_archive_run", nextArchive,
	)

	waitForShutdown(log)
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// registerEventHandlers подключает обработчики доменных событий.
// Обработчики инвалидации кэша регистрируются только при живом Redis.
func registerEventHandlers(
	dispatcher *messaging.Dispatcher,
	sessionRepo *postgres.SessionRepository,
	viewCache *rediscache.SessionViewCache,
	log *slog.Logger,
) error {
	cooldownHandler := eventhandler.NewOnCooldownStartedHandler(log)
	if err := dispatcher.Register(shared.EventCooldownStarted,
		"on_cooldown_started", cooldownHandler.Handle); err != nil {
		return err
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

// waitForShutdown блокируется до сигнала завершения.
func waitForShutdown(log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
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
		// JSON формат для агрегаторов логов
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
