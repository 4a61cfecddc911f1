// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: пул БД, хранилища, сервисы, обработчики,
// HTTP-роутер и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/db/postgres"
	"wealthfund.in/platform/internal/features/accounts"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/features/checkin"
	"wealthfund.in/platform/internal/features/distribution"
	"wealthfund.in/platform/internal/features/finance"
	"wealthfund.in/platform/internal/features/investments"
	"wealthfund.in/platform/internal/features/luckydraw"
	"wealthfund.in/platform/internal/features/plans"
	"wealthfund.in/platform/internal/features/staff"
	"wealthfund.in/platform/internal/jobs"
	"wealthfund.in/platform/internal/ledger"
	"wealthfund.in/platform/internal/lock"
	"wealthfund.in/platform/internal/notify"
	"wealthfund.in/platform/internal/server"
	"wealthfund.in/platform/internal/storage"
)

// attemptsRetention — сколько хранить попытки входа сотрудников.
const attemptsRetention = 24 * time.Hour

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Limiter   *server.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	debug := cfg.AppEnv == "development"
	clock := common.PlatformClock(cfg.Location())

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	gdb, err := postgres.OpenGorm(pool, debug)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// === 2. Внешние сервисы ===
	rdb, err := lock.ConnectRedis(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}
	var locker lock.Locker
	if rdb != nil {
		locker = lock.NewRedis(rdb)
		log.Info("Блокировка начислений: Redis")
	} else {
		locker = lock.NewPostgres(pool)
		log.Info("Блокировка начислений: advisory lock PostgreSQL")
	}

	var proofs storage.ProofStore
	if cfg.S3Bucket != "" {
		s3, err := storage.NewS3(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка инициализации S3: %w", err)
		}
		proofs = s3
	} else {
		log.Warn("S3_BUCKET не задан, скриншоты оплат хранятся в памяти")
		proofs = storage.NewMemory()
	}

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID, cfg.Location(), debug)
	if err != nil {
		log.WithError(err).Warn("Telegram недоступен, уведомления админам отключены")
		notifier = notify.Nop{}
	}

	// === 3. Хранилища ===
	store := ledger.NewRepository(pool, clock)
	journal := activity.NewRepository(pool)
	userSessions := auth.NewUserSessions(pool)
	staffSessions := auth.NewStaffSessions(pool)
	attempts := staff.NewAttemptRepository(pool)

	// === 4. Сервисы ===
	accountService := accounts.NewService(store, accounts.NewLoginRepository(pool), userSessions, journal, cfg.SessionTTL, clock)
	staffService := staff.NewService(staff.NewRepository(gdb), attempts, staffSessions, journal,
		cfg.StaffMaxAttempts, cfg.SessionTTL, clock)
	if err := staffService.Seed(ctx, cfg.AdminPasswordHash); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания администратора: %w", err)
	}

	planService := plans.NewService(plans.NewRepository(gdb))
	referrals := investments.NewReferrals(store, cfg.Finance.CommissionRate, cfg.ReferralMaxAttempts)
	investService := investments.NewService(store, planService, referrals, journal, clock)
	distService := distribution.NewService(store, locker, cfg.DistributionLockTTL, journal, clock)
	financeService := finance.NewService(store, finance.NewChannelRepository(gdb), proofs, notifier, journal, cfg)
	drawService := luckydraw.NewService(luckydraw.NewRepository(gdb), store, journal)
	checkinService := checkin.NewService(store, journal, clock)

	// === 5. Обработчики и роутер ===
	accountHandler := accounts.NewHandler(accountService)
	staffHandler := staff.NewHandler(staffService)
	planHandler := plans.NewHandler(planService)
	financeHandler := finance.NewHandler(financeService, cfg.ProofMaxBytes)
	drawHandler := luckydraw.NewHandler(drawService)

	limiter := server.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	router := server.NewRouter(cfg, server.Options{
		Users:   accountService,
		Staff:   staffService,
		Limiter: limiter,
		Routes: server.Routes{
			Public: []func(*mux.Router){accountHandler.RegisterPublic},
			User: []func(*mux.Router){
				accountHandler.RegisterUser,
				planHandler.RegisterUser,
				investments.NewHandler(investService).RegisterUser,
				financeHandler.RegisterUser,
				drawHandler.RegisterUser,
				checkin.NewHandler(checkinService).RegisterUser,
			},
			StaffPublic: []func(*mux.Router){staffHandler.RegisterPublic},
			Admin: []func(*mux.Router){
				staffHandler.RegisterAdmin,
				accountHandler.RegisterAdmin,
				activity.NewHandler(journal).RegisterAdmin,
				planHandler.RegisterAdmin,
				financeHandler.RegisterAdmin,
				drawHandler.RegisterAdmin,
				distribution.NewHandler(distService).RegisterAdmin,
			},
		},
	})

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg, distService, referrals,
		userSessions,
		staffSessions,
		jobs.PurgerFunc(func(ctx context.Context) (int64, error) {
			return attempts.Purge(ctx, time.Now().Add(-attemptsRetention))
		}),
	)

	return &App{
		Server:    server.New(cfg, router),
		Scheduler: scheduler,
		DB:        pool,
		Redis:     rdb,
		Limiter:   limiter,
	}, nil
}

// Close освобождает соединения.
func (a *App) Close() {
	a.Limiter.Close()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}
