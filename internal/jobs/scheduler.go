// Package jobs управляет фоновыми задачами (cron): начисление дохода
// по расписанию, повтор невыплаченных комиссий и чистка сессий.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/features/distribution"
)

// Distributor — ежедневное начисление.
type Distributor interface {
	Run(ctx context.Context) (*distribution.Result, error)
}

// CommissionRetrier — повтор outbox комиссий.
type CommissionRetrier interface {
	RetryPending(ctx context.Context) (paid, failed int, err error)
}

// Purger удаляет просроченные записи.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgerFunc — адаптер функции к Purger.
type PurgerFunc func(ctx context.Context) (int64, error)

func (f PurgerFunc) Purge(ctx context.Context) (int64, error) { return f(ctx) }

// purgeSpec — чистка раз в час.
const purgeSpec = "15 * * * *"

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron         *cron.Cron
	cfg          *config.Config
	distribution Distributor
	referrals    CommissionRetrier
	purgers      []Purger
}

// NewScheduler создаёт планировщик в часовом поясе платформы.
func NewScheduler(cfg *config.Config, dist Distributor, referrals CommissionRetrier, purgers ...Purger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(cfg.Location())),
		cfg:          cfg,
		distribution: dist,
		referrals:    referrals,
		purgers:      purgers,
	}
}

// Start регистрирует задачи и запускает cron. Начисление по расписанию
// включается только при заданном DISTRIBUTION_CRON.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.DistributionCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.DistributionCron, func() { s.runDistribution(ctx) }); err != nil {
			return fmt.Errorf("расписание начисления: %w", err)
		}
	}
	if s.cfg.ReferralRetryCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReferralRetryCron, func() { s.retryCommissions(ctx) }); err != nil {
			return fmt.Errorf("расписание комиссий: %w", err)
		}
	}
	if _, err := s.cron.AddFunc(purgeSpec, func() { s.purge(ctx) }); err != nil {
		return fmt.Errorf("расписание чистки: %w", err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"timezone":     s.cfg.AppTimezone,
		"distribution": s.cfg.DistributionCron,
		"jobs":         len(s.cron.Entries()),
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) runDistribution(ctx context.Context) {
	log.Info("[CRON] Ежедневное начисление дохода")
	res, err := s.distribution.Run(ctx)
	if errors.Is(err, common.ErrRunInProgress) {
		log.Info("[CRON] Начисление уже идёт, пропускаем")
		return
	}
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка начисления")
		return
	}
	log.WithFields(log.Fields{
		"paid":   res.Paid,
		"amount": res.Amount.String(),
		"failed": res.Failed,
	}).Info("[CRON] Начисление завершено")
}

func (s *Scheduler) retryCommissions(ctx context.Context) {
	paid, failed, err := s.referrals.RetryPending(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка повтора комиссий")
		return
	}
	if paid > 0 || failed > 0 {
		log.WithFields(log.Fields{"paid": paid, "failed": failed}).Info("[CRON] Повтор комиссий")
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var total int64
	for _, p := range s.purgers {
		n, err := p.Purge(ctx)
		if err != nil {
			log.WithError(err).Warn("[CRON] Ошибка чистки")
			continue
		}
		total += n
	}
	log.WithField("deleted", total).Debug("[CRON] Чистка просроченных записей")
}
