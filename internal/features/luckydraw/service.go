// Package luckydraw — service.go проводит одну попытку от списания до зачисления.
package luckydraw

import (
	"context"
	"math/rand/v2"
	"sort"

	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
)

type Service struct {
	prizes   Store
	store    ledger.Store
	activity activity.Recorder

	// pick выбирает индекс из n. В тестах детерминирован.
	pick func(n int) int
}

func NewService(prizes Store, store ledger.Store, rec activity.Recorder) *Service {
	return &Service{prizes: prizes, store: store, activity: rec, pick: rand.IntN}
}

// Play тратит одну попытку и выдаёт приз.
// Без призов в каталоге попытка не списывается.
func (s *Service) Play(ctx context.Context, userID int64) (*Outcome, error) {
	all, err := s.prizes.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, common.ErrNoPrizes
	}
	pool := candidates(all)

	var won Prize
	acc, err := s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if b.Account.LuckyDrawChances <= 0 {
			return common.ErrInsufficientChances
		}
		b.Account.LuckyDrawChances--

		won = pool[s.pick(len(pool))]
		if won.Type.Credits() && won.Amount.IsPositive() {
			b.Credit(ledger.KindPrize, won.Amount, "Won "+won.Name+" in Lucky Draw")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"prize_id": won.ID,
		"prize":    won.Name,
		"left":     acc.LuckyDrawChances,
	}).Info("Попытка колеса")
	s.activity.Record(ctx, acc.Name, activity.ActionLuckyDraw, "Played Lucky Draw - Won "+won.Name)

	return &Outcome{Prize: won, Account: acc}, nil
}

// candidates — призы, из которых идёт выбор: принудительные, если они заданы.
func candidates(all []Prize) []Prize {
	var forced []Prize
	for _, p := range all {
		if p.ForceWin {
			forced = append(forced, p)
		}
	}
	if len(forced) > 0 {
		return forced
	}
	return all
}

// --- Каталог призов ---

func (s *Service) Prizes(ctx context.Context) ([]Prize, error) {
	return s.prizes.List(ctx)
}

func (s *Service) Create(ctx context.Context, in Input) (*Prize, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var p Prize
	in.apply(&p)
	if err := s.prizes.Create(ctx, &p); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"prize_id": p.ID, "name": p.Name}).Info("Приз создан")
	return &p, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (*Prize, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.prizes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.prizes.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.prizes.Delete(ctx, id)
}

// SetForceWin задаёт призы, которые будут выпадать. Пустой список — обычный режим.
func (s *Service) SetForceWin(ctx context.Context, ids []int64) error {
	seen := make(map[int64]bool, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	if err := s.prizes.SetForceWin(ctx, uniq); err != nil {
		return err
	}
	log.WithField("prize_ids", uniq).Info("Выигрышные призы обновлены")
	return nil
}
