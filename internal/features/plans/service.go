package plans

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Service управляет каталогом планов.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List возвращает все планы, включая истёкшие.
func (s *Service) List(ctx context.Context) ([]Plan, error) {
	return s.store.List(ctx)
}

// Get возвращает план или ErrPlanNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Plan, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Plan, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var p Plan
	in.apply(&p)
	if err := s.store.Create(ctx, &p); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"plan_id": p.ID, "name": p.Name}).Info("План создан")
	return &p, nil
}

// Update меняет условия плана. Уже купленные инвестиции не меняются.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Plan, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"plan_id": p.ID}).Info("План обновлён")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.WithField("plan_id", id).Info("План удалён")
	return nil
}
