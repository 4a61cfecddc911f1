package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
)

// lockoutWindow — за какое окно считаются неудачные попытки.
const lockoutWindow = time.Hour

// Service управляет сотрудниками и их сессиями.
type Service struct {
	store       Store
	attempts    Attempts
	sessions    auth.SessionStore
	activity    activity.Recorder
	maxAttempts int
	sessionTTL  time.Duration
	now         common.Clock
}

func NewService(store Store, attempts Attempts, sessions auth.SessionStore, rec activity.Recorder, maxAttempts int, sessionTTL time.Duration, clock common.Clock) *Service {
	return &Service{
		store:       store,
		attempts:    attempts,
		sessions:    sessions,
		activity:    rec,
		maxAttempts: maxAttempts,
		sessionTTL:  sessionTTL,
		now:         clock,
	}
}

// Seed создаёт главного администратора, если его ещё нет.
func (s *Service) Seed(ctx context.Context, passwordHash string) error {
	_, err := s.store.GetByUsername(ctx, MainAdmin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrEmployeeNotFound) {
		return err
	}
	e := &Employee{Username: MainAdmin, Name: "Administrator", PasswordHash: passwordHash, Role: common.RoleAdmin}
	if err := s.store.Create(ctx, e); err != nil && !errors.Is(err, common.ErrEmployeeExists) {
		return err
	}
	log.Info("Главный администратор создан")
	return nil
}

// Login проверяет пароль сотрудника по Argon2id.
// maxAttempts неудачных попыток за час блокируют вход на час.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	failures, err := s.attempts.Failures(ctx, username, s.now().Add(-lockoutWindow))
	if err != nil {
		return nil, err
	}
	if failures >= s.maxAttempts {
		log.WithField("username", username).Warn("Вход сотрудника заблокирован после неудачных попыток")
		return nil, common.ErrTooManyAttempts
	}

	e, err := s.store.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, common.ErrEmployeeNotFound) {
		return nil, err
	}
	match := e != nil && auth.VerifyPassword(password, e.PasswordHash)

	if err := s.attempts.Log(ctx, username, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		return nil, common.ErrInvalidCredentials
	}
	if e.IsSuspended {
		return nil, common.ErrEmployeeSuspended
	}

	token, err := auth.Issue(ctx, s.sessions, e.ID, s.sessionTTL, s.now())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"employee_id": e.ID, "role": e.Role}).Info("Вход сотрудника")
	s.activity.Record(ctx, e.Username, activity.ActionStaffLogin, "Admin panel login")
	return &Session{Token: token, Employee: e}, nil
}

// Authenticate возвращает сотрудника по токену сессии.
func (s *Service) Authenticate(ctx context.Context, token string) (common.Staff, error) {
	if token == "" {
		return common.Staff{}, common.ErrSessionExpired
	}
	id, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return common.Staff{}, err
	}
	e, err := s.store.Get(ctx, id)
	if errors.Is(err, common.ErrEmployeeNotFound) {
		return common.Staff{}, common.ErrSessionExpired
	}
	if err != nil {
		return common.Staff{}, err
	}
	if e.IsSuspended {
		return common.Staff{}, common.ErrEmployeeSuspended
	}
	return e.Staff(), nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, auth.HashToken(token))
}

// ChangePassword меняет свой пароль после проверки текущего.
// Остальные сессии сотрудника закрываются.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next, token string) error {
	if len(next) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(current, e.PasswordHash) {
		return common.ErrWrongPassword
	}
	if e.PasswordHash, err = auth.HashPassword(next); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Save(ctx, e); err != nil {
		return err
	}

	if err := s.sessions.DeleteAll(ctx, id); err != nil {
		return err
	}
	if token != "" {
		if err := s.sessions.Create(ctx, auth.HashToken(token), id, s.now().Add(s.sessionTTL)); err != nil {
			return err
		}
	}
	s.activity.Record(ctx, e.Username, activity.ActionStaffPassword, "Password changed")
	return nil
}

func requireAdmin(caller common.Staff) error {
	if !caller.IsAdmin() {
		return common.ErrNotAdmin
	}
	return nil
}

// List — все сотрудники. Только для admin.
func (s *Service) List(ctx context.Context, caller common.Staff) ([]Employee, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, caller common.Staff, in CreateInput) (*Employee, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetByUsername(ctx, in.Username); err == nil {
		return nil, common.ErrEmployeeExists
	} else if !errors.Is(err, common.ErrEmployeeNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	e := &Employee{Username: in.Username, Name: in.Name, PasswordHash: hash, Role: in.Role}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"employee_id": e.ID, "by": caller.Username}).Info("Сотрудник создан")
	return e, nil
}

// Update меняет сотрудника. Главного админа нельзя отстранить или понизить.
func (s *Service) Update(ctx context.Context, caller common.Staff, id int64, in UpdateInput) (*Employee, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Username == MainAdmin {
		if (in.IsSuspended != nil && *in.IsSuspended) || (in.Role != nil && *in.Role != common.RoleAdmin) {
			return nil, common.ErrProtectedEmployee
		}
	}

	if in.Name != nil {
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		e.Role = *in.Role
	}
	if in.IsSuspended != nil {
		e.IsSuspended = *in.IsSuspended
	}
	if in.Password != nil {
		if e.PasswordHash, err = auth.HashPassword(*in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}

	// Отстранение и новый пароль закрывают все сессии
	if e.IsSuspended || in.Password != nil {
		if err := s.sessions.DeleteAll(ctx, id); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, caller common.Staff, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Username == MainAdmin {
		return common.ErrProtectedEmployee
	}
	if err := s.sessions.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.WithFields(log.Fields{"employee_id": id, "by": caller.Username}).Warn("Сотрудник удалён")
	return nil
}
