package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/features/activity"
	"wealthfund.in/platform/internal/ledger"
)

// Service — аккаунты пользователей.
type Service struct {
	store      ledger.Store
	logins     LoginHistory
	sessions   auth.SessionStore
	activity   activity.Recorder
	sessionTTL time.Duration
	now        common.Clock

	newCode func() string
}

func NewService(store ledger.Store, logins LoginHistory, sessions auth.SessionStore, rec activity.Recorder, sessionTTL time.Duration, clock common.Clock) *Service {
	return &Service{
		store:      store,
		logins:     logins,
		sessions:   sessions,
		activity:   rec,
		sessionTTL: sessionTTL,
		now:        clock,
		newCode:    referralCode,
	}
}

// referralCode — 6 символов из A-Z2-7.
func referralCode() string {
	return rand.Text()[:referralCodeLen]
}

// Register создаёт аккаунт. Неизвестный код приглашения — ErrInvalidInviteCode.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*ledger.Account, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	acc := &ledger.Account{
		Phone:            in.Phone,
		Name:             in.Name,
		IsActive:         true,
		AppAccess:        true,
		LuckyDrawChances: StartingChances,
		Language:         "en",
	}

	if in.InviteCode != "" {
		referrer, err := s.store.GetByReferralCode(ctx, in.InviteCode)
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrInvalidInviteCode
		}
		if err != nil {
			return nil, err
		}
		acc.ReferrerID = &referrer.ID
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc.PasswordHash = hash

	for attempt := 1; ; attempt++ {
		acc.ReferralCode = s.newCode()
		err = s.store.Create(ctx, acc, WelcomeMessage)
		if !errors.Is(err, ledger.ErrReferralCodeTaken) || attempt == maxCodeAttempts {
			break
		}
		log.WithField("attempt", attempt).Debug("Реферальный код занят, генерируем новый")
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  acc.ID,
		"phone":    common.MaskPhone(acc.Phone),
		"referred": acc.ReferrerID != nil,
	}).Info("Новый пользователь зарегистрирован")
	s.activity.Record(ctx, acc.Name, activity.ActionRegister, "New account "+common.MaskPhone(acc.Phone))

	return acc, nil
}

// Login проверяет пароль и выдаёт сессию. identifier — телефон или ID.
func (s *Service) Login(ctx context.Context, identifier, password, device, ip string) (*Session, error) {
	acc, err := s.find(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(password, acc.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if err := checkAccess(acc); err != nil {
		return nil, err
	}

	token, err := auth.Issue(ctx, s.sessions, acc.ID, s.sessionTTL, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.logins.Record(ctx, acc.ID, device, ip, LoginHistorySize); err != nil {
		log.WithError(err).WithField("user_id", acc.ID).Warn("Не удалось записать вход")
	}

	log.WithField("user_id", acc.ID).Debug("Вход пользователя")
	s.activity.Record(ctx, acc.Name, activity.ActionLogin, "Login from "+ip)

	return &Session{Token: token, Account: acc}, nil
}

func (s *Service) find(ctx context.Context, identifier string) (*ledger.Account, error) {
	acc, err := s.store.GetByPhone(ctx, identifier)
	if errors.Is(err, common.ErrUserNotFound) {
		id, perr := strconv.ParseInt(identifier, 10, 64)
		if perr != nil {
			return nil, common.ErrInvalidCredentials
		}
		acc, err = s.store.Get(ctx, id)
	}
	if errors.Is(err, common.ErrUserNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	return acc, err
}

// checkAccess — удалённое приложение проверяется раньше блокировки.
func checkAccess(acc *ledger.Account) error {
	if !acc.AppAccess {
		return common.ErrAppAccessRevoked
	}
	if !acc.IsActive {
		return common.ErrAccountBlocked
	}
	return nil
}

// Authenticate возвращает владельца токена, если ему всё ещё можно в приложение.
func (s *Service) Authenticate(ctx context.Context, token string) (*ledger.Account, error) {
	if token == "" {
		return nil, common.ErrSessionExpired
	}
	userID, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return nil, err
	}
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		return nil, common.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if err := checkAccess(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, auth.HashToken(token))
}

func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	acc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	invs, err := s.store.Investments(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{Account: acc, Investments: invs, HasFundPwd: acc.HasFundPassword()}, nil
}

func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]ledger.Transaction, error) {
	return s.store.Transactions(ctx, userID, limit)
}

// MarkRead помечает все уведомления прочитанными.
func (s *Service) MarkRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkRead(ctx, userID)
}

func (s *Service) LoginActivity(ctx context.Context, userID int64) ([]LoginRecord, error) {
	return s.logins.List(ctx, userID)
}

// Team возвращает приглашённых. Телефоны маскируются.
func (s *Service) Team(ctx context.Context, userID int64) (*Team, error) {
	acc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Team(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Phone = common.MaskPhone(members[i].Phone)
	}
	if members == nil {
		members = []ledger.TeamMember{}
	}
	return &Team{
		Members:    members,
		Count:      len(members),
		TeamIncome: acc.TeamIncome,
		Code:       acc.ReferralCode,
	}, nil
}

func (s *Service) SetBankAccount(ctx context.Context, userID int64, bank ledger.BankAccount) (*ledger.Account, error) {
	bank.Holder = strings.TrimSpace(bank.Holder)
	bank.Number = strings.TrimSpace(bank.Number)
	bank.IFSC = strings.ToUpper(strings.TrimSpace(bank.IFSC))
	if err := validBank(bank); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, userID, func(b *ledger.Book) error {
		b.Account.BankAccount = &bank
		return nil
	})
}

// SetFundPassword ставит или меняет платёжный пароль.
// При смене нужен текущий платёжный пароль.
func (s *Service) SetFundPassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < minFundPasswordLen {
		return common.Invalid("fund password must be at least %d characters", minFundPasswordLen)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash fund password: %w", err)
	}
	_, err = s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if b.Account.HasFundPassword() && !auth.VerifyPassword(current, *b.Account.FundPasswordHash) {
			return common.ErrBadFundPassword
		}
		b.Account.FundPasswordHash = &hash
		return nil
	})
	return err
}

// ChangePassword меняет пароль входа после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.store.Update(ctx, userID, func(b *ledger.Book) error {
		if !auth.VerifyPassword(current, b.Account.PasswordHash) {
			return common.ErrWrongPassword
		}
		b.Account.PasswordHash = hash
		return nil
	})
	return err
}

// --- Админка ---

func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]ledger.Account, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*ledger.Account, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Dashboard(ctx context.Context) (ledger.Totals, error) {
	return s.store.Totals(ctx)
}

// Update применяет частичное изменение. Новый баланс пишется
// корректирующей транзакцией на разницу.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, actor string) (*ledger.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	acc, err := s.store.Update(ctx, id, func(b *ledger.Book) error {
		a := b.Account
		if in.Name != nil {
			a.Name = strings.TrimSpace(*in.Name)
		}
		if in.Language != nil {
			a.Language = *in.Language
		}
		if in.IsActive != nil {
			a.IsActive = *in.IsActive
		}
		if in.AppAccess != nil {
			a.AppAccess = *in.AppAccess
		}
		if in.LuckyDrawChances != nil {
			a.LuckyDrawChances = *in.LuckyDrawChances
		}
		if in.Balance != nil {
			b.SetBalance(*in.Balance, "Balance adjusted by admin")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": id, "actor": actor}).Info("Пользователь изменён админом")
	s.activity.Record(ctx, actor, activity.ActionUserUpdated, fmt.Sprintf("Updated user #%d", id))
	return acc, nil
}

// Delete удаляет пользователя вместе с его сессиями.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": id, "actor": actor}).Warn("Пользователь удалён")
	s.activity.Record(ctx, actor, activity.ActionUserDeleted,
		fmt.Sprintf("Deleted user #%d (%s)", id, acc.Name))
	return nil
}

// SetAppAccess удалённо удаляет (false) или восстанавливает (true) приложение.
func (s *Service) SetAppAccess(ctx context.Context, id int64, access bool, actor string) (*ledger.Account, error) {
	acc, err := s.store.Update(ctx, id, func(b *ledger.Book) error {
		b.Account.AppAccess = access
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, accessAction(access), fmt.Sprintf("User #%d (%s)", id, acc.Name))
	return acc, nil
}

// SetAppAccessAll — то же для всех пользователей сразу.
func (s *Service) SetAppAccessAll(ctx context.Context, access bool, actor string) (int64, error) {
	n, err := s.store.SetAppAccessAll(ctx, access)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"access": access, "users": n, "actor": actor}).Warn("Доступ к приложению изменён для всех")
	s.activity.Record(ctx, actor, accessAction(access), fmt.Sprintf("All users (%d)", n))
	return n, nil
}

func accessAction(access bool) string {
	if access {
		return activity.ActionRestore
	}
	return activity.ActionUninstall
}

// ResetPassword ставит новый пароль и закрывает все сессии пользователя.
func (s *Service) ResetPassword(ctx context.Context, id int64, password, actor string) error {
	if len(password) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.store.Update(ctx, id, func(b *ledger.Book) error {
		b.Account.PasswordHash = hash
		return nil
	}); err != nil {
		return err
	}
	if err := s.sessions.DeleteAll(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, activity.ActionUserUpdated, fmt.Sprintf("Reset password of user #%d", id))
	return nil
}
