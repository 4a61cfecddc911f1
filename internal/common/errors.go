// Package common — errors.go определяет ошибки, которые используются
// во всех модулях платформы. У каждой ошибки есть Kind, по которому
// HTTP-слой выбирает статус ответа, а текст уходит клиенту как есть.
package common

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindBusiness
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Error — ошибка с категорией. Сентинелы ниже — *Error, поэтому
// errors.Is работает и после обёртки через %w.
type Error struct {
	Kind Kind
	Msg  string
	base *Error
}

func (e *Error) Error() string { return e.Msg }

// Unwrap отдаёт сентинел, от которого ошибка создана через Wrap.
func (e *Error) Unwrap() error {
	if e.base == nil {
		return nil
	}
	return e.base
}

func newError(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// Invalid создаёт ошибку валидации с произвольным текстом.
func Invalid(format string, args ...any) error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// Wrap уточняет текст сентинела, сохраняя его Kind и errors.Is(err, base).
func Wrap(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Msg: fmt.Sprintf(format, args...), base: base}
}

// KindOf возвращает категорию ошибки. Всё, что не *Error, считается
// инфраструктурной ошибкой.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// ErrStorage — общая ошибка хранилища. Не путать с бизнес-ошибками:
// вызывающий может повторить запрос.
var ErrStorage = newError(KindStorage, "internal storage error")

// StorageError оборачивает ошибку БД так, чтобы errors.Is(err, ErrStorage)
// было true, а исходная причина осталась доступной.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStorage, fmt.Errorf("%s: %w", op, err))
}

// Ошибки валидации
var (
	// ErrInvalidAmount — сумма нулевая, отрицательная или с лишними знаками
	ErrInvalidAmount = newError(KindValidation, "amount must be a positive value with at most 2 decimals")
	// ErrInvalidQuantity — количество единиц плана меньше 1
	ErrInvalidQuantity = newError(KindValidation, "quantity must be at least 1")
	// ErrBelowMinimum — сумма меньше минимальной
	ErrBelowMinimum = newError(KindValidation, "amount is below the minimum")
	// ErrMissingField — не заполнено обязательное поле
	ErrMissingField = newError(KindValidation, "required field is missing")
)

// Ошибки аккаунтов
var (
	// ErrDuplicateIdentity — телефон уже зарегистрирован
	ErrDuplicateIdentity = newError(KindConflict, "phone number already registered")
	// ErrInvalidCredentials — неверный телефон/ID или пароль
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid credentials")
	// ErrAccountBlocked — аккаунт деактивирован админом
	ErrAccountBlocked = newError(KindForbidden, "account is blocked")
	// ErrAppAccessRevoked — приложение удалено удалённо
	ErrAppAccessRevoked = newError(KindForbidden, "application has been removed")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = newError(KindNotFound, "user not found")
	// ErrInvalidInviteCode — код приглашения не найден
	ErrInvalidInviteCode = newError(KindValidation, "invalid invite code")
	// ErrWrongPassword — неверный текущий пароль
	ErrWrongPassword = newError(KindBusiness, "current password is incorrect")
	// ErrSessionExpired — сессия истекла или не существует
	ErrSessionExpired = newError(KindUnauthorized, "session expired, please log in again")
)

// Ошибки финансов
var (
	// ErrInsufficientBalance — недостаточно средств на балансе
	ErrInsufficientBalance = newError(KindBusiness, "insufficient balance")
	// ErrBadFundPassword — неверный платёжный пароль
	ErrBadFundPassword = newError(KindBusiness, "incorrect fund password")
	// ErrFundPasswordRequired — платёжный пароль не установлен, а он обязателен
	ErrFundPasswordRequired = newError(KindBusiness, "set a fund password before withdrawing")
	// ErrBankAccountRequired — для вывода нужен привязанный банковский счёт
	ErrBankAccountRequired = newError(KindBusiness, "link a bank account before withdrawing")
	// ErrNoPaymentChannel — нет активных реквизитов для пополнения
	ErrNoPaymentChannel = newError(KindBusiness, "no active payment channel")
	// ErrPaymentChannelNotFound — реквизиты не найдены
	ErrPaymentChannelNotFound = newError(KindNotFound, "payment channel not found")
	// ErrRequestNotFound — заявка не найдена
	ErrRequestNotFound = newError(KindNotFound, "request not found")
	// ErrRequestSettled — заявка уже одобрена или отклонена
	ErrRequestSettled = newError(KindConflict, "request already settled")
	// ErrDuplicateRequest — заявка с таким ID уже есть
	ErrDuplicateRequest = newError(KindConflict, "transaction id already submitted")
	// ErrProofRequired — нет скриншота оплаты
	ErrProofRequired = newError(KindValidation, "payment proof image is required")
)

// Ошибки планов и инвестиций
var (
	// ErrPlanNotFound — план не найден
	ErrPlanNotFound = newError(KindNotFound, "plan not found")
	// ErrPlanExpired — срок продажи плана истёк
	ErrPlanExpired = newError(KindBusiness, "plan has expired")
	// ErrRunInProgress — начисление уже запущено другим админом
	ErrRunInProgress = newError(KindConflict, "distribution run already in progress")
)

// Ошибки колеса и чек-ина
var (
	// ErrInsufficientChances — нет попыток колеса
	ErrInsufficientChances = newError(KindBusiness, "no lucky draw chances left")
	// ErrNoPrizes — каталог призов пуст
	ErrNoPrizes = newError(KindBusiness, "no prizes configured")
	// ErrPrizeNotFound — приз не найден
	ErrPrizeNotFound = newError(KindNotFound, "prize not found")
	// ErrAlreadyCheckedIn — сегодня уже отмечались
	ErrAlreadyCheckedIn = newError(KindBusiness, "already checked in today")
)

// Ошибки админки
var (
	// ErrNotAdmin — у сотрудника нет роли admin
	ErrNotAdmin = newError(KindForbidden, "admin role required")
	// ErrEmployeeNotFound — сотрудник не найден
	ErrEmployeeNotFound = newError(KindNotFound, "employee not found")
	// ErrEmployeeExists — логин занят
	ErrEmployeeExists = newError(KindConflict, "username already exists")
	// ErrEmployeeSuspended — сотрудник отстранён
	ErrEmployeeSuspended = newError(KindForbidden, "employee is suspended")
	// ErrProtectedEmployee — главного админа удалять нельзя
	ErrProtectedEmployee = newError(KindForbidden, "main admin account cannot be deleted")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = newError(KindForbidden, "too many attempts, try again in 1 hour")
)
