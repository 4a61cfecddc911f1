// Package staff — сотрудники админки: вход по паролю с защитой от
// перебора, сессии, роли и управление сотрудниками.
package staff

import (
	"strings"
	"time"

	"wealthfund.in/platform/internal/common"
)

// MainAdmin — логин главного администратора. Его нельзя удалить или отстранить.
const MainAdmin = "admin"

const (
	minPasswordLen = 8
	maxUsernameLen = 64
)

// Employee — сотрудник.
type Employee struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Name         string    `gorm:"size:100" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:16;not null" json:"role"`
	IsSuspended  bool      `gorm:"not null" json:"isSuspended"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Employee) TableName() string {
	return "employees"
}

// Staff — сотрудник в контексте запроса.
func (e *Employee) Staff() common.Staff {
	return common.Staff{ID: e.ID, Username: e.Username, Role: e.Role}
}

func validRole(role string) bool {
	return role == common.RoleAdmin || role == common.RoleEmployee
}

// CreateInput — новый сотрудник.
type CreateInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in *CreateInput) normalize() {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = common.RoleEmployee
	}
}

func (in CreateInput) Validate() error {
	if in.Username == "" || len(in.Username) > maxUsernameLen {
		return common.Invalid("username must be 1 to %d characters", maxUsernameLen)
	}
	if strings.ContainsAny(in.Username, " \t\n") {
		return common.Invalid("username cannot contain spaces")
	}
	if len(in.Password) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	if !validRole(in.Role) {
		return common.Invalid("unknown role %q", in.Role)
	}
	return nil
}

// UpdateInput — частичное изменение сотрудника.
type UpdateInput struct {
	Name        *string `json:"name"`
	Role        *string `json:"role"`
	IsSuspended *bool   `json:"isSuspended"`
	Password    *string `json:"password"`
}

func (in UpdateInput) Validate() error {
	if in.Role != nil && !validRole(*in.Role) {
		return common.Invalid("unknown role %q", *in.Role)
	}
	if in.Password != nil && len(*in.Password) < minPasswordLen {
		return common.Invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// Session — результат входа.
type Session struct {
	Token    string    `json:"token"`
	Employee *Employee `json:"employee"`
}
