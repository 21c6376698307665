package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID             uuid.UUID  `json:"id"`
	UserName       string     `json:"user_name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Phone          string     `json:"phone,omitempty"`
	EmailConfirmed bool       `json:"email_confirmed"`
	Enabled        bool       `json:"enabled"`
	RegisteredAt   time.Time  `json:"registered_at"`
	FailedLogins   int        `json:"-"`
	LockoutEnd     *time.Time `json:"-"`
}

// AccountInfo is the public projection of an account (no credentials,
// no lockout bookkeeping).
type AccountInfo struct {
	ID           uuid.UUID `json:"id"`
	UserName     string    `json:"user_name"`
	Phone        string    `json:"phone,omitempty"`
	Enabled      bool      `json:"enabled"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (a *Account) ToInfo() *AccountInfo {
	return &AccountInfo{
		ID:           a.ID,
		UserName:     a.UserName,
		Phone:        a.Phone,
		Enabled:      a.Enabled,
		RegisteredAt: a.RegisteredAt,
	}
}

type RegisterRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	URL      string `json:"url,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RecoverPasswordSendRequest struct {
	Email string `json:"email"`
	URL   string `json:"url,omitempty"`
}

type RecoverPasswordRequest struct {
	AccountID   string `json:"account_id"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// Role names assigned to accounts.
const (
	RoleAdmin  = "Admin"
	RoleUser   = "User"
	RoleMaster = "Master"
)

const MinUserNameLength = 3

// IsReservedUserName rejects nicknames that impersonate staff. The two
// substring probes are deliberately case-sensitive: "Admin" and "admin" are
// blocked, "ADMIN" is not.
func IsReservedUserName(userName string) bool {
	return strings.Contains(userName, "Admin") || strings.Contains(userName, "admin")
}

func (r *RegisterRequest) Normalize() {
	r.UserName = strings.TrimSpace(r.UserName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegisterRequest) Validate() error {
	if r.UserName == "" {
		return fmt.Errorf("user name is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
