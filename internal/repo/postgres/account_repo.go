package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nailstore/nailstore-api/internal/domain"
)

const (
	tokenKindConfirmEmail  = "confirm_email"
	tokenKindResetPassword = "reset_password"
)

// ErrTokenInvalid marks a confirmation/reset code that is unknown, expired or
// already spent.
var ErrTokenInvalid = errors.New("invalid or expired code")

// AccountRepo is the identity store. Password hashing stays inside this
// package; services above never see a hash algorithm.
type AccountRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByUserName(ctx context.Context, userName string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account, password string) error
	Delete(ctx context.Context, id uuid.UUID) error

	VerifyPassword(a *domain.Account, password string) (bool, error)

	GenerateConfirmationToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error)
	GenerateResetToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error)
	ConfirmEmail(ctx context.Context, accountID uuid.UUID, code string) error
	ResetPassword(ctx context.Context, accountID uuid.UUID, code, newPassword string) error

	Roles(ctx context.Context, accountID uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, accountID uuid.UUID, role string) error

	RecordFailedAttempt(ctx context.Context, accountID uuid.UUID) (int, error)
	SetLockout(ctx context.Context, accountID uuid.UUID, until time.Time) error
	ResetAccess(ctx context.Context, accountID uuid.UUID) error
}

type AccountRepoImpl struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepoImpl { return &AccountRepoImpl{pool: pool} }

const accountCols = `id, user_name, email, password_hash, phone, email_confirmed, enabled, registered_at, failed_logins, lockout_end`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.UserName, &a.Email, &a.PasswordHash, &a.Phone,
		&a.EmailConfirmed, &a.Enabled, &a.RegisteredAt, &a.FailedLogins, &a.LockoutEnd,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanAccount(r.pool.QueryRow(ctx, q, id))
}

func (r *AccountRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE normalized_email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanAccount(r.pool.QueryRow(ctx, q, normalize(email)))
}

func (r *AccountRepoImpl) FindByUserName(ctx context.Context, userName string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE normalized_user_name = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanAccount(r.pool.QueryRow(ctx, q, normalize(userName)))
}

func (r *AccountRepoImpl) Create(ctx context.Context, a *domain.Account, password string) error {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	const q = `
		INSERT INTO accounts (id, user_name, normalized_user_name, email, normalized_email,
		                      password_hash, phone, email_confirmed, enabled, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a.PasswordHash = hash
	_, err = r.pool.Exec(ctx, q,
		a.ID, a.UserName, normalize(a.UserName), a.Email, normalize(a.Email),
		hash, a.Phone, a.Enabled, a.RegisteredAt,
	)
	return err
}

func (r *AccountRepoImpl) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM accounts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *AccountRepoImpl) VerifyPassword(a *domain.Account, password string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, a.PasswordHash)
}

func (r *AccountRepoImpl) GenerateConfirmationToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	return r.createToken(ctx, accountID, tokenKindConfirmEmail, ttl)
}

func (r *AccountRepoImpl) GenerateResetToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	return r.createToken(ctx, accountID, tokenKindResetPassword, ttl)
}

func (r *AccountRepoImpl) createToken(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) (string, error) {
	const q = `
		INSERT INTO account_tokens (account_id, kind, token, expires_at)
		VALUES ($1, $2, $3, $4)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	token := uuid.NewString()
	if _, err := r.pool.Exec(ctx, q, accountID, kind, token, time.Now().Add(ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// consumeToken marks a token used and reports whether it was live, atomically.
func (r *AccountRepoImpl) consumeToken(ctx context.Context, accountID uuid.UUID, kind, token string) error {
	const q = `
		UPDATE account_tokens
		SET used_at = now()
		WHERE account_id = $1 AND kind = $2 AND token = $3
		  AND used_at IS NULL
		  AND expires_at > now()`

	tag, err := r.pool.Exec(ctx, q, accountID, kind, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenInvalid
	}
	return nil
}

func (r *AccountRepoImpl) ConfirmEmail(ctx context.Context, accountID uuid.UUID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.consumeToken(ctx, accountID, tokenKindConfirmEmail, code); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET email_confirmed = true WHERE id = $1`, accountID)
	return err
}

func (r *AccountRepoImpl) ResetPassword(ctx context.Context, accountID uuid.UUID, code, newPassword string) error {
	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.consumeToken(ctx, accountID, tokenKindResetPassword, code); err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, failed_logins = 0, lockout_end = NULL WHERE id = $1`,
		accountID, hash,
	)
	return err
}

func (r *AccountRepoImpl) Roles(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	const q = `SELECT role_name FROM account_roles WHERE account_id = $1 ORDER BY role_name`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *AccountRepoImpl) AssignRole(ctx context.Context, accountID uuid.UUID, role string) error {
	const q = `
		INSERT INTO account_roles (account_id, role_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, accountID, role)
	return err
}

// RecordFailedAttempt bumps the failure counter in a single statement so
// concurrent login attempts cannot lose increments.
func (r *AccountRepoImpl) RecordFailedAttempt(ctx context.Context, accountID uuid.UUID) (int, error) {
	const q = `
		UPDATE accounts
		SET failed_logins = failed_logins + 1
		WHERE id = $1
		RETURNING failed_logins`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, q, accountID).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return count, err
}

func (r *AccountRepoImpl) SetLockout(ctx context.Context, accountID uuid.UUID, until time.Time) error {
	const q = `UPDATE accounts SET lockout_end = $2 WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, accountID, until)
	return err
}

func (r *AccountRepoImpl) ResetAccess(ctx context.Context, accountID uuid.UUID) error {
	const q = `UPDATE accounts SET failed_logins = 0, lockout_end = NULL WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, accountID)
	return err
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var _ AccountRepo = (*AccountRepoImpl)(nil)
