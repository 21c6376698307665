package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/platform/auth"
	"github.com/nailstore/nailstore-api/internal/platform/mailer"
	"github.com/nailstore/nailstore-api/internal/repo/postgres"
	"github.com/nailstore/nailstore-api/pkg/config"
	"github.com/nailstore/nailstore-api/pkg/events"
	"github.com/nailstore/nailstore-api/pkg/logger"
)

// Messages returned to clients. Recovery send is deliberately identical for
// known and unknown emails so the endpoint cannot be used to probe accounts.
const (
	msgRegistered    = "account created, confirm your email address using the link we sent"
	msgConfirmed     = "thank you for confirming your email address"
	msgRecoverySent  = "if the email is registered, recovery instructions have been sent"
	msgPasswordReset = "password has been reset"
)

var errBadCredentials = domain.ErrForbidden("email or password incorrect")

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	ConfirmEmail(ctx context.Context, accountID, encodedCode string) (string, error)
	SendPasswordRecovery(ctx context.Context, req *domain.RecoverPasswordSendRequest) (string, error)
	ResetPassword(ctx context.Context, req *domain.RecoverPasswordRequest) (string, error)

	UserNameIsFree(ctx context.Context, userName string) (bool, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.AccountInfo, error)
	RolesOf(ctx context.Context, accountID uuid.UUID) ([]string, error)
	HasAnyRole(ctx context.Context, accountID uuid.UUID, roles ...string) (bool, error)
}

type authService struct {
	accounts postgres.AccountRepo
	mail     mailer.Sender
	bus      events.Publisher
	tokens   *auth.Issuer
	lockout  auth.LockoutPolicy
	config   *config.Config

	now func() time.Time
}

func NewAuthService(
	accounts postgres.AccountRepo,
	mail mailer.Sender,
	bus events.Publisher,
	tokens *auth.Issuer,
	lockout auth.LockoutPolicy,
	config *config.Config,
) AuthService {
	return &authService{
		accounts: accounts,
		mail:     mail,
		bus:      bus,
		tokens:   tokens,
		lockout:  lockout,
		config:   config,
		now:      time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", domain.ErrValidation(err.Error())
	}
	if domain.IsReservedUserName(req.UserName) {
		return "", domain.ErrValidation("user name contains a reserved word")
	}

	free, err := s.UserNameIsFree(ctx, req.UserName)
	if err != nil {
		return "", err
	}
	if !free {
		return "", domain.ErrConflict("user name is already taken")
	}

	existing, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check existing email", "error", err)
		return "", domain.ErrInternal("failed to register account")
	}
	if existing != nil {
		return "", domain.ErrConflict("user with this email already exists")
	}

	account := &domain.Account{
		ID:           uuid.New(),
		UserName:     req.UserName,
		Email:        req.Email,
		Enabled:      true,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, account, req.Password); err != nil {
		logger.ErrorContext(ctx, "Failed to create account", "error", err)
		return "", domain.ErrInternal("failed to register account")
	}

	code, err := s.accounts.GenerateConfirmationToken(ctx, account.ID, s.config.Auth.ConfirmTokenTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create confirmation token", "error", err, "account_id", account.ID)
		s.rollbackRegistration(ctx, account.ID)
		return "", domain.ErrInternal("failed to register account")
	}

	callback := s.callbackURL(req.URL, account.ID, code)
	res, err := s.mail.Send(ctx, account.Email, "Confirm your email",
		confirmEmailBody(s.config.Email.OrgName, account.UserName, callback))
	if err != nil || !res.Sent {
		// No account may exist without a deliverable confirmation email.
		logger.ErrorContext(ctx, "Failed to send confirmation email", "error", err, "account_id", account.ID)
		s.rollbackRegistration(ctx, account.ID)
		return "", domain.ErrInternal("failed to send confirmation email")
	}

	if err := s.accounts.AssignRole(ctx, account.ID, domain.RoleUser); err != nil {
		logger.ErrorContext(ctx, "Failed to assign default role", "error", err, "account_id", account.ID)
	}

	s.publish(ctx, events.AccountRegistered, events.AccountRegisteredEvent{
		AccountID:    account.ID,
		UserName:     account.UserName,
		Email:        account.Email,
		RegisteredAt: account.RegisteredAt,
	})

	return msgRegistered, nil
}

func (s *authService) rollbackRegistration(ctx context.Context, accountID uuid.UUID) {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		logger.ErrorContext(ctx, "Failed to roll back registration", "error", err, "account_id", accountID)
	}
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account", "error", err)
		return nil, domain.ErrInternal("failed to sign in")
	}
	if account == nil {
		return nil, errBadCredentials
	}
	if !account.Enabled {
		return nil, domain.ErrForbidden("account is disabled")
	}

	now := s.now()
	if locked, remaining := s.lockout.IsLocked(account, now); locked {
		return nil, domain.ErrForbidden(fmt.Sprintf(
			"account is locked, try again in %d seconds", int(remaining.Seconds())))
	}

	valid, err := s.accounts.VerifyPassword(account, req.Password)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to verify password", "error", err, "account_id", account.ID)
		return nil, domain.ErrInternal("failed to sign in")
	}
	if !valid {
		count, err := s.accounts.RecordFailedAttempt(ctx, account.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to record sign-in failure", "error", err, "account_id", account.ID)
			return nil, errBadCredentials
		}
		if s.lockout.ShouldLock(count) {
			until := s.lockout.LockoutUntil(now)
			if err := s.accounts.SetLockout(ctx, account.ID, until); err != nil {
				logger.ErrorContext(ctx, "Failed to set lockout", "error", err, "account_id", account.ID)
			}
			s.publish(ctx, events.AccountLocked, events.AccountLockedEvent{
				AccountID:  account.ID,
				LockedTill: until,
			})
		}
		return nil, errBadCredentials
	}

	if err := s.accounts.ResetAccess(ctx, account.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to reset lockout state", "error", err, "account_id", account.ID)
	}

	roles, err := s.accounts.Roles(ctx, account.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load roles", "error", err, "account_id", account.ID)
		return nil, domain.ErrInternal("failed to sign in")
	}

	token, err := s.tokens.Issue(account.ID, roles)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to issue token", "error", err, "account_id", account.ID)
		return nil, domain.ErrInternal("failed to sign in")
	}
	return &domain.LoginResponse{Token: token}, nil
}

// ConfirmEmail resolves the confirmation link parameters. Resolution failures
// surface as internal errors rather than 404s, matching the storefront the
// links were originally minted for.
func (s *authService) ConfirmEmail(ctx context.Context, accountID, encodedCode string) (string, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return "", domain.ErrInternal("unable to resolve account")
	}
	code, err := base64.RawURLEncoding.DecodeString(encodedCode)
	if err != nil {
		return "", domain.ErrInternal("unable to resolve confirmation code")
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account", "error", err, "account_id", id)
		return "", domain.ErrInternal("failed to confirm email")
	}
	if account == nil {
		return "", domain.ErrInternal("unable to resolve account")
	}

	if err := s.accounts.ConfirmEmail(ctx, id, string(code)); err != nil {
		if errors.Is(err, postgres.ErrTokenInvalid) {
			return "", domain.ErrInternal(err.Error())
		}
		logger.ErrorContext(ctx, "Failed to confirm email", "error", err, "account_id", id)
		return "", domain.ErrInternal("failed to confirm email")
	}

	s.publish(ctx, events.AccountConfirmed, events.AccountConfirmedEvent{
		AccountID:   id,
		ConfirmedAt: s.now().UTC(),
	})

	return msgConfirmed, nil
}

func (s *authService) SendPasswordRecovery(ctx context.Context, req *domain.RecoverPasswordSendRequest) (string, error) {
	if req.Email == "" || req.URL == "" {
		return "", domain.ErrValidation("email and url are required")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account", "error", err)
		return "", domain.ErrInternal("failed to send recovery email")
	}
	if account == nil {
		// Same answer as the found case; see msgRecoverySent.
		return msgRecoverySent, nil
	}

	code, err := s.accounts.GenerateResetToken(ctx, account.ID, s.config.Auth.ResetTokenTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create reset token", "error", err, "account_id", account.ID)
		return "", domain.ErrInternal("failed to send recovery email")
	}

	callback := s.callbackURL(req.URL, account.ID, code)
	res, err := s.mail.Send(ctx, account.Email, "Password recovery",
		recoveryEmailBody(s.config.Email.OrgName, account.UserName, callback))
	if err != nil || !res.Sent {
		logger.ErrorContext(ctx, "Failed to send recovery email", "error", err, "account_id", account.ID)
		status := res.StatusCode
		if status == 0 {
			status = 500
		}
		return "", domain.NewError(status, "failed to send recovery email")
	}

	return msgRecoverySent, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *domain.RecoverPasswordRequest) (string, error) {
	if req.AccountID == "" || req.Code == "" || req.NewPassword == "" {
		return "", domain.ErrValidation("account id, code and new password are required")
	}

	id, err := uuid.Parse(req.AccountID)
	if err != nil {
		return "", domain.ErrValidation("invalid account id")
	}
	code, err := base64.RawURLEncoding.DecodeString(req.Code)
	if err != nil {
		return "", domain.ErrValidation("invalid recovery code")
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account", "error", err, "account_id", id)
		return "", domain.ErrInternal("failed to reset password")
	}
	if account == nil {
		return "", domain.ErrNotFound("account not found")
	}

	if err := s.accounts.ResetPassword(ctx, id, string(code), req.NewPassword); err != nil {
		if errors.Is(err, postgres.ErrTokenInvalid) {
			return "", domain.ErrInternal(err.Error())
		}
		logger.ErrorContext(ctx, "Failed to reset password", "error", err, "account_id", id)
		return "", domain.ErrInternal("failed to reset password")
	}

	return msgPasswordReset, nil
}

func (s *authService) UserNameIsFree(ctx context.Context, userName string) (bool, error) {
	if len(userName) < domain.MinUserNameLength {
		return false, domain.ErrValidation(fmt.Sprintf(
			"user name must be at least %d characters", domain.MinUserNameLength))
	}
	existing, err := s.accounts.FindByUserName(ctx, userName)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check user name", "error", err)
		return false, domain.ErrInternal("failed to check user name")
	}
	return existing == nil, nil
}

func (s *authService) GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.AccountInfo, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account", "error", err, "account_id", id)
		return nil, domain.ErrInternal("failed to load account")
	}
	if account == nil {
		return nil, domain.ErrNotFound("account not found")
	}
	return account.ToInfo(), nil
}

func (s *authService) RolesOf(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	roles, err := s.accounts.Roles(ctx, accountID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load roles", "error", err, "account_id", accountID)
		return nil, domain.ErrInternal("failed to load roles")
	}
	return roles, nil
}

func (s *authService) HasAnyRole(ctx context.Context, accountID uuid.UUID, roles ...string) (bool, error) {
	assigned, err := s.RolesOf(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, have := range assigned {
		for _, want := range roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// callbackURL appends "{accountId}/{base64url(code)}" to whatever prefix the
// client supplied, matching the link format the web frontend parses.
func (s *authService) callbackURL(prefix string, accountID uuid.UUID, code string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(code))
	return fmt.Sprintf("%s%s/%s", prefix, accountID, encoded)
}

func (s *authService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

func confirmEmailBody(orgName, userName, callback string) string {
	return fmt.Sprintf(
		`<h2>Welcome to %s, %s!</h2>
<p>Please confirm your email address by following the link below:</p>
<p><a href=%q>Confirm email</a></p>
<p>If you did not create this account, ignore this message.</p>`,
		orgName, userName, callback)
}

func recoveryEmailBody(orgName, userName, callback string) string {
	return fmt.Sprintf(
		`<h2>%s password recovery</h2>
<p>Hello %s, a password reset was requested for your account.</p>
<p><a href=%q>Reset password</a></p>
<p>If you did not request this, ignore this message.</p>`,
		orgName, userName, callback)
}
