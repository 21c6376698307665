package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/platform/auth"
	"github.com/nailstore/nailstore-api/internal/platform/mailer"
	"github.com/nailstore/nailstore-api/internal/repo/postgres"
	"github.com/nailstore/nailstore-api/internal/service"
	"github.com/nailstore/nailstore-api/pkg/config"
)

// ---------- Fakes ----------

type fakeToken struct {
	kind      string
	expiresAt time.Time
	used      bool
}

// fakeAccountRepo keeps everything in maps and stores passwords verbatim in
// PasswordHash so VerifyPassword is a plain string compare.
type fakeAccountRepo struct {
	accounts map[uuid.UUID]*domain.Account
	roles    map[uuid.UUID][]string
	tokens   map[string]*fakeToken // token value -> token
	owner    map[string]uuid.UUID  // token value -> account

	findErr   error
	createErr error
	tokenErr  error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[uuid.UUID]*domain.Account),
		roles:    make(map[uuid.UUID][]string),
		tokens:   make(map[string]*fakeToken),
		owner:    make(map[string]uuid.UUID),
	}
}

func (f *fakeAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) FindByUserName(_ context.Context, userName string) (*domain.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if strings.EqualFold(a.UserName, userName) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) Create(_ context.Context, a *domain.Account, password string) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *a
	cp.PasswordHash = password
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.accounts, id)
	delete(f.roles, id)
	return nil
}

func (f *fakeAccountRepo) VerifyPassword(a *domain.Account, password string) (bool, error) {
	return a.PasswordHash == password, nil
}

func (f *fakeAccountRepo) GenerateConfirmationToken(_ context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	return f.createToken(accountID, "confirm_email", ttl)
}

func (f *fakeAccountRepo) GenerateResetToken(_ context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	return f.createToken(accountID, "reset_password", ttl)
}

func (f *fakeAccountRepo) createToken(accountID uuid.UUID, kind string, ttl time.Duration) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	value := uuid.NewString()
	f.tokens[value] = &fakeToken{kind: kind, expiresAt: time.Now().Add(ttl)}
	f.owner[value] = accountID
	return value, nil
}

func (f *fakeAccountRepo) consume(accountID uuid.UUID, kind, code string) error {
	tok, ok := f.tokens[code]
	if !ok || tok.used || tok.kind != kind || f.owner[code] != accountID || time.Now().After(tok.expiresAt) {
		return postgres.ErrTokenInvalid
	}
	tok.used = true
	return nil
}

func (f *fakeAccountRepo) ConfirmEmail(_ context.Context, accountID uuid.UUID, code string) error {
	if err := f.consume(accountID, "confirm_email", code); err != nil {
		return err
	}
	f.accounts[accountID].EmailConfirmed = true
	return nil
}

func (f *fakeAccountRepo) ResetPassword(_ context.Context, accountID uuid.UUID, code, newPassword string) error {
	if err := f.consume(accountID, "reset_password", code); err != nil {
		return err
	}
	a := f.accounts[accountID]
	a.PasswordHash = newPassword
	a.FailedLogins = 0
	a.LockoutEnd = nil
	return nil
}

func (f *fakeAccountRepo) Roles(_ context.Context, accountID uuid.UUID) ([]string, error) {
	return f.roles[accountID], nil
}

func (f *fakeAccountRepo) AssignRole(_ context.Context, accountID uuid.UUID, role string) error {
	f.roles[accountID] = append(f.roles[accountID], role)
	return nil
}

func (f *fakeAccountRepo) RecordFailedAttempt(_ context.Context, accountID uuid.UUID) (int, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return 0, nil
	}
	a.FailedLogins++
	return a.FailedLogins, nil
}

func (f *fakeAccountRepo) SetLockout(_ context.Context, accountID uuid.UUID, until time.Time) error {
	if a, ok := f.accounts[accountID]; ok {
		end := until
		a.LockoutEnd = &end
	}
	return nil
}

func (f *fakeAccountRepo) ResetAccess(_ context.Context, accountID uuid.UUID) error {
	if a, ok := f.accounts[accountID]; ok {
		a.FailedLogins = 0
		a.LockoutEnd = nil
	}
	return nil
}

type fakeMailer struct {
	sent     []string // recipient emails
	lastBody string
	result   mailer.Result
	err      error
}

func (f *fakeMailer) Send(_ context.Context, toEmail, _ string, htmlBody string) (mailer.Result, error) {
	f.sent = append(f.sent, toEmail)
	f.lastBody = htmlBody
	return f.result, f.err
}

type captureBus struct {
	subjects []string
}

func (c *captureBus) Publish(_ context.Context, subject string, _ interface{}) error {
	c.subjects = append(c.subjects, subject)
	return nil
}

func (c *captureBus) Close() error { return nil }

// ---------- Harness ----------

type authFixture struct {
	repo *fakeAccountRepo
	mail *fakeMailer
	bus  *captureBus
	svc  service.AuthService
}

func newAuthFixture() *authFixture {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			TokenIssuer:       "nailstore-auth",
			TokenAudience:     "nailstore-api",
			TokenTTL:          time.Hour,
			MaxFailedAttempts: 3,
			LockoutWindow:     5 * time.Minute,
			ConfirmTokenTTL:   24 * time.Hour,
			ResetTokenTTL:     2 * time.Hour,
		},
		Email: config.EmailConfig{OrgName: "NailStore"},
	}
	repo := newFakeAccountRepo()
	mail := &fakeMailer{result: mailer.Result{Sent: true, StatusCode: 202}}
	bus := &captureBus{}
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenAudience, cfg.Auth.TokenTTL)
	policy := auth.NewLockoutPolicy(cfg.Auth.MaxFailedAttempts, cfg.Auth.LockoutWindow)
	return &authFixture{
		repo: repo,
		mail: mail,
		bus:  bus,
		svc:  service.NewAuthService(repo, mail, bus, issuer, policy, cfg),
	}
}

func (fx *authFixture) register(t *testing.T, userName, email, password string) uuid.UUID {
	t.Helper()
	_, err := fx.svc.Register(context.Background(), &domain.RegisterRequest{
		UserName: userName,
		Email:    email,
		Password: password,
		URL:      "https://nailstore.example/confirm/",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	account, err := fx.repo.FindByEmail(context.Background(), email)
	if err != nil || account == nil {
		t.Fatalf("registered account not found: %v", err)
	}
	return account.ID
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", code)
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *domain.Error, got %T: %v", err, err)
	}
	if de.Code != code {
		t.Errorf("error code = %d, want %d (message %q)", de.Code, code, de.Message)
	}
}

// ---------- Register ----------

func TestRegister(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	if got := fx.mail.sent; len(got) != 1 || got[0] != "pro@example.com" {
		t.Errorf("confirmation mail recipients = %v", got)
	}
	roles, _ := fx.repo.Roles(context.Background(), id)
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Errorf("assigned roles = %v, want [User]", roles)
	}
	if len(fx.bus.subjects) == 0 || fx.bus.subjects[0] != "account.registered" {
		t.Errorf("published subjects = %v", fx.bus.subjects)
	}
	// The emailed link must carry "{accountId}/{base64url(code)}".
	if !strings.Contains(fx.mail.lastBody, id.String()+"/") {
		t.Errorf("mail body carries no callback for %s:\n%s", id, fx.mail.lastBody)
	}
}

func TestRegisterReservedUserName(t *testing.T) {
	fx := newAuthFixture()
	for _, name := range []string{"Administrator", "superadmin", "xAdminx"} {
		_, err := fx.svc.Register(context.Background(), &domain.RegisterRequest{
			UserName: name, Email: "a@example.com", Password: "s3cret-pw",
		})
		wantCode(t, err, 400)
	}
	// Different case is not reserved.
	if _, err := fx.svc.Register(context.Background(), &domain.RegisterRequest{
		UserName: "ADMINISTRATOR", Email: "caps@example.com", Password: "s3cret-pw",
		URL: "https://nailstore.example/confirm/",
	}); err != nil {
		t.Errorf("upper-case name rejected: %v", err)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	fx := newAuthFixture()
	fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	_, err := fx.svc.Register(context.Background(), &domain.RegisterRequest{
		UserName: "polish_pro", Email: "other@example.com", Password: "s3cret-pw",
	})
	wantCode(t, err, 400)

	_, err = fx.svc.Register(context.Background(), &domain.RegisterRequest{
		UserName: "other_name", Email: "pro@example.com", Password: "s3cret-pw",
	})
	wantCode(t, err, 400)
}

func TestRegisterMailFailureRollsBack(t *testing.T) {
	fx := newAuthFixture()
	fx.mail.err = fmt.Errorf("smtp: connection refused")
	fx.mail.result = mailer.Result{}

	_, err := fx.svc.Register(context.Background(), &domain.RegisterRequest{
		UserName: "polish_pro", Email: "pro@example.com", Password: "s3cret-pw",
		URL: "https://nailstore.example/confirm/",
	})
	wantCode(t, err, 500)

	account, _ := fx.repo.FindByEmail(context.Background(), "pro@example.com")
	if account != nil {
		t.Errorf("account survived a failed confirmation mail")
	}
}

// ---------- Login ----------

func TestLogin(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	resp, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "pro@example.com", Password: "s3cret-pw",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token == "" {
		t.Fatal("Login() returned empty token")
	}

	issuer := auth.NewIssuer("test-secret", "nailstore-auth", "nailstore-api", time.Hour)
	claims, err := issuer.Validate(resp.Token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.Sub != id {
		t.Errorf("token subject = %s, want %s", claims.Sub, id)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != domain.RoleUser {
		t.Errorf("token roles = %v, want [User]", claims.Roles)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	fx := newAuthFixture()
	_, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "nobody@example.com", Password: "whatever",
	})
	wantCode(t, err, 403)
	if !strings.Contains(err.Error(), "email or password incorrect") {
		t.Errorf("unknown email leaks detail: %v", err)
	}
}

func TestLoginLockout(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	// Three wrong passwords lock the account; each returns the generic error.
	for i := 0; i < 3; i++ {
		_, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
			Email: "pro@example.com", Password: "wrong",
		})
		wantCode(t, err, 403)
		if !strings.Contains(err.Error(), "email or password incorrect") {
			t.Errorf("attempt %d leaked lock state: %v", i+1, err)
		}
	}

	account, _ := fx.repo.FindByID(context.Background(), id)
	if account.LockoutEnd == nil {
		t.Fatal("third failure did not set the lockout end")
	}

	// While locked even the right password is refused, with remaining seconds.
	_, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "pro@example.com", Password: "s3cret-pw",
	})
	wantCode(t, err, 403)
	if !strings.Contains(err.Error(), "account is locked") {
		t.Errorf("locked account error = %v", err)
	}

	found := false
	for _, subject := range fx.bus.subjects {
		if subject == "account.locked" {
			found = true
		}
	}
	if !found {
		t.Errorf("no lock event published, got %v", fx.bus.subjects)
	}
}

func TestLoginResetsLockoutState(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	for i := 0; i < 2; i++ {
		fx.svc.Login(context.Background(), &domain.LoginRequest{
			Email: "pro@example.com", Password: "wrong",
		})
	}
	if _, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "pro@example.com", Password: "s3cret-pw",
	}); err != nil {
		t.Fatalf("Login() after two failures errored: %v", err)
	}

	account, _ := fx.repo.FindByID(context.Background(), id)
	if account.FailedLogins != 0 || account.LockoutEnd != nil {
		t.Errorf("lockout state not reset: failures=%d end=%v", account.FailedLogins, account.LockoutEnd)
	}
}

// ---------- Confirmation and recovery ----------

func TestConfirmEmail(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	// Pull the raw token from the fake and encode it the way the link does.
	var raw string
	for value := range fx.repo.tokens {
		raw = value
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(raw))

	msg, err := fx.svc.ConfirmEmail(context.Background(), id.String(), encoded)
	if err != nil {
		t.Fatalf("ConfirmEmail() error = %v", err)
	}
	if msg == "" {
		t.Error("ConfirmEmail() returned empty message")
	}

	account, _ := fx.repo.FindByID(context.Background(), id)
	if !account.EmailConfirmed {
		t.Error("account still unconfirmed")
	}

	// A spent code cannot confirm twice.
	_, err = fx.svc.ConfirmEmail(context.Background(), id.String(), encoded)
	wantCode(t, err, 500)
}

func TestConfirmEmailBadInput(t *testing.T) {
	fx := newAuthFixture()
	_, err := fx.svc.ConfirmEmail(context.Background(), "not-a-uuid", "Y29kZQ")
	wantCode(t, err, 500)

	_, err = fx.svc.ConfirmEmail(context.Background(), uuid.NewString(), "%%%")
	wantCode(t, err, 500)
}

func TestSendPasswordRecoveryUnknownEmail(t *testing.T) {
	fx := newAuthFixture()
	msg, err := fx.svc.SendPasswordRecovery(context.Background(), &domain.RecoverPasswordSendRequest{
		Email: "nobody@example.com", URL: "https://nailstore.example/reset/",
	})
	if err != nil {
		t.Fatalf("SendPasswordRecovery() error = %v", err)
	}
	if msg == "" {
		t.Error("expected the generic recovery message")
	}
	if len(fx.mail.sent) != 0 {
		t.Errorf("mail sent for unknown email: %v", fx.mail.sent)
	}
}

func TestResetPasswordRoundTrip(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	if _, err := fx.svc.SendPasswordRecovery(context.Background(), &domain.RecoverPasswordSendRequest{
		Email: "pro@example.com", URL: "https://nailstore.example/reset/",
	}); err != nil {
		t.Fatalf("SendPasswordRecovery() error = %v", err)
	}

	var raw string
	for value, tok := range fx.repo.tokens {
		if tok.kind == "reset_password" {
			raw = value
		}
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(raw))

	if _, err := fx.svc.ResetPassword(context.Background(), &domain.RecoverPasswordRequest{
		AccountID: id.String(), Code: encoded, NewPassword: "brand-new-pw",
	}); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, err := fx.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "pro@example.com", Password: "brand-new-pw",
	}); err != nil {
		t.Errorf("Login() with new password errored: %v", err)
	}
}

func TestResetPasswordUnknownAccount(t *testing.T) {
	fx := newAuthFixture()
	_, err := fx.svc.ResetPassword(context.Background(), &domain.RecoverPasswordRequest{
		AccountID: uuid.NewString(), Code: "Y29kZQ", NewPassword: "brand-new-pw",
	})
	wantCode(t, err, 404)
}

// ---------- Lookups ----------

func TestUserNameIsFree(t *testing.T) {
	fx := newAuthFixture()
	fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	if _, err := fx.svc.UserNameIsFree(context.Background(), "ab"); err == nil {
		t.Error("two-character name accepted")
	}
	free, err := fx.svc.UserNameIsFree(context.Background(), "polish_pro")
	if err != nil || free {
		t.Errorf("taken name reported free=%v err=%v", free, err)
	}
	free, err = fx.svc.UserNameIsFree(context.Background(), "someone_else")
	if err != nil || !free {
		t.Errorf("fresh name reported free=%v err=%v", free, err)
	}
}

func TestGetAccountByID(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	info, err := fx.svc.GetAccountByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccountByID() error = %v", err)
	}
	if info.UserName != "polish_pro" || !info.Enabled {
		t.Errorf("info = %+v", info)
	}

	_, err = fx.svc.GetAccountByID(context.Background(), uuid.New())
	wantCode(t, err, 404)
}

func TestHasAnyRole(t *testing.T) {
	fx := newAuthFixture()
	id := fx.register(t, "polish_pro", "pro@example.com", "s3cret-pw")

	ok, err := fx.svc.HasAnyRole(context.Background(), id, domain.RoleAdmin, domain.RoleUser)
	if err != nil || !ok {
		t.Errorf("HasAnyRole(Admin|User) = %v, %v", ok, err)
	}
	ok, err = fx.svc.HasAnyRole(context.Background(), id, domain.RoleAdmin)
	if err != nil || ok {
		t.Errorf("HasAnyRole(Admin) = %v, %v", ok, err)
	}
}
