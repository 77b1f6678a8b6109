package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authgate/internal/domain"
	"authgate/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	getByIDCalls int
	clearErr     error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return domain.User{}, repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.getByIDCalls++
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) GetByVerificationToken(_ context.Context, token string) (domain.User, error) {
	for _, u := range m.usersByID {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *mockUserRepo) UpdateSessionToken(_ context.Context, id string, token *string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user.SessionToken = token
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) ClearVerificationToken(_ context.Context, id string) (domain.User, error) {
	if m.clearErr != nil {
		return domain.User{}, m.clearErr
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user.VerificationToken = nil
	m.usersByID[id] = user
	return user, nil
}

type mockEmailSender struct {
	calls    int
	lastTo   string
	lastLink string
	err      error
}

func (m *mockEmailSender) SendVerification(_ context.Context, toEmail string, link string) error {
	m.calls++
	m.lastTo = toEmail
	m.lastLink = link
	return m.err
}

type mockAvatar struct {
	url string
	err error
}

func (m *mockAvatar) Generate(_ context.Context, _ string) (string, error) {
	return m.url, m.err
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

func newTestAuthService(repo *mockUserRepo, sender *mockEmailSender) *AuthService {
	return NewAuthService(
		zap.NewNop(),
		repo,
		NewBcryptHasher(bcrypt.MinCost),
		NewJWTService("secret", "authgate", 0),
		sender,
		&mockAvatar{url: "https://avatars.local/a.png"},
		nil,
		AuthConfig{PublicBaseURL: "http://localhost:8080/"},
	)
}

func registerAndLogin(t *testing.T, svc *AuthService) LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := svc.Login(ctx, "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func TestAuthServiceRegister_CreatesUnverifiedUser(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    " A@X.com ",
		Password: "p1",
		Gender:   "Female",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "p1" {
		t.Fatalf("expected password to be hashed, got %q", user.PasswordHash)
	}
	if user.Subscription != domain.SubscriptionFree {
		t.Fatalf("expected free subscription, got %s", user.Subscription)
	}
	if user.Gender != "Female" || user.AvatarURL == "" {
		t.Fatalf("unexpected profile: %+v", user.Profile())
	}
	if user.VerificationToken == nil || user.Verified() {
		t.Fatalf("expected verification token to be set")
	}
	if user.SessionToken != nil {
		t.Fatalf("expected no session after register")
	}
	if sender.calls != 1 || sender.lastTo != "a@x.com" {
		t.Fatalf("expected one verification email, got %d to %s", sender.calls, sender.lastTo)
	}
	wantLink := "http://localhost:8080/auth/verify/" + *user.VerificationToken
	if sender.lastLink != wantLink {
		t.Fatalf("expected link %s, got %s", wantLink, sender.lastLink)
	}
}

func TestAuthServiceRegister_DuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "A@x.com", Password: "p2"})
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
	if len(repo.usersByID) != 1 {
		t.Fatalf("expected a single user, got %d", len(repo.usersByID))
	}
}

func TestAuthServiceRegister_EmailFailureIsBestEffort(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{err: errors.New("provider down")}
	svc := newTestAuthService(repo, sender)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "p1"}); err != nil {
		t.Fatalf("expected register to succeed despite email failure, got %v", err)
	}
	if len(repo.usersByID) != 1 {
		t.Fatalf("expected user to be kept")
	}
}

func TestAuthServiceRegister_InvalidInput(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), &mockEmailSender{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "  ", Password: "p1"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: strings.Repeat("a", 80)}); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestAuthServiceRegister_GenderIsStoredAsGiven(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})

	user, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "p1", Gender: " robot "})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Gender != "robot" {
		t.Fatalf("expected gender robot, got %q", user.Gender)
	}
}

func TestAuthServiceRegister_PasswordTooLongCreatesNothing(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: strings.Repeat("a", 73)})
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if len(repo.usersByID) != 0 || sender.calls != 0 {
		t.Fatalf("expected no user and no email, got %d users and %d emails", len(repo.usersByID), sender.calls)
	}
}

func TestAuthServiceRegister_AvatarFailure(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	svc.avatars = &mockAvatar{err: errors.New("boom")}

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "p1"}); err == nil {
		t.Fatalf("expected avatar error")
	}
	if len(repo.usersByID) != 0 {
		t.Fatalf("expected no user created")
	}
}

func TestAuthServiceLogin_IndistinguishableFailures(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), &mockEmailSender{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPass := svc.Login(ctx, "a@x.com", "nope")
	_, unknown := svc.Login(ctx, "b@x.com", "p1")
	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("expected identical messages, got %q and %q", wrongPass, unknown)
	}
}

type countingHasher struct {
	PasswordHasher
	compares []string
}

func (h *countingHasher) Compare(password, hash string) (bool, error) {
	h.compares = append(h.compares, hash)
	return h.PasswordHasher.Compare(password, hash)
}

func TestAuthServiceLogin_UnknownEmailStillComparesHash(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)}
	svc := NewAuthService(
		zap.NewNop(),
		newMockUserRepo(),
		hasher,
		NewJWTService("secret", "authgate", 0),
		&mockEmailSender{},
		&mockAvatar{url: "https://avatars.local/a.png"},
		nil,
		AuthConfig{PublicBaseURL: "http://localhost:8080"},
	)

	if _, err := svc.Login(context.Background(), "ghost@x.com", "p1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(hasher.compares) != 1 {
		t.Fatalf("expected one hash comparison, got %d", len(hasher.compares))
	}
	if hasher.compares[0] == "" || hasher.compares[0] != svc.dummyHash {
		t.Fatalf("expected comparison against the dummy hash, got %q", hasher.compares[0])
	}
	if _, err := bcrypt.Cost([]byte(svc.dummyHash)); err != nil {
		t.Fatalf("expected a valid bcrypt dummy hash: %v", err)
	}
}

func TestAuthServiceLogin_StoresSessionToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	res := registerAndLogin(t, svc)

	if res.Token == "" {
		t.Fatalf("expected token")
	}
	userID, err := svc.tokens.Verify(res.Token)
	if err != nil || userID != res.User.ID {
		t.Fatalf("expected token to resolve to %s, got %s (%v)", res.User.ID, userID, err)
	}
	stored := repo.usersByID[res.User.ID]
	if !stored.HasSession(res.Token) {
		t.Fatalf("expected stored session token to match")
	}
}

func TestAuthServiceLogin_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	svc.limiter = &mockLimiter{allow: false}

	if _, err := svc.Login(context.Background(), "a@x.com", "p1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAuthServiceAuthorize(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	res := registerAndLogin(t, svc)
	ctx := context.Background()

	user, token, err := svc.Authorize(ctx, "Bearer "+res.Token)
	if err != nil {
		t.Fatalf("expected authorized, got %v", err)
	}
	if user.ID != res.User.ID || token != res.Token {
		t.Fatalf("unexpected user or token")
	}

	if _, _, err := svc.Authorize(ctx, ""); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	calls := repo.getByIDCalls
	if _, _, err := svc.Authorize(ctx, "Bearer garbage"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if repo.getByIDCalls != calls {
		t.Fatalf("expected no directory lookup after failed verification")
	}
}

func TestAuthServiceAuthorize_UnknownUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	token, err := svc.tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := svc.Authorize(context.Background(), "Bearer "+token); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthServiceLogout_InvalidatesToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	res := registerAndLogin(t, svc)
	ctx := context.Background()

	if err := svc.Logout(ctx, res.User.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.tokens.Verify(res.Token); err != nil {
		t.Fatalf("expected token to still verify cryptographically, got %v", err)
	}
	if _, _, err := svc.Authorize(ctx, "Bearer "+res.Token); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized after logout, got %v", err)
	}
}

func TestAuthServiceLogin_SecondLoginSupersedesFirst(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	first := registerAndLogin(t, svc)
	ctx := context.Background()

	second, err := svc.Login(ctx, "a@x.com", "p1")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct tokens")
	}
	if _, _, err := svc.Authorize(ctx, "Bearer "+first.Token); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected first token rejected, got %v", err)
	}
	if _, _, err := svc.Authorize(ctx, "Bearer "+second.Token); err != nil {
		t.Fatalf("expected second token accepted, got %v", err)
	}
}

func TestAuthServiceVerifyEmail(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestAuthService(repo, sender)
	ctx := context.Background()

	if _, err := svc.VerifyEmail(ctx, "unknown"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected ErrVerificationNotFound, got %v", err)
	}

	user, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token := *user.VerificationToken
	if !strings.HasSuffix(sender.lastLink, "/"+token) {
		t.Fatalf("expected link to embed token, got %s", sender.lastLink)
	}

	verified, err := svc.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Verified() {
		t.Fatalf("expected verification token cleared")
	}
	if _, err := svc.VerifyEmail(ctx, token); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected second verification to fail with not found, got %v", err)
	}
}

func TestAuthServiceVerifyEmail_UpdateMissesRecord(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, &mockEmailSender{})
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.clearErr = repository.ErrNotFound

	if _, err := svc.VerifyEmail(ctx, *user.VerificationToken); !errors.Is(err, ErrVerificationUpdate) {
		t.Fatalf("expected ErrVerificationUpdate, got %v", err)
	}
}

func TestAuthServiceVerificationLink_EscapesToken(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), &mockEmailSender{})
	got := svc.VerificationLink("a/b")
	if got != "http://localhost:8080/auth/verify/a%2Fb" {
		t.Fatalf("unexpected link %s", got)
	}
}
