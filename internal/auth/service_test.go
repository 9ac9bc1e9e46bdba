package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/angelmondragon/grocery-backend/internal/users"
	pkgAuth "github.com/angelmondragon/grocery-backend/pkg/auth"
	"github.com/angelmondragon/grocery-backend/pkg/auth/session"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	redisclient "github.com/angelmondragon/grocery-backend/pkg/redis"
	"github.com/angelmondragon/grocery-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "grocery-api",
	ExpirationMinutes: 30,
}

var fixedNow = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{
		ArgonMemoryKB:    64,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
}

func newSessionManager(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.New(context.Background(), config.RedisConfig{Address: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	manager, err := session.NewManager(client, testJWT)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return manager
}

func buildTestService(t *testing.T, sessions sessionManager) (Service, *users.Repository) {
	t.Helper()
	repo := users.NewRepository(dbtest.Open(t))
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		Hasher:         testHasher(),
		SessionManager: sessions,
		JWTConfig:      testJWT,
		Now:            func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo
}

func registerAna(t *testing.T, svc Service) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username:  " ana ",
		Email:     "Ana@Example.com",
		Password:  "s3cret",
		FirstName: "Ana",
		LastName:  "Lopez",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return resp
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestServiceRegisterIssuesToken(t *testing.T) {
	svc, repo := buildTestService(t, nil)

	resp := registerAna(t, svc)
	if resp.User == nil || resp.User.ID == 0 {
		t.Fatalf("expected persisted user, got %+v", resp.User)
	}
	if resp.User.Username != "ana" || resp.User.Email != "ana@example.com" {
		t.Fatalf("expected normalized identity, got %+v", resp.User)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != resp.User.ID || claims.Username != "ana" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID != resp.AccessID {
		t.Fatalf("expected jti %q, got %q", resp.AccessID, claims.ID)
	}

	stored, err := repo.FindByUsername(context.Background(), "ana")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.PasswordHash == "s3cret" || stored.PasswordHash == "" {
		t.Fatalf("expected hashed password, got %q", stored.PasswordHash)
	}
}

func TestServiceRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := buildTestService(t, nil)
	registerAna(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "ana", Email: "new@example.com", Password: "s3cret", FirstName: "A", LastName: "B",
	})
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "someone", Email: "ANA@example.com", Password: "s3cret", FirstName: "A", LastName: "B",
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestServiceRegisterValidation(t *testing.T) {
	svc, _ := buildTestService(t, nil)
	cases := map[string]RegisterRequest{
		"missing last name": {Username: "ana", Email: "ana@example.com", Password: "s3cret", FirstName: "Ana"},
		"short username":    {Username: "an", Email: "ana@example.com", Password: "s3cret", FirstName: "Ana", LastName: "L"},
		"short password":    {Username: "ana", Email: "ana@example.com", Password: "abc", FirstName: "Ana", LastName: "L"},
		"bad email":         {Username: "ana", Email: "ana.example.com", Password: "s3cret", FirstName: "Ana", LastName: "L"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestServiceLogin(t *testing.T) {
	svc, repo := buildTestService(t, nil)
	registered := registerAna(t, svc)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.ID != registered.User.ID {
		t.Fatalf("expected user %d, got %d", registered.User.ID, resp.User.ID)
	}
	if resp.User.LastLoginAt == nil || !resp.User.LastLoginAt.Equal(fixedNow) {
		t.Fatalf("expected last login %v, got %v", fixedNow, resp.User.LastLoginAt)
	}

	stored, err := repo.FindByID(context.Background(), registered.User.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatalf("expected last_login_at to be persisted")
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := buildTestService(t, nil)
	registerAna(t, svc)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "wrong"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "nobody", Password: "s3cret"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "ana"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	svc, repo := buildTestService(t, nil)
	hash, err := testHasher().Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	inactive := false
	if _, err := repo.Create(context.Background(), users.CreateUserDTO{
		Username: "luis", Email: "luis@example.com", PasswordHash: hash, IsActive: &inactive,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{Username: "luis", Password: "s3cret"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceProfile(t *testing.T) {
	svc, _ := buildTestService(t, nil)
	registered := registerAna(t, svc)

	profile, err := svc.Profile(context.Background(), registered.User.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.FirstName != "Ana" || profile.LastName != "Lopez" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	_, err = svc.Profile(context.Background(), registered.User.ID+100)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestServiceSessionLifecycle(t *testing.T) {
	manager := newSessionManager(t)
	svc, _ := buildTestService(t, manager)
	registerAna(t, svc)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Username: "ana", Password: "s3cret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	live, err := manager.HasSession(ctx, resp.AccessID)
	if err != nil || !live {
		t.Fatalf("expected live session live=%v err=%v", live, err)
	}

	if err := svc.Logout(ctx, resp.AccessID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	live, err = manager.HasSession(ctx, resp.AccessID)
	if err != nil || live {
		t.Fatalf("expected revoked session live=%v err=%v", live, err)
	}
}

func TestServiceLogoutWithoutSessions(t *testing.T) {
	svc, _ := buildTestService(t, nil)
	if err := svc.Logout(context.Background(), "anything"); err != nil {
		t.Fatalf("expected no-op logout, got %v", err)
	}
}

func TestServiceSessionStartFailure(t *testing.T) {
	svc, _ := buildTestService(t, failingSessions{})
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "s3cret", FirstName: "Ana", LastName: "Lopez",
	})
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceParams{Hasher: testHasher()}); err == nil {
		t.Fatalf("expected error without user repo")
	}
	if _, err := NewService(ServiceParams{UserRepo: stubUsers{}}); err == nil {
		t.Fatalf("expected error without hasher")
	}
}

type failingSessions struct{}

func (failingSessions) Start(context.Context, uint64) (string, error) {
	return "", errors.New("redis down")
}

func (failingSessions) Revoke(context.Context, string) error {
	return errors.New("redis down")
}

type stubUsers struct{}

func (stubUsers) Create(context.Context, users.CreateUserDTO) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (stubUsers) FindByUsername(context.Context, string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (stubUsers) FindByID(context.Context, uint64) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (stubUsers) ExistsByUsernameOrEmail(context.Context, string, string) (bool, error) {
	return false, nil
}

func (stubUsers) UpdateLastLogin(context.Context, uint64, time.Time) error {
	return nil
}
