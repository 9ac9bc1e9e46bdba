package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/grocery-backend/internal/users"
	pkgAuth "github.com/angelmondragon/grocery-backend/pkg/auth"
	"github.com/angelmondragon/grocery-backend/pkg/auth/session"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	minUsernameLength         = 3
	minPasswordLength         = 4
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Profile(ctx context.Context, userID uint64) (*users.UserDTO, error)
	Logout(ctx context.Context, accessID string) error
}

type service struct {
	users   userRepository
	hasher  passwordHasher
	session sessionManager
	jwtCfg  config.JWTConfig
	logg    *logger.Logger
	now     func() time.Time
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type sessionManager interface {
	Start(ctx context.Context, userID uint64) (string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
// SessionManager is optional; without it tokens live until they expire.
type ServiceParams struct {
	UserRepo       userRepository
	Hasher         passwordHasher
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:   params.UserRepo,
		hasher:  params.Hasher,
		session: params.SessionManager,
		jwtCfg:  params.JWTConfig,
		logg:    logg,
		now:     now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)

	switch {
	case username == "" || email == "" || req.Password == "" || firstName == "" || lastName == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username, email, password, first_name and last_name are required")
	case len([]rune(username)) < minUsernameLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("username must be at least %d characters", minUsernameLength))
	case len([]rune(req.Password)) < minPasswordLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	case !strings.Contains(email, "@"):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing user")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or email already registered")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	resp, err := s.issue(ctx, user, s.now().UTC())
	if err != nil {
		return nil, err
	}
	resp.Message = "user registered"

	ctx = s.logg.WithUserID(ctx, user.ID)
	s.logg.Info(ctx, "auth.registered")
	return resp, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	resp, err := s.issue(ctx, user, now)
	if err != nil {
		return nil, err
	}
	resp.Message = "login successful"
	return resp, nil
}

func (s *service) Profile(ctx context.Context, userID uint64) (*users.UserDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return users.FromModel(user), nil
}

// Logout revokes the session behind accessID. Without a session store there
// is nothing to revoke and the call succeeds.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if s.session == nil || strings.TrimSpace(accessID) == "" {
		return nil
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time) (*AuthResponse, error) {
	accessID := session.NewAccessID()
	if s.session != nil {
		started, err := s.session.Start(ctx, user.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start session")
		}
		accessID = started
	}

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &AuthResponse{
		AccessToken: token,
		AccessID:    accessID,
		User:        users.FromModel(user),
	}, nil
}
