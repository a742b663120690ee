package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// UserStore exposes the user persistence operations required by the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
}

// PINVerifier compares a stored hash with a candidate PIN.
type PINVerifier func(encoded, pin string) error

// PINHasher produces a storable hash of a PIN.
type PINHasher func(pin string) (string, error)

// AuthService resolves user IDs and PINs to principals and manages accounts.
type AuthService struct {
	users       UserStore
	verifyPIN   PINVerifier
	hashPIN     PINHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService. Nil hash functions use argon2id
// with DefaultArgon2idParams.
func NewAuthService(users UserStore, verify PINVerifier, hash PINHasher, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPIN
	}
	if hash == nil {
		hash = func(pin string) (string, error) { return CreatePINHash(pin, DefaultArgon2idParams) }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:       users,
		verifyPIN:   verify,
		hashPIN:     hash,
		idGenerator: uuid.NewString,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate checks the PIN of userID and returns the principal carrying the
// stored role. Unknown users, users without a PIN and wrong PINs all fail with
// ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, userID, pin string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	userID = strings.TrimSpace(userID)
	logger := s.loggerWith(ctx, "Authenticate", "user_id", userID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "authentication succeeded", "role", string(principal.Role))
	}()

	if userID == "" || pin == "" {
		err = ErrInvalidCredentials
		return
	}

	var user persistence.User
	user, err = s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = mapRepoError("get user", err)
		return
	}
	if user.PINHash == "" {
		err = ErrInvalidCredentials
		return
	}

	if verifyErr := s.verifyPIN(user.PINHash, pin); verifyErr != nil {
		if errors.Is(verifyErr, ErrInvalidCredentials) {
			err = ErrInvalidCredentials
			return
		}
		err = fmt.Errorf("verify PIN: %w", verifyErr)
		return
	}

	principal = Principal{UserID: user.ID, Role: user.Role}
	return
}

// RegisterUser validates and stores a new account, hashing its PIN when given.
func (s *AuthService) RegisterUser(ctx context.Context, params RegisterUserParams) (user persistence.User, err error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("AuthService is nil")
	}
	if s.users == nil {
		return persistence.User{}, fmt.Errorf("user store not configured")
	}

	logger := s.loggerWith(ctx, "RegisterUser", "user_id", params.ID)
	defer func() {
		logResult(ctx, logger, err, "user registration", "role", string(user.Role))
	}()

	vErr := &ValidationError{}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = s.idGenerator()
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	role := params.Role
	if role == "" {
		role = scheduler.RoleUser
	}
	if !role.Valid() {
		vErr.add("role", fmt.Sprintf("role must be %q or %q", scheduler.RoleUser, scheduler.RoleAdmin))
	}
	if params.PIN != "" {
		var pinErr *ValidationError
		if errors.As(validatePIN(params.PIN), &pinErr) {
			vErr.merge(pinErr)
		}
	}
	if vErr.HasErrors() {
		return persistence.User{}, vErr
	}

	now := s.now()
	user = persistence.User{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(params.Email)),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if params.PIN != "" {
		if user.PINHash, err = s.hashPIN(params.PIN); err != nil {
			return persistence.User{}, fmt.Errorf("hash PIN: %w", err)
		}
	}

	if err = s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return persistence.User{}, ErrAlreadyExists
		}
		return persistence.User{}, mapRepoError("create user", err)
	}
	return user, nil
}

// SetupPIN sets the first PIN of an account created without one.
func (s *AuthService) SetupPIN(ctx context.Context, userID, pin string) (principal Principal, err error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	if s.users == nil {
		return Principal{}, fmt.Errorf("user store not configured")
	}

	logger := s.loggerWith(ctx, "SetupPIN", "user_id", userID)
	defer func() {
		logResult(ctx, logger, err, "PIN setup")
	}()

	if err = validatePIN(pin); err != nil {
		return Principal{}, err
	}

	user, err := s.users.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return Principal{}, mapRepoError("get user", err)
	}
	if user.PINHash != "" {
		return Principal{}, &InvalidStateError{Reason: "PIN already set"}
	}

	if user.PINHash, err = s.hashPIN(pin); err != nil {
		return Principal{}, fmt.Errorf("hash PIN: %w", err)
	}
	user.UpdatedAt = s.now()
	if err = s.users.UpdateUser(ctx, user); err != nil {
		return Principal{}, mapRepoError("update user", err)
	}
	return Principal{UserID: user.ID, Role: user.Role}, nil
}

// ListUsers returns every account ordered by name. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, principal Principal) ([]persistence.User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user store not configured")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		err = mapRepoError("list users", err)
		logResult(ctx, s.loggerWith(ctx, "ListUsers"), err, "user listing")
		return nil, err
	}
	return users, nil
}
