package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/util"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// TokenRevoker blacklists token ids until they expire
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// AuthStateListener receives the signed-in user, or nil after logout
type AuthStateListener func(userID uint, user *model.User)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, *util.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*util.TokenPair, error)
	GetMe(userID uint) (*model.User, error)
	// OnAuthStateChange subscribes to register, login and logout events
	OnAuthStateChange(fn AuthStateListener) (unsubscribe func())
}

type authService struct {
	userRepo      repository.UserRepository
	revoker       TokenRevoker
	validate      *validator.Validate
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration

	mu        sync.RWMutex
	listeners map[int]AuthStateListener
	nextID    int
}

// NewAuthService builds the identity boundary. revoker may be nil when Redis
// is disabled; logout then only notifies listeners.
func NewAuthService(
	userRepo repository.UserRepository,
	revoker TokenRevoker,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		revoker:       revoker,
		validate:      validator.New(),
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		listeners:     make(map[int]AuthStateListener),
	}
}

func (s *authService) OnAuthStateChange(fn AuthStateListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *authService) emit(userID uint, user *model.User) {
	s.mu.RLock()
	listeners := make([]AuthStateListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(userID, user)
	}
}

func (s *authService) issueTokens(user *model.User) (*util.TokenPair, error) {
	tokens, err := util.GenerateTokenPair(
		user.ID,
		user.Email,
		string(user.Role),
		s.jwtSecret,
		s.accessExpiry,
		s.refreshExpiry,
	)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}
	return tokens, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error) {
	email := normalizeEmail(input.Email)
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": email,
	})

	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, nil, ErrInvalidEmail
	}
	if err := util.CheckPasswordStrength(input.Password); err != nil {
		return nil, nil, err
	}

	existingUser, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}
	if existingUser != nil {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(input.Password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	user := &model.User{
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		DisplayName:  strings.TrimSpace(firstName + " " + lastName),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrEmailAlreadyExists
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   email,
	})
	s.emit(user.ID, user)
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*model.User, *util.TokenPair, error) {
	email = normalizeEmail(email)
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.Warn("Login refused: account deactivated", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrAccountDeactivated
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(user.ID, now); err != nil {
		logger.Warn("Failed to record last login", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	} else {
		user.LastLoginAt = &now
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
	})
	s.emit(user.ID, user)
	return user, tokens, nil
}

// revoke blacklists a token for the rest of its lifetime
func (s *authService) revoke(ctx context.Context, claims *util.Claims) error {
	if s.revoker == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoker.BlacklistToken(ctx, claims.ID, ttl)
}

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	claims, err := util.ValidateTokenOfType(accessToken, s.jwtSecret, util.TokenTypeAccess)
	if err != nil {
		return err
	}

	if err := s.revoke(ctx, claims); err != nil {
		logger.Error("Failed to revoke access token", err, map[string]interface{}{
			"user_id": claims.UserID,
		})
		return err
	}

	logger.Info("User logged out", map[string]interface{}{
		"user_id": claims.UserID,
	})
	s.emit(claims.UserID, nil)
	return nil
}

// RefreshToken rotates a refresh token: the old one is revoked and a new pair issued
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateTokenOfType(refreshToken, s.jwtSecret, util.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if s.revoker != nil && claims.ID != "" {
		revoked, err := s.revoker.IsTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	user, err := s.GetMe(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		logger.Warn("Failed to revoke rotated refresh token", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}
	return tokens, nil
}

func (s *authService) GetMe(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
