package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rescueboard/internal/auth"
	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/model"
	"rescueboard/internal/repository"
	"rescueboard/internal/validation"
)

const bcryptCost = 10

// dummyHash is compared against when the email is unknown so that both login
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("rescueboard-dummy-password"), bcryptCost)

var errEmailTaken = apperrors.NewValidationError("email", "The email has already been taken.")

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Name                 string `json:"name" form:"name" validate:"required,max=255"`
	Email                string `json:"email" form:"email" validate:"required,email,max=255"`
	Password             string `json:"password" form:"password" validate:"required,min=6,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation"`
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// PushTokenInput carries a device registration token.
type PushTokenInput struct {
	FCMToken string `json:"fcm_token" form:"fcm_token" validate:"required,max=512"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Authenticate(ctx context.Context, claims *auth.Claims) (*model.User, error)
	Logout(ctx context.Context, tokenID string) error
	UpdatePushToken(ctx context.Context, userID uint, in PushTokenInput) error
}

type authService struct {
	userRepo   repository.UserRepository
	users      UserService
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	validator  *validation.Validator
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, users UserService, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, v *validation.Validator) AuthService {
	return &authService{
		userRepo:   userRepo,
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
		validator:  v,
	}
}

// Register creates a student account and opens a session for it.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err == nil && existing != nil {
		return nil, errEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hashedPassword),
		Role:         model.RoleStudent,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent registration can pass the lookup above.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(ctx, user)
}

// Login verifies credentials and opens a new session.
func (s *authService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *authService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	tokenID, token, err := s.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.tokenStore.StoreSession(ctx, tokenID, user.ID, s.jwtService.Expiry()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves validated token claims to a live session and its user.
func (s *authService) Authenticate(ctx context.Context, claims *auth.Claims) (*model.User, error) {
	userID, err := s.tokenStore.GetSession(ctx, claims.ID)
	if err != nil || userID != claims.UserID {
		return nil, apperrors.ErrUnauthenticated
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Logout revokes the session behind one token. Other sessions of the user stay valid.
func (s *authService) Logout(ctx context.Context, tokenID string) error {
	return s.tokenStore.DeleteSession(ctx, tokenID)
}

func (s *authService) UpdatePushToken(ctx context.Context, userID uint, in PushTokenInput) error {
	if err := s.validator.Struct(&in); err != nil {
		return err
	}
	if err := s.users.UpdateFCMToken(ctx, userID, in.FCMToken); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUnauthenticated
		}
		return fmt.Errorf("update fcm token: %w", err)
	}
	return nil
}
