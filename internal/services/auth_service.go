package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-requests/config"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/repository"
	app_errors "chat-requests/pkg/errors"
	"chat-requests/pkg/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = app_errors.New(app_errors.ErrUnauthorized, "invalid email or password")
	errEmailTaken         = app_errors.New(app_errors.ErrAlreadyExists, "email already registered")
)

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	AccessToken string
	ExpiresIn   int64
	User        user.User
}

type AccessClaims struct {
	jwt.RegisteredClaims
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		// bcrypt ignores anything past 72 bytes.
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.DisplayName, validation.Length(0, 100)),
	)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	in.Email = user.NormalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := in.Validate(); err != nil {
		return AuthResponse{}, app_errors.New(app_errors.ErrValidation, err.Error())
	}

	if _, err := s.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		return AuthResponse{}, errEmailTaken
	} else if !errors.Is(err, app_errors.ErrNotFound) {
		return AuthResponse{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return AuthResponse{}, err
	}

	now := time.Now()
	newUser := user.User{
		ID:           uuid.New(),
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, &newUser); err != nil {
		if errors.Is(err, app_errors.ErrAlreadyExists) {
			return AuthResponse{}, errEmailTaken
		}
		return AuthResponse{}, err
	}

	return s.issue(newUser)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	in.Email = user.NormalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return AuthResponse{}, app_errors.New(app_errors.ErrValidation, "email and password are required")
	}

	u, err := s.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, app_errors.ErrNotFound) {
			return AuthResponse{}, errInvalidCredentials
		}
		return AuthResponse{}, err
	}

	if err := comparePassword(u.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, errInvalidCredentials
	}

	return s.issue(u)
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, app_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, app_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, app_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, app_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate resolves the user an access token was issued to.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (user.User, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return user.User{}, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return user.User{}, app_errors.ErrUnauthorized
	}
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, app_errors.ErrNotFound) {
			return user.User{}, app_errors.ErrUnauthorized
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *AuthService) issue(u user.User) (AuthResponse, error) {
	token, expiresIn, err := s.newAccessToken(u.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{AccessToken: token, ExpiresIn: expiresIn, User: u}, nil
}

func (s *AuthService) newAccessToken(userID uuid.UUID) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

type ctxKey string

var currentUserKey ctxKey = "current_user"

// WithUserContext stores the authenticated user in ctx.
func WithUserContext(ctx context.Context, u user.User) context.Context {
	ctx = context.WithValue(ctx, currentUserKey, u)
	return context.WithValue(ctx, logger.UserIdKey, u.ID.String())
}

func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(currentUserKey).(user.User)
	return u, ok
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
