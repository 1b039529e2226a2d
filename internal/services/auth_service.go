package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo      repositories.UserRepository
	jwtSecret     []byte
	tokenDuration time.Duration
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService. A zero tokenDuration means 24 hours.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenDuration time.Duration, logger *zap.Logger) *AuthService {
	if tokenDuration <= 0 {
		tokenDuration = 24 * time.Hour
	}
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
		logger:        logger,
	}
}

// RegisterUser registers a new user, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	if existing, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existing != nil {
		return apperror.Conflict("username '%s' already taken", user.Username)
	} else if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	if existing, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existing != nil {
		return apperror.Conflict("email '%s' already registered", user.Email)
	} else if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return err
	}

	if user.Role == "" {
		user.Role = models.RoleBuyer
	}
	if user.Role == models.RoleAdmin {
		return apperror.Authorization("admin accounts cannot self-register")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal(err, "failed to hash password")
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", apperror.Authentication("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", apperror.Authentication("invalid credentials")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.tokenDuration).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperror.Internal(err, "failed to generate token")
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.logger.Debug("token validation failed", zap.Error(err))
		return nil, &apperror.Error{Kind: apperror.KindAuthentication, Message: "invalid token", Err: err}
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperror.Authentication("invalid token")
}
