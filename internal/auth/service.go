// Package auth provides account registration, login, and JWT verification.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/folioapp/folio/internal/currency"
	"github.com/folioapp/folio/internal/modules/users"
)

// ErrInvalidCredentials is returned on a failed login. The caller cannot
// distinguish an unknown email from a wrong password.
var ErrInvalidCredentials = fmt.Errorf("invalid email or password")

// Service issues and verifies tokens and manages account credentials.
type Service struct {
	users    *users.Repository
	secret   []byte
	lifetime time.Duration
	log      zerolog.Logger
}

// NewService creates a new auth service
func NewService(userRepo *users.Repository, secret string, lifetime time.Duration, log zerolog.Logger) *Service {
	return &Service{
		users:    userRepo,
		secret:   []byte(secret),
		lifetime: lifetime,
		log:      log.With().Str("service", "auth").Logger(),
	}
}

// Register creates a new account and returns the user with a signed token.
func (s *Service) Register(email, password, baseCurrency string) (*users.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("a valid email is required")
	}
	if len(password) < 8 {
		return nil, "", fmt.Errorf("password must be at least 8 characters")
	}

	if baseCurrency != "" {
		baseCurrency = currency.Normalize(baseCurrency)
		if !currency.IsAllowed(baseCurrency) {
			return nil, "", fmt.Errorf("%w: %q", currency.ErrUnsupported, baseCurrency)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(email, string(hash), baseCurrency)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("user_id", user.ID).Msg("User registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a signed token.
func (s *Service) Login(email, password string) (*users.User, string, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Profile returns the account behind a verified user ID.
func (s *Service) Profile(userID string) (*users.User, error) {
	return s.users.GetByID(userID)
}

// UpdateBaseCurrency changes the user's reporting currency, which every
// subsequent valuation is computed in.
func (s *Service) UpdateBaseCurrency(userID, baseCurrency string) (*users.User, error) {
	baseCurrency = currency.Normalize(baseCurrency)
	if !currency.IsAllowed(baseCurrency) {
		return nil, fmt.Errorf("%w: %q", currency.ErrUnsupported, baseCurrency)
	}

	if err := s.users.UpdateBaseCurrency(userID, baseCurrency); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("base_currency", baseCurrency).
		Msg("Base currency changed")
	return s.users.GetByID(userID)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(userID, string(hash))
}

// VerifyToken validates a signed token and returns the subject user ID.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return sub, nil
}

func (s *Service) issueToken(user *users.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
