// Package auth provides operator authentication for the status API
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/wurmstatus/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("operator login is not configured")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service issues and validates operator tokens
type Service struct {
	config *config.AuthConfig
	now    func() time.Time
}

// New creates a new auth service
func New(cfg *config.AuthConfig) *Service {
	return &Service{
		config: cfg,
		now:    time.Now,
	}
}

// Token is a signed operator token
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the validated contents of an operator token
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HashPassword returns the bcrypt hash to configure as auth.password_hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the operator password and issues a token for subject
func (s *Service) Login(subject, password string) (*Token, error) {
	if s.config.PasswordHash == "" {
		return nil, ErrLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if subject == "" {
		subject = "operator"
	}
	return s.IssueToken(subject)
}

// IssueToken signs a token for subject without checking a password
func (s *Service) IssueToken(subject string) (*Token, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.config.TokenExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{Token: tokenString, ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC()}, nil
}

// ValidateToken validates a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}
	iat, _ := token.Claims.GetIssuedAt()

	claims := &Claims{Subject: subject, ExpiresAt: exp.Time.UTC()}
	if iat != nil {
		claims.IssuedAt = iat.Time.UTC()
	}
	return claims, nil
}
