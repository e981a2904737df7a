package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL   = time.Hour
	tokenIssuer       = "reflow-oven"
	minPasswordLength = 8
	maxUsernameLength = 64
)

var ErrNoSigningKey = errors.New("auth: signing key is empty")

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidUsername    = fmt.Errorf("username must be 1..%d characters without spaces", maxUsernameLength)
)

// AuthService manages operator accounts and the bearer tokens that
// authorize oven commands.
type AuthService struct {
	repo       repository.Authorization
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuthService(repo repository.Authorization, signingKey string, tokenTTL time.Duration) (*AuthService, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, ErrNoSigningKey
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &AuthService{repo: repo, signingKey: []byte(signingKey), tokenTTL: tokenTTL}, nil
}

// Claims carries the operator id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// SignUp creates an operator. A taken name yields repository.ErrUserExists.
func (s *AuthService) SignUp(ctx context.Context, username, password string) (int, error) {
	if err := validateUsername(username); err != nil {
		return 0, err
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return 0, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, username, string(hash))
}

// GenerateToken checks the credentials and issues a token. Unknown names
// and wrong passwords are not told apart.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(u.ID)
}

// ParseToken returns the operator id of a valid HS256 token.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *AuthService) Operators(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// EnsureUser creates the account when it does not exist yet. It is used to
// provision the first operator from the configuration.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if u != nil {
		return false, nil
	}
	if _, err := s.SignUp(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) issueToken(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}

func validateUsername(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLength || strings.ContainsAny(name, " \t\r\n") {
		return ErrInvalidUsername
	}
	return nil
}
