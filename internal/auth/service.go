// Package auth implements the credential store: registration, login and
// bearer-token verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"expensed/internal/core"
	"expensed/internal/log"
	"expensed/internal/storage"
)

// Claims is the JWT payload issued on login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	users      storage.UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     *log.Logger
}

func NewService(users storage.UserRepository, secret string, tokenTTL time.Duration, bcryptCost int, logger *log.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentAuth)
	}
	return &Service{
		users:      users,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a new account and returns its id. The password is stored
// only as a bcrypt hash.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", core.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "user registered", log.FieldUsername, username)
	return user.ID, nil
}

// Login checks the credentials and returns a signed token. Unknown username
// and wrong password produce the same error so callers cannot probe for
// accounts.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", core.ErrValidation)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("%w: invalid credentials", core.ErrAuthentication)
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", core.ErrAuthentication)
	}

	now := time.Now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", log.FieldUsername, user.Username)
	return signed, nil
}

// Verify parses and validates a bearer token and returns the identity it
// carries.
func (s *Service) Verify(tokenString string) (core.Identity, error) {
	if tokenString == "" {
		return core.Identity{}, fmt.Errorf("%w: missing token", core.ErrAuthentication)
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return core.Identity{}, fmt.Errorf("%w: invalid token", core.ErrAuthentication)
	}
	if claims.Subject == "" {
		return core.Identity{}, fmt.Errorf("%w: token missing subject", core.ErrAuthentication)
	}

	return core.Identity{ID: claims.Subject, Username: claims.Username}, nil
}
