package service

import (
	"context"
	"errors"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// AuthClaims is the JWT payload carried by API requests.
type AuthClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService registers coach/client identities and issues tokens.
// This is deliberately thin: password reset, refresh and third-party
// sign-in live outside this engine.
type AuthService interface {
	Register(ctx context.Context, name, email, password string, role domain.Role) (string, error)
	Login(ctx context.Context, email, password string) (token string, userID string, role domain.Role, err error)
}

type authService struct {
	store         store.Store
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(st store.Store, jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{store: st, jwtSecret: jwtSecret, jwtExpiration: jwtExpiration}
}

// Register creates a profile document in the collection matching the
// role and returns the new user id.
func (s *authService) Register(ctx context.Context, name, email, password string, role domain.Role) (string, error) {
	if name == "" || email == "" || password == "" {
		return "", errors.New("name, email and password cannot be empty")
	}
	if role != domain.RoleCoach && role != domain.RoleClient {
		return "", errors.New("role must be coach or client")
	}

	if _, _, err := s.findByEmail(ctx, email); err == nil {
		return "", ErrUserAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingFailed
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	batch := store.NewBatch()
	if role == domain.RoleCoach {
		batch.Set(store.Coaches, id, domain.Coach{
			ID: id, Email: email, PasswordHash: string(hashed), DisplayName: name,
			CreatedAt: now, UpdatedAt: now,
		})
	} else {
		batch.Set(store.Clients, id, domain.Client{
			ID: id, Email: email, PasswordHash: string(hashed), DisplayName: name,
			CreatedAt: now, UpdatedAt: now,
		})
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return "", err
	}
	return id, nil
}

// Login verifies the password and issues a signed token.
func (s *authService) Login(ctx context.Context, email, password string) (string, string, domain.Role, error) {
	identity, role, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", "", ErrAuthenticationFailed
		}
		return "", "", "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.hash), []byte(password)) != nil {
		return "", "", "", ErrAuthenticationFailed
	}

	claims := AuthClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", "", "", ErrTokenGeneration
	}
	return token, identity.id, role, nil
}

type identityRecord struct {
	id   string
	hash string
}

// findByEmail checks the coaches collection, then clients; the same
// two-collection lookup order the resolver uses.
func (s *authService) findByEmail(ctx context.Context, email string) (identityRecord, domain.Role, error) {
	var coaches []domain.Coach
	if err := s.store.Find(ctx, store.Coaches, store.NewQuery().Where("email", store.OpEq, email).Limit(1), &coaches); err != nil {
		return identityRecord{}, "", err
	}
	if len(coaches) > 0 {
		return identityRecord{id: coaches[0].ID, hash: coaches[0].PasswordHash}, domain.RoleCoach, nil
	}

	var clients []domain.Client
	if err := s.store.Find(ctx, store.Clients, store.NewQuery().Where("email", store.OpEq, email).Limit(1), &clients); err != nil {
		return identityRecord{}, "", err
	}
	if len(clients) > 0 {
		return identityRecord{id: clients[0].ID, hash: clients[0].PasswordHash}, domain.RoleClient, nil
	}
	return identityRecord{}, "", store.ErrNotFound
}
