package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
	StatusPending   UserStatus = "pending"
)

// User is the authenticated caller identity carried through request context.
// It is rebuilt from the access-token snapshot on every request; it never
// reflects permission changes made after the token was issued.
type User struct {
	ID          int64
	Email       string
	RoleID      int64
	RoleName    string
	Permissions PermissionSet
}

// CredentialUser is the persisted credential record, loaded at login and
// refresh time.
type CredentialUser struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Status       UserStatus
	RoleID       *int64
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *CredentialUser) IsActive() bool {
	return u.Status == StatusActive
}

// Session tracks the refresh-token lifecycle of one login. TokenHash holds the
// hash of the currently valid refresh token; rotation replaces it atomically.
type Session struct {
	ID         string     `gorm:"column:id;primaryKey"`
	UserID     int64      `gorm:"column:user_id"`
	TokenHash  string     `gorm:"column:token_hash"`
	Generation int        `gorm:"column:generation"`
	IssuedAt   time.Time  `gorm:"column:issued_at"`
	ExpiresAt  time.Time  `gorm:"column:expires_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) IsUsable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type RoleClaim struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AccessClaims carries the permission snapshot. Claim names are part of the
// API contract.
type AccessClaims struct {
	Email       string    `json:"email"`
	Role        RoleClaim `json:"role"`
	Permissions []string  `json:"permissions"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"`
}

// LoginResult is what a successful authentication produces: the token pair
// plus the profile echoed back in the login response body.
type LoginResult struct {
	Tokens AuthTokens
	User   UserView
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error)
	RevokeSession(ctx context.Context, refreshToken string)
	ValidateAccessToken(tokenString string) (*AccessClaims, error)
	RefreshTokenTTL() time.Duration
}

// CredentialRepository is the credential-store boundary used at login and
// refresh time.
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*CredentialUser, error)
	GetByID(ctx context.Context, id int64) (*CredentialUser, error)
	// ResolvePermissions flattens role -> role_permissions -> permissions,
	// filtering on role and permission active flags.
	ResolvePermissions(ctx context.Context, roleID int64) ([]string, error)
}

// SessionRepository persists refresh sessions. Rotate must be a
// compare-and-swap on the stored token hash so that two concurrent refreshes
// of the same token cannot both succeed, even across service instances.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, id string) error
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(user *CredentialUser, permissions []string) (string, error)
	GenerateRefreshToken(userID int64, sessionID string) (string, error)
	ValidateAccessToken(tokenString string) (*AccessClaims, error)
	ValidateRefreshToken(tokenString string) (*RefreshClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
