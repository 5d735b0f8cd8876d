package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/frahmantamala/document-management/internal"
)

// Service issues, refreshes and revokes token pairs. Permissions are resolved
// from the database at issuance time only; the access token carries that
// snapshot until it expires.
type Service struct {
	users      CredentialRepository
	sessions   SessionRepository
	tokenGen   TokenGeneratorAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(users CredentialRepository, sessions SessionRepository, tokenGen TokenGeneratorAPI, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		tokenGen:   tokenGen,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Authenticate validates credentials, resolves the caller's permission
// snapshot and opens a new refresh session.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		// unknown email and wrong password are indistinguishable to the caller
		return nil, internal.ErrInvalidCredentials
	}

	if err := VerifyPassword(user.PasswordHash, dto.Password); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.logger.Warn("login rejected for non-active account", "user_id", user.ID, "status", user.Status)
		return nil, internal.ErrUserInactive
	}

	permissions, err := s.resolvePermissions(ctx, user)
	if err != nil {
		s.logger.Error("permission resolution failed", "error", err, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	tokens, err := s.openSession(ctx, user, permissions)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated", "user_id", user.ID, "permission_count", len(permissions))

	return &LoginResult{
		Tokens: *tokens,
		User:   s.userView(user, permissions),
	}, nil
}

// RefreshTokens exchanges a valid refresh token for a fresh pair. Permissions
// are re-resolved from the store, never copied from the old token. The session
// rotation is a compare-and-swap: when two calls race on the same token,
// exactly one wins and the other fails with an invalid-session error.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokenGen.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, internal.ErrInvalidSession
	}

	now := time.Now()
	if !session.IsUsable(now) || session.TokenHash != HashToken(refreshToken) {
		s.logger.Warn("refresh rejected: session rotated, revoked or expired", "session_id", session.ID)
		return nil, internal.ErrInvalidSession
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID != session.UserID {
		return nil, internal.ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive() {
		return nil, internal.ErrInvalidSession
	}

	permissions, err := s.resolvePermissions(ctx, user)
	if err != nil {
		s.logger.Error("permission resolution failed during refresh", "error", err, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	newRefresh, err := s.tokenGen.GenerateRefreshToken(user.ID, session.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate refresh token", err)
	}

	expiresAt := now.Add(s.tokenGen.RefreshTTL())
	if err := s.sessions.Rotate(ctx, session.ID, session.TokenHash, HashToken(newRefresh), expiresAt); err != nil {
		// a concurrent refresh already rotated this generation
		s.logger.Warn("session rotation lost", "session_id", session.ID, "error", err)
		return nil, internal.ErrInvalidSession
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(user, permissions)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate access token", err)
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

// RevokeSession invalidates the session referenced by the refresh token.
// Logout must succeed regardless, so all failures are swallowed after logging.
func (s *Service) RevokeSession(ctx context.Context, refreshToken string) {
	claims, err := s.tokenGen.ValidateRefreshToken(refreshToken)
	if err != nil {
		return
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		s.logger.Warn("session revocation failed", "session_id", claims.SessionID, "error", err)
	}
}

func (s *Service) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	return s.tokenGen.ValidateAccessToken(tokenString)
}

func (s *Service) RefreshTokenTTL() time.Duration {
	return s.tokenGen.RefreshTTL()
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) openSession(ctx context.Context, user *CredentialUser, permissions []string) (*AuthTokens, error) {
	now := time.Now()
	sessionID := uuid.NewString()

	refreshToken, err := s.tokenGen.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate refresh token", err)
	}

	session := &Session{
		ID:         sessionID,
		UserID:     user.ID,
		TokenHash:  HashToken(refreshToken),
		Generation: 1,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.tokenGen.RefreshTTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, internal.NewInternalError("failed to create session", err)
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(user, permissions)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate access token", err)
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) resolvePermissions(ctx context.Context, user *CredentialUser) ([]string, error) {
	if user.RoleID == nil {
		return nil, nil
	}
	return s.users.ResolvePermissions(ctx, *user.RoleID)
}

func (s *Service) userView(user *CredentialUser, permissions []string) UserView {
	view := UserView{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Permissions: permissions,
	}
	if view.Permissions == nil {
		view.Permissions = []string{}
	}
	if user.RoleID != nil {
		view.Role = RoleClaim{ID: *user.RoleID, Name: user.RoleName}
	}
	return view
}

// HashToken hashes a refresh token for at-rest storage; the raw token only
// ever lives in the client cookie.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// JWTTokenGenerator signs and verifies HS256 token pairs with separate
// secrets for the access and refresh flavors.
type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(user *CredentialUser, permissions []string) (string, error) {
	now := time.Now()

	if permissions == nil {
		permissions = []string{}
	}

	claims := &AccessClaims{
		Email:       user.Email,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
		},
	}
	if user.RoleID != nil {
		claims.Role = RoleClaim{ID: *user.RoleID, Name: user.RoleName}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(userID int64, sessionID string) (string, error) {
	now := time.Now()

	claims := &RefreshClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.RefreshTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenString, claims, j.AccessTokenSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenString, claims, j.RefreshTokenSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (j *JWTTokenGenerator) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return internal.ErrTokenExpired
		}
		return internal.ErrInvalidToken
	}
	if !token.Valid {
		return internal.ErrInvalidToken
	}
	return nil
}

func (j *JWTTokenGenerator) AccessTTL() time.Duration {
	return j.AccessTokenTTL
}

func (j *JWTTokenGenerator) RefreshTTL() time.Duration {
	return j.RefreshTokenTTL
}
