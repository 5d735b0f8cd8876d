package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/document-management/internal/transport"
	"github.com/frahmantamala/document-management/pkg/logger"
)

const refreshCookieName = "refreshToken"

// CookieConfig controls the refresh-token cookie attributes. Secure is
// configurable only so local development over plain HTTP keeps working.
type CookieConfig struct {
	Secure bool
	Domain string
	Path   string
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  CookieConfig
}

func NewHandler(svc ServiceAPI, cookie CookieConfig) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if cookie.Path == "" {
		cookie.Path = "/api/v1/auth"
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookie:      cookie,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("authentication failed", "error", err, "email", dto.Email)
		if _, ok := err.(ValidationError); ok {
			h.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.HandleServiceError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	h.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.Tokens.AccessToken,
		User:        &result.User,
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), cookie.Value)
	if err != nil {
		h.Logger.Warn("token refresh failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.setRefreshCookie(w, tokens.RefreshToken)
	h.WriteJSON(w, http.StatusOK, LoginResponse{AccessToken: tokens.AccessToken})
}

// Logout revokes the refresh session and clears the cookie. Always 200: the
// client outcome is the same whether or not a live session existed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		h.Service.RevokeSession(r.Context(), cookie.Value)
	}

	h.clearRefreshCookie(w)
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// AuthMiddleware authenticates the request from the bearer access token and
// stores the caller identity in context. The identity is built entirely from
// the token's permission snapshot; no database round trip happens here.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			h.Logger.Warn("malformed subject in access token", "subject", claims.Subject)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user := &User{
			ID:          userID,
			Email:       claims.Email,
			RoleID:      claims.Role.ID,
			RoleName:    claims.Role.Name,
			Permissions: NewPermissionSet(claims.Permissions),
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = logger.With(ctx, "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   int(h.Service.RefreshTokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
