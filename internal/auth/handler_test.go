package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	ginkgo "github.com/onsi/ginkgo/v2"
	gomega "github.com/onsi/gomega"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/auth"
)

type stubService struct {
	authenticateResult *auth.LoginResult
	authenticateErr    error
	refreshResult      *auth.AuthTokens
	refreshErr         error
	validateClaims     *auth.AccessClaims
	validateErr        error
	revokedTokens      []string
}

func (s *stubService) Authenticate(ctx context.Context, dto auth.LoginDTO) (*auth.LoginResult, error) {
	if s.authenticateErr != nil {
		return nil, s.authenticateErr
	}
	return s.authenticateResult, nil
}

func (s *stubService) RefreshTokens(ctx context.Context, refreshToken string) (*auth.AuthTokens, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshResult, nil
}

func (s *stubService) RevokeSession(ctx context.Context, refreshToken string) {
	s.revokedTokens = append(s.revokedTokens, refreshToken)
}

func (s *stubService) ValidateAccessToken(tokenString string) (*auth.AccessClaims, error) {
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.validateClaims, nil
}

func (s *stubService) RefreshTokenTTL() time.Duration {
	return 7 * 24 * time.Hour
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	return nil
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		svc     *stubService
		handler *auth.Handler
	)

	ginkgo.BeforeEach(func() {
		svc = &stubService{
			authenticateResult: &auth.LoginResult{
				Tokens: auth.AuthTokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
				User: auth.UserView{
					ID:          1,
					Email:       "alice@internal.local",
					Name:        "Alice",
					Permissions: []string{"documents.view"},
				},
			},
			refreshResult: &auth.AuthTokens{AccessToken: "access-2", RefreshToken: "refresh-2"},
		}
		handler = auth.NewHandler(svc, auth.CookieConfig{Secure: true})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("returns the access token in the body and the refresh token only as an HttpOnly cookie", func() {
			body := strings.NewReader(`{"email":"alice@internal.local","password":"secret-password"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).NotTo(gomega.ContainSubstring("refresh-1"))

			var resp auth.LoginResponse
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.AccessToken).To(gomega.Equal("access-1"))
			gomega.Expect(resp.User.Email).To(gomega.Equal("alice@internal.local"))

			cookie := refreshCookie(rec)
			gomega.Expect(cookie).NotTo(gomega.BeNil())
			gomega.Expect(cookie.Value).To(gomega.Equal("refresh-1"))
			gomega.Expect(cookie.HttpOnly).To(gomega.BeTrue())
			gomega.Expect(cookie.Secure).To(gomega.BeTrue())
			gomega.Expect(cookie.Path).To(gomega.Equal("/api/v1/auth"))
			gomega.Expect(cookie.SameSite).To(gomega.Equal(http.SameSiteStrictMode))
		})

		ginkgo.It("maps invalid credentials to 401 without setting a cookie", func() {
			svc.authenticateErr = internal.ErrInvalidCredentials

			body := strings.NewReader(`{"email":"alice@internal.local","password":"wrong"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(refreshCookie(rec)).To(gomega.BeNil())
		})

		ginkgo.It("rejects a body that is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("not json"))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("maps validation failures to 400", func() {
			svc.authenticateErr = auth.ValidationError{Msg: "email is required"}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("RefreshToken", func() {
		ginkgo.It("rotates the cookie to the new refresh token", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "refresh-1"})
			rec := httptest.NewRecorder()

			handler.RefreshToken(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			var resp auth.LoginResponse
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.AccessToken).To(gomega.Equal("access-2"))
			gomega.Expect(resp.User).To(gomega.BeNil())

			cookie := refreshCookie(rec)
			gomega.Expect(cookie).NotTo(gomega.BeNil())
			gomega.Expect(cookie.Value).To(gomega.Equal("refresh-2"))
		})

		ginkgo.It("returns 401 when the cookie is missing", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
			rec := httptest.NewRecorder()

			handler.RefreshToken(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("revokes the session and expires the cookie", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "refresh-1"})
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(svc.revokedTokens).To(gomega.ConsistOf("refresh-1"))

			cookie := refreshCookie(rec)
			gomega.Expect(cookie).NotTo(gomega.BeNil())
			gomega.Expect(cookie.Value).To(gomega.BeEmpty())
			gomega.Expect(cookie.MaxAge).To(gomega.BeNumerically("<", 0))
		})

		ginkgo.It("still succeeds without a session cookie", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(svc.revokedTokens).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {

		var captured *auth.User

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured, _ = auth.UserFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		ginkgo.BeforeEach(func() {
			captured = nil
			svc.validateClaims = &auth.AccessClaims{
				Email:       "alice@internal.local",
				Role:        auth.RoleClaim{ID: 2, Name: "editor"},
				Permissions: []string{"documents.*", "users.view"},
				RegisteredClaims: jwt.RegisteredClaims{
					Subject: "1",
				},
			}
		})

		ginkgo.It("builds the caller identity entirely from the token claims", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			req.Header.Set("Authorization", "Bearer some-access-token")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(captured).NotTo(gomega.BeNil())
			gomega.Expect(captured.ID).To(gomega.Equal(int64(1)))
			gomega.Expect(captured.RoleName).To(gomega.Equal("editor"))
			gomega.Expect(captured.Permissions.Allows("documents.delete_all")).To(gomega.BeTrue())
			gomega.Expect(captured.Permissions.Allows("audit.view")).To(gomega.BeFalse())
		})

		ginkgo.It("rejects a request without a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(captured).To(gomega.BeNil())
		})

		ginkgo.It("rejects a token the service refuses", func() {
			svc.validateErr = internal.ErrInvalidToken

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			req.Header.Set("Authorization", "Bearer expired-token")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("rejects a token with a non-numeric subject", func() {
			svc.validateClaims.Subject = "not-a-number"

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			req.Header.Set("Authorization", "Bearer some-access-token")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
