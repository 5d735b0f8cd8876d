package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RequestID", func() {
	It("generates a trace id and exposes it via context and response header", func() {
		var seen string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		})

		rec := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal(seen))
	})

	It("honors an inbound X-Trace-ID header", func() {
		var seen string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", "trace-from-upstream")

		rec := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rec, req)

		Expect(seen).To(Equal("trace-from-upstream"))
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-from-upstream"))
	})

	It("returns empty when the middleware is not installed", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		Expect(RequestIDFromContext(req.Context())).To(BeEmpty())
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("records the trace id on both the request and response log lines", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		req.Header.Set("X-Trace-ID", "trace-42")

		rec := httptest.NewRecorder()
		RequestID(LoggingMiddleware(logger)(next)).ServeHTTP(rec, req)

		lines := bytes.Count(buf.Bytes(), []byte(`"request_id":"trace-42"`))
		Expect(lines).To(Equal(2), "expected the trace id on the incoming-request and response lines")
		Expect(buf.String()).To(ContainSubstring(`"status_code":204`))
	})

	It("masks sensitive headers before they reach the log", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("Authorization", "Bearer super-secret-token")

		rec := httptest.NewRecorder()
		RequestID(LoggingMiddleware(logger)(next)).ServeHTTP(rec, req)

		Expect(buf.String()).NotTo(ContainSubstring("super-secret-token"))
		Expect(buf.String()).To(ContainSubstring("[FILTERED]"))
	})
})
