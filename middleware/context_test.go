package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("explicit id", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	})

	t.Run("chi request id", func(t *testing.T) {
		var got string
		handler := chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetRequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(chimw.RequestIDHeader, "from-header")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "from-header", got)
	})

	t.Run("absent", func(t *testing.T) {
		assert.Equal(t, "", GetRequestIDFromContext(context.Background()))
	})
}

func TestClaimsContext(t *testing.T) {
	assert.Nil(t, GetClaimsFromContext(context.Background()))

	claims := &Claims{EmployeeID: "1"}
	ctx := WithClaims(context.Background(), claims)
	assert.Same(t, claims, GetClaimsFromContext(ctx))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-9"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "http request", entries[0].Message)
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "/health", fields["path"])
		assert.Equal(t, int64(http.StatusTeapot), fields["status"])
		assert.Equal(t, int64(15), fields["bytes"])
	}
}
