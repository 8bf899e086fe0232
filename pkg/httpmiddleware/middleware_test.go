package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, trace)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal Server Error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "issued", incoming: "", reuse: false},
		{name: "reused", incoming: "req-123", reuse: true},
		{name: "too long", incoming: strings.Repeat("a", 129), reuse: false},
		{name: "control chars", incoming: "bad\nid", reuse: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header[RequestIDHeader] = []string{tt.incoming}
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}

func TestInjectLogger_LogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zctx.From(r.Context()).Info("inside")
			w.WriteHeader(http.StatusCreated)
		}),
		RequestID(),
		InjectLogger(zap.New(core)),
		LogRequests(),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "inside", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	served := entries[1]
	assert.Equal(t, "request served", served.Message)
	assert.Equal(t, zapcore.DebugLevel, served.Level)
	fields := served.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, "/api/cart/items", fields["path"])
}

func TestLogRequests_ServerError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
		InjectLogger(zap.New(core)),
		LogRequests(),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		headers    map[string]string
		wantStatus int
		wantOrigin string
		wantExpose string
		wantAllow  string
	}{
		{
			name:       "wildcard actual request exposes session header",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}, ExposeHeaders: []string{"X-Cart-Session"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://shop.example"},
			wantStatus: http.StatusOK,
			wantOrigin: "*",
			wantExpose: "X-Cart-Session",
		},
		{
			name:   "preflight echoes requested headers",
			cfg:    CORSConfig{AllowOrigins: []string{"https://Shop.example"}},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                         "https://shop.example",
				"Access-Control-Request-Method":  "PATCH",
				"Access-Control-Request-Headers": "X-Cart-Session",
			},
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://Shop.example",
			wantAllow:  "X-Cart-Session",
		},
		{
			name:       "unknown origin",
			cfg:        CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://evil.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no origin",
			cfg:        CORSConfig{},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/cart", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantExpose, w.Header().Get("Access-Control-Expose-Headers"))
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}
