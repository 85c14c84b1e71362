package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tindahan/api/internal/platform/requestctx"
)

func TestInjectLoggerMiddleware(t *testing.T) {
	logger := zap.NewNop().Named("http")
	var got *zap.Logger
	handler := InjectLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestctx.HasLogger(r.Context()) {
			t.Fatal("expected a logger on the request context")
		}
		got = requestctx.Logger(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatal("expected the injected logger instance")
	}
}

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := InjectLoggerMiddleware(logger)(RequestLoggerMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-404", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("completion entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("level = %v, want warn for a 4xx", entry.Level)
	}

	fields := entry.ContextMap()
	if fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["bytes"] != int64(len("missing")) {
		t.Fatalf("bytes field = %v", fields["bytes"])
	}
	if fields["method"] != http.MethodGet || fields["path"] != "/api/v1/orders/ord-404" {
		t.Fatalf("request fields = %v", fields)
	}
}

func TestRequestLoggerMiddlewarePreservesFlusher(t *testing.T) {
	var flushable bool
	handler := RequestLoggerMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/feed", nil))

	if !flushable {
		t.Fatal("response writer must keep http.Flusher for the order feed")
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("normalizer exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Error != "internal_server_error" {
		t.Fatalf("error = %q", body.Error)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
}
