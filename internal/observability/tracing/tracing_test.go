package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupDisabledReturnsNoopSpans(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{SampleRatio: 0})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if CurrentTracer() != nil {
		t.Fatal("expected tracing to stay disabled")
	}
	ctx, span := StartSpan(context.Background(), "noop")
	if span.TraceID() != "" || TraceIDFromContext(ctx) != "" {
		t.Fatal("noop span should not carry a trace id")
	}
	span.SetAttribute("k", "v")
	span.End()
}

func TestFileExporterWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans", "trace.jsonl")
	shutdown, err := Setup(context.Background(), Config{ServiceName: "subcipher-test", SampleRatio: 1, FilePath: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		globalMu.Lock()
		globalTracer = nil
		globalMu.Unlock()
	})

	ctx, span := StartSpan(context.Background(), "cipher.encode", WithAttributes(map[string]any{"cipher.seed": int64(7)}))
	if span.TraceID() == "" || TraceIDFromContext(ctx) != span.TraceID() {
		t.Fatal("expected a sampled span with a trace id")
	}
	span.EndWithStatus(StatusOK, "")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open span file: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one span line")
	}
	var snap map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if snap["name"] != "cipher.encode" || snap["status"] != string(StatusOK) || snap["service_name"] != "subcipher-test" {
		t.Fatalf("unexpected span %v", snap)
	}
	attrs, _ := snap["attributes"].(map[string]any)
	if attrs["cipher.seed"] != float64(7) {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestMiddlewarePassesThrough(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rr.Code)
	}
}
