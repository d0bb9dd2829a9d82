package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "ftp://example.com/spec.yaml")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v (%T)", err, err)
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	if err == nil {
		t.Fatalf("expected network error")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
}

func TestLoad_LocalFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "petstore.yaml")
	if err := os.WriteFile(path, []byte(petstoreSpec), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != petstoreSpec {
		t.Fatalf("content mismatch")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	if !IsCode(err, InputError) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestLoad_SizeLimit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "big.json")
	if err := os.WriteFile(path, []byte(strings.Repeat(" ", 2048)), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(context.Background(), path, WithMaxBytes(1024))
	if !IsCode(err, LimitError) {
		t.Fatalf("expected LimitError, got %v", err)
	}
}

func TestLoad_RemoteRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(petstoreSpec))
	}))
	defer srv.Close()

	data, err := Load(context.Background(), srv.URL+"/petstore.yaml", WithMaxRetries(3), WithBackoffBase(5*time.Millisecond))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(string(data), "Pet Store") {
		t.Fatalf("unexpected body: %q", data)
	}
	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Fatalf("expected a retry, got %d calls", got)
	}
}
