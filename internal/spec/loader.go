package spec

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	getter "github.com/hashicorp/go-getter"
)

const (
	// MaxSpecBytes bounds the size of a spec document.
	MaxSpecBytes = 10 << 20
	// MaxSpecPaths bounds the number of distinct paths a spec may declare.
	MaxSpecPaths = 500
)

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each download attempt.
	HTTPTimeout time.Duration
	// MaxRetries is the number of download attempts for remote sources.
	MaxRetries int
	// BackoffBase is the delay between attempts; it doubles per attempt.
	BackoffBase time.Duration
	// MaxBytes caps the document size.
	MaxBytes int64
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		MaxBytes:    MaxSpecBytes,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithMaxBytes(n int64) Option { return func(s *Settings) { s.MaxBytes = n } }

// forcedSources are go-getter source prefixes accepted besides http(s) URLs.
var forcedSources = []string{"s3::", "gcs::", "git::", "http::", "https::"}

// Load reads raw spec text from a local path or a remote source.
//
// Remote sources are http/https URLs or go-getter forced sources such as
// "s3::https://bucket.s3.amazonaws.com/spec.yaml". file:// URLs are rejected;
// pass a plain path instead.
func Load(ctx context.Context, input string, opts ...Option) ([]byte, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	remote, err := classifyInput(input)
	if err != nil {
		return nil, err
	}
	if remote {
		return fetchRemote(ctx, input, settings)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	return readLimited(abs, settings.MaxBytes)
}

func classifyInput(input string) (bool, error) {
	for _, prefix := range forcedSources {
		if strings.HasPrefix(input, prefix) {
			return true, nil
		}
	}
	u, err := url.Parse(input)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false, nil
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "http", "https":
		return true, nil
	case "file":
		return false, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked, pass a local path instead", Location: input}
	default:
		return false, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
	}
}

func fetchRemote(ctx context.Context, src string, settings Settings) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "connectforce-spec-*")
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("create temp dir: %v", err), Location: src, Cause: err}
	}
	defer os.RemoveAll(tmp)
	dst := filepath.Join(tmp, "spec")

	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	err = retry.Do(
		func() error {
			attemptCtx := ctx
			if settings.HTTPTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, settings.HTTPTimeout)
				defer cancel()
			}
			return getter.GetFile(dst, src, getter.WithContext(attemptCtx))
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(settings.BackoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", src, err), Location: src, Cause: err}
	}

	data, err := readLimited(dst, settings.MaxBytes)
	if err != nil {
		if se, ok := err.(*SpecError); ok {
			se.Location = src
		}
		return nil, err
	}
	return data, nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxSpecBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", path, err), Location: path, Cause: err}
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() > limit {
		return nil, &SpecError{Code: LimitError, Message: fmt.Sprintf("spec: document is %d bytes, limit is %d", st.Size(), limit), Location: path}
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", path, err), Location: path, Cause: err}
	}
	if int64(len(data)) > limit {
		return nil, &SpecError{Code: LimitError, Message: fmt.Sprintf("spec: document exceeds %d bytes", limit), Location: path}
	}
	return data, nil
}
