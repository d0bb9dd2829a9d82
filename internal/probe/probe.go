// Package probe performs single live HTTP calls against a connection or one
// of its endpoints and reports the outcome.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/security"
	"github.com/connectforce/connectforce/internal/spec"
)

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 1 << 20

// Result is the outcome of one probe. Failures are reported here, never
// returned as errors.
type Result struct {
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"responseTime"`
	StatusCode   int           `json:"statusCode,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type Settings struct {
	Client *http.Client
	Logger *zap.Logger
	// Retry enables retries driven by the connection's RetryConfig.
	Retry bool
	Now   func() time.Time
}

type Option func(*Settings)

func WithHTTPClient(c *http.Client) Option { return func(s *Settings) { s.Client = c } }
func WithLogger(l *zap.Logger) Option      { return func(s *Settings) { s.Logger = l } }
func WithRetry(enabled bool) Option        { return func(s *Settings) { s.Retry = enabled } }
func WithClock(now func() time.Time) Option {
	return func(s *Settings) { s.Now = now }
}

type Probe struct {
	settings Settings
}

func New(opts ...Option) *Probe {
	s := Settings{Logger: zap.NewNop(), Now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return &Probe{settings: s}
}

// TestConnection sends GET to the connection's base URL.
func (p *Probe) TestConnection(ctx context.Context, conn *spec.Connection) Result {
	p.settings.Logger.Info("testing connection", zap.String("connection", conn.Name))
	return p.do(ctx, conn, http.MethodGet, conn.BaseURL, nil)
}

// TestEndpoint sends the endpoint's method to base URL + path. Path
// placeholders are sent as written; endpoint headers override connection
// headers.
func (p *Probe) TestEndpoint(ctx context.Context, conn *spec.Connection, ep *spec.Endpoint) Result {
	p.settings.Logger.Info("testing endpoint", zap.String("connection", conn.Name), zap.String("endpoint", ep.Name))
	url := strings.TrimRight(conn.BaseURL, "/") + ep.Path
	return p.do(ctx, conn, string(ep.Method), url, ep.Headers)
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %s", e.status) }

func (p *Probe) do(ctx context.Context, conn *spec.Connection, method, url string, extra map[string]string) Result {
	log := p.settings.Logger
	start := p.settings.Now()

	client, err := p.clientFor(conn)
	if err != nil {
		return Result{ResponseTime: p.settings.Now().Sub(start), Error: security.RedactError(err)}
	}

	attempts := uint(1)
	if p.settings.Retry && conn.RetryConfig.MaxRetries > 0 {
		attempts += uint(conn.RetryConfig.MaxRetries)
	}

	var status int
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, url, nil)
			if err != nil {
				return err
			}
			for k, v := range conn.Headers {
				req.Header.Set(k, v)
			}
			for k, v := range extra {
				req.Header.Set(k, v)
			}
			if err := ApplyAuth(req, conn); err != nil {
				log.Warn("sending request without credentials", zap.Error(err))
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
			status = resp.StatusCode
			if status < 200 || status >= 400 {
				return &statusError{code: status, status: resp.Status}
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(time.Duration(conn.RetryConfig.RetryDelay)*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			return errors.As(err, &se) && conn.RetryConfig.ShouldRetry(se.code)
		}),
	)

	res := Result{ResponseTime: p.settings.Now().Sub(start), StatusCode: status, Success: err == nil}
	if err != nil {
		res.Error = security.RedactError(err)
		log.Warn("probe failed", zap.String("url", url), zap.Int("status", status), zap.String("error", res.Error))
	} else {
		log.Info("probe succeeded", zap.String("url", url), zap.Int("status", status), zap.Duration("elapsed", res.ResponseTime))
	}
	return res
}

func (p *Probe) clientFor(conn *spec.Connection) (*http.Client, error) {
	timeout := conn.Timeout
	if timeout == 0 {
		timeout = spec.DefaultTimeout
	}
	timeout = spec.ClampTimeout(timeout)

	base := p.settings.Client
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.Timeout = time.Duration(timeout) * time.Millisecond

	tlsCfg, err := TLSConfig(conn)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		tr, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return nil, errors.New("client certificates need an *http.Transport")
		}
		tr = tr.Clone()
		tr.TLSClientConfig = tlsCfg
		c.Transport = tr
	}
	return &c, nil
}
