package probe

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/connectforce/connectforce/internal/spec"
)

// ErrTokenRequired is returned by ApplyAuth for token based schemes when no
// token was supplied. Tokens are never acquired here.
var ErrTokenRequired = errors.New("an externally supplied access token is required")

// DefaultAPIKeyHeader is used when an API key config names no header.
const DefaultAPIKeyHeader = "X-API-Key"

// ApplyAuth sets the credentials selected by conn.AuthenticationType on req.
// Basic sends base64(username:password); API keys go to the named header or
// query parameter; OAuth2 and JWT send a bearer token only when one is
// configured. Certificate auth is applied at the transport, see TLSConfig.
func ApplyAuth(req *http.Request, conn *spec.Connection) error {
	cfg := conn.AuthConfig
	switch conn.AuthenticationType {
	case spec.AuthBasic:
		if cfg == nil || cfg.Basic == nil || cfg.Basic.Username == "" {
			return nil
		}
		raw := cfg.Basic.Username + ":" + cfg.Basic.Password
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
	case spec.AuthAPIKey:
		if cfg == nil || cfg.APIKey == nil || cfg.APIKey.APIKey == "" {
			return nil
		}
		name := cfg.APIKey.HeaderName
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		if cfg.APIKey.Location == spec.KeyInQuery {
			q := req.URL.Query()
			q.Set(name, cfg.APIKey.APIKey)
			req.URL.RawQuery = q.Encode()
			return nil
		}
		req.Header.Set(name, cfg.APIKey.APIKey)
	case spec.AuthOAuth2:
		if cfg == nil || cfg.OAuth2 == nil || cfg.OAuth2.AccessToken == "" {
			return fmt.Errorf("oauth2: %w", ErrTokenRequired)
		}
		req.Header.Set("Authorization", "Bearer "+cfg.OAuth2.AccessToken)
	case spec.AuthJWT:
		if cfg == nil || cfg.JWT == nil || cfg.JWT.Token == "" {
			return fmt.Errorf("jwt: %w", ErrTokenRequired)
		}
		req.Header.Set("Authorization", "Bearer "+cfg.JWT.Token)
	}
	return nil
}

// TLSConfig returns a client certificate configuration for certificate auth,
// or nil when conn uses another scheme. Encrypted keys are not supported.
func TLSConfig(conn *spec.Connection) (*tls.Config, error) {
	if conn.AuthenticationType != spec.AuthCertificate || conn.AuthConfig == nil || conn.AuthConfig.Certificate == nil {
		return nil, nil
	}
	c := conn.AuthConfig.Certificate
	if c.CertificatePath == "" || c.KeyPath == "" {
		return nil, nil
	}
	pair, err := tls.LoadX509KeyPair(c.CertificatePath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, nil
}
