// Package connection manages the lifecycle of stored connections: creation
// with validation, endpoint edits, duplication, export, import and live
// tests through the probe.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/probe"
	"github.com/connectforce/connectforce/internal/security"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
)

const (
	MaxDescriptionLength = 500
	DefaultEndpointName  = "New Endpoint"
	copySuffix           = " (Copy)"
)

var (
	ErrInvalidConnection = errors.New("invalid connection")
	ErrInvalidID         = errors.New("invalid connection id")
)

// Prober runs live checks; *probe.Probe satisfies it.
type Prober interface {
	TestConnection(ctx context.Context, conn *spec.Connection) probe.Result
	TestEndpoint(ctx context.Context, conn *spec.Connection, ep *spec.Endpoint) probe.Result
}

// Input carries the caller supplied fields of a new connection.
type Input struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	BaseURL            string            `json:"baseUrl"`
	AuthenticationType spec.AuthType     `json:"authenticationType,omitempty"`
	AuthConfig         *spec.AuthConfig  `json:"authConfig,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
	Timeout            int               `json:"timeout,omitempty"`
	RetryConfig        *spec.RetryConfig `json:"retryConfig,omitempty"`
	Endpoints          []spec.Endpoint   `json:"endpoints,omitempty"`
	Tags               []string          `json:"tags,omitempty"`
	ERPType            spec.ERPType      `json:"erpType,omitempty"`
}

// Exported is the shareable form of a connection. It never carries
// credentials.
type Exported struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	BaseURL            string            `json:"baseUrl"`
	AuthenticationType spec.AuthType     `json:"authenticationType"`
	Headers            map[string]string `json:"headers"`
	Endpoints          []spec.Endpoint   `json:"endpoints"`
	ERPType            spec.ERPType      `json:"erpType,omitempty"`
}

type Service struct {
	store  store.Store
	prober Prober
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithProber(p Prober) Option          { return func(s *Service) { s.prober = p } }
func WithLogger(l *zap.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator replaces the random UUID source.
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.Must(uuid.NewV4()).String() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.prober == nil {
		s.prober = probe.New(probe.WithLogger(s.logger))
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]spec.Connection, error) {
	return s.store.Connections(ctx)
}

// Get looks a connection up by its UUID.
func (s *Service) Get(ctx context.Context, id string) (*spec.Connection, error) {
	if _, err := uuid.FromString(id); err != nil {
		s.logger.Warn("invalid connection id", zap.String("id", id))
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.store.Connection(ctx, id)
}

// Resolve accepts an id or a connection name; names match case-insensitively
// and must be unambiguous.
func (s *Service) Resolve(ctx context.Context, ref string) (*spec.Connection, error) {
	all, err := s.store.Connections(ctx)
	if err != nil {
		return nil, err
	}
	var match *spec.Connection
	for i := range all {
		if all[i].ID == ref {
			return &all[i], nil
		}
		if strings.EqualFold(all[i].Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("connection name %q is ambiguous, use the id", ref)
			}
			match = &all[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("connection %q: %w", ref, store.ErrNotFound)
	}
	return match, nil
}

// Create validates in, applies defaults and stores the new connection with
// status inactive.
func (s *Service) Create(ctx context.Context, in Input) (*spec.Connection, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: connection name is required", ErrInvalidConnection)
	}
	if strings.TrimSpace(in.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConnection)
	}
	name, err := security.SanitizeConnectionName(in.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	if !security.IsValidURL(in.BaseURL) {
		return nil, fmt.Errorf("%w: invalid base URL format", ErrInvalidConnection)
	}

	auth := in.AuthenticationType
	if auth == "" {
		auth = spec.AuthNone
	}
	timeout := in.Timeout
	if timeout == 0 {
		timeout = spec.DefaultTimeout
	}
	retry := spec.DefaultRetryConfig()
	if in.RetryConfig != nil {
		retry = *in.RetryConfig
	}
	headers := security.SanitizeHeaders(in.Headers)
	for k := range in.Headers {
		if _, ok := headers[strings.TrimSpace(k)]; !ok {
			s.logger.Warn("skipping invalid header", zap.String("header", k))
		}
	}

	now := s.now()
	c := &spec.Connection{
		ID:                 s.newID(),
		Name:               name,
		Description:        truncate(in.Description, MaxDescriptionLength),
		BaseURL:            strings.TrimSpace(in.BaseURL),
		AuthenticationType: auth,
		AuthConfig:         in.AuthConfig,
		Headers:            headers,
		Timeout:            spec.ClampTimeout(timeout),
		RetryConfig:        retry,
		Endpoints:          nonNil(in.Endpoints),
		Status:             spec.StatusInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
		Tags:               nonNil(in.Tags),
		ERPType:            in.ERPType,
	}
	if err := s.store.SaveConnection(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("created connection", zap.String("name", c.Name), zap.String("id", c.ID))
	return c, nil
}

// Save stores c after refreshing UpdatedAt.
func (s *Service) Save(ctx context.Context, c *spec.Connection) error {
	c.Touch(s.now())
	if err := s.store.SaveConnection(ctx, c); err != nil {
		return err
	}
	s.logger.Info("saved connection", zap.String("name", c.Name), zap.String("id", c.ID))
	return nil
}

// Update applies the non-zero fields of in to the stored connection with the
// same rules as Create. Endpoints are edited through the endpoint methods.
func (s *Service) Update(ctx context.Context, id string, in Input) (*spec.Connection, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) != "" {
		name, err := security.SanitizeConnectionName(in.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
		}
		c.Name = name
	}
	if strings.TrimSpace(in.BaseURL) != "" {
		if !security.IsValidURL(in.BaseURL) {
			return nil, fmt.Errorf("%w: invalid base URL format", ErrInvalidConnection)
		}
		c.BaseURL = strings.TrimSpace(in.BaseURL)
	}
	if in.Description != "" {
		c.Description = truncate(in.Description, MaxDescriptionLength)
	}
	if in.AuthenticationType != "" {
		c.AuthenticationType = in.AuthenticationType
	}
	if in.AuthConfig != nil {
		c.AuthConfig = in.AuthConfig
	}
	if in.Headers != nil {
		c.Headers = security.SanitizeHeaders(in.Headers)
	}
	if in.Timeout != 0 {
		c.Timeout = spec.ClampTimeout(in.Timeout)
	}
	if in.RetryConfig != nil {
		c.RetryConfig = *in.RetryConfig
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.ERPType != "" {
		c.ERPType = in.ERPType
	}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteConnection(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted connection", zap.String("id", id))
	return nil
}

// Test probes the base URL and records the outcome as the connection status.
func (s *Service) Test(ctx context.Context, id string) (probe.Result, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return probe.Result{}, err
	}
	res := s.prober.TestConnection(ctx, c)
	if res.Success {
		c.Status = spec.StatusActive
	} else {
		c.Status = spec.StatusError
	}
	if err := s.Save(ctx, c); err != nil {
		return res, err
	}
	return res, nil
}

// TestEndpoint probes one endpoint. The connection status is left alone.
func (s *Service) TestEndpoint(ctx context.Context, id, endpointID string) (probe.Result, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return probe.Result{}, err
	}
	ep := c.Endpoint(endpointID)
	if ep == nil {
		return probe.Result{}, fmt.Errorf("endpoint %s: %w", endpointID, store.ErrNotFound)
	}
	return s.prober.TestEndpoint(ctx, c, ep), nil
}

// AddEndpoint appends ep with a fresh id and defaults for missing fields.
func (s *Service) AddEndpoint(ctx context.Context, id string, ep spec.Endpoint) (*spec.Endpoint, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ep.ID = s.newID()
	if ep.Name == "" {
		ep.Name = DefaultEndpointName
	}
	if ep.Path == "" {
		ep.Path = "/"
	}
	if ep.Path, err = security.SanitizeEndpointPath(ep.Path); err != nil {
		return nil, err
	}
	if ep.Method == "" {
		ep.Method = spec.GET
	}
	ep.Parameters = nonNil(ep.Parameters)
	ep.Tags = nonNil(ep.Tags)
	if ep.Headers == nil {
		ep.Headers = map[string]string{}
	}
	c.Endpoints = append(c.Endpoints, ep)
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return &c.Endpoints[len(c.Endpoints)-1], nil
}

// UpdateEndpoint replaces the endpoint with the same id.
func (s *Service) UpdateEndpoint(ctx context.Context, id string, ep spec.Endpoint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	cur := c.Endpoint(ep.ID)
	if cur == nil {
		return fmt.Errorf("endpoint %s: %w", ep.ID, store.ErrNotFound)
	}
	*cur = ep
	return s.Save(ctx, c)
}

func (s *Service) DeleteEndpoint(ctx context.Context, id, endpointID string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	kept := c.Endpoints[:0]
	for _, ep := range c.Endpoints {
		if ep.ID != endpointID {
			kept = append(kept, ep)
		}
	}
	c.Endpoints = kept
	return s.Save(ctx, c)
}

// Duplicate creates a copy under new ids. The name gains a copy suffix
// before sanitisation.
func (s *Service) Duplicate(ctx context.Context, id string) (*spec.Connection, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	endpoints := make([]spec.Endpoint, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		ep.ID = s.newID()
		endpoints[i] = ep
	}
	retry := c.RetryConfig
	return s.Create(ctx, Input{
		Name:               c.Name + copySuffix,
		Description:        c.Description,
		BaseURL:            c.BaseURL,
		AuthenticationType: c.AuthenticationType,
		AuthConfig:         c.AuthConfig,
		Headers:            c.Headers,
		Timeout:            c.Timeout,
		RetryConfig:        &retry,
		Endpoints:          endpoints,
		Tags:               c.Tags,
		ERPType:            c.ERPType,
	})
}

// Export returns the credential free form of c.
func Export(c *spec.Connection) Exported {
	return Exported{
		Name:               c.Name,
		Description:        c.Description,
		BaseURL:            c.BaseURL,
		AuthenticationType: c.AuthenticationType,
		Headers:            c.Headers,
		Endpoints:          nonNil(c.Endpoints),
		ERPType:            c.ERPType,
	}
}

// ExportJSON renders Export(c) as indented JSON.
func ExportJSON(c *spec.Connection) ([]byte, error) {
	return json.MarshalIndent(Export(c), "", "  ")
}

// Import creates a connection from an exported document. The document may
// also carry authConfig; ids are always fresh.
func (s *Service) Import(ctx context.Context, data []byte) (*spec.Connection, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	for i := range in.Endpoints {
		in.Endpoints[i].ID = s.newID()
	}
	in.Timeout, in.RetryConfig, in.Tags = 0, nil, nil
	return s.Create(ctx, in)
}

// SaveImported stores a connection produced by spec.ImportFromSpec.
func (s *Service) SaveImported(ctx context.Context, c *spec.Connection) error {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.Status == "" {
		c.Status = spec.StatusInactive
	}
	return s.Save(ctx, c)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
