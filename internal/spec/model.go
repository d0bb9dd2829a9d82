package spec

import (
	"sort"
	"strings"
	"time"
)

// Internal model shared by the importer, the exporter and every emitter.

type DataType string

const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeInteger  DataType = "integer"
	TypeBoolean  DataType = "boolean"
	TypeArray    DataType = "array"
	TypeObject   DataType = "object"
	TypeDate     DataType = "date"
	TypeDateTime DataType = "datetime"
)

// ParseDataType maps an OpenAPI type keyword onto the closed DataType set.
// Unknown or empty keywords fall back to def.
func ParseDataType(s string, def DataType) DataType {
	switch DataType(s) {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		return DataType(s)
	case "":
		return def
	default:
		return TypeString
	}
}

type HTTPMethod string

const (
	GET    HTTPMethod = "GET"
	POST   HTTPMethod = "POST"
	PUT    HTTPMethod = "PUT"
	PATCH  HTTPMethod = "PATCH"
	DELETE HTTPMethod = "DELETE"
)

// Methods lists the supported verbs in canonical order.
var Methods = []HTTPMethod{GET, POST, PUT, PATCH, DELETE}

// HasBody reports whether requests with this method carry a JSON body.
func (m HTTPMethod) HasBody() bool {
	return m == POST || m == PUT || m == PATCH
}

// Schema is one node of a request or response shape. The same node type is
// used at the root and for properties; Required marks a property as required
// by its parent, RequiredFields lists required children of an object node.
type Schema struct {
	Type           DataType           `json:"type"`
	Description    string             `json:"description,omitempty"`
	Format         string             `json:"format,omitempty"`
	Properties     map[string]*Schema `json:"properties,omitempty"`
	Items          *Schema            `json:"items,omitempty"`
	RequiredFields []string           `json:"requiredFields,omitempty"`
	Required       bool               `json:"required,omitempty"`
	Nullable       bool               `json:"nullable,omitempty"`
	Enum           []string           `json:"enum,omitempty"`
	MinLength      *int               `json:"minLength,omitempty"`
	MaxLength      *int               `json:"maxLength,omitempty"`
	Pattern        string             `json:"pattern,omitempty"`
	Example        any                `json:"example,omitempty"`
	// Cyclic marks a placeholder standing in for a reference that was not
	// expanded; Ref names the schema it pointed at.
	Cyclic bool   `json:"cyclic,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

// PropertyNames returns property names in sorted order.
func (s *Schema) PropertyNames() []string {
	if s == nil || len(s.Properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether the named property is required, either through
// the parent's RequiredFields or the property's own flag.
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.RequiredFields {
		if r == name {
			return true
		}
	}
	if p := s.Properties[name]; p != nil {
		return p.Required
	}
	return false
}

// HasProperties reports whether s is an object with a named field list.
func (s *Schema) HasProperties() bool {
	return s != nil && s.Type == TypeObject && len(s.Properties) > 0
}

type ParamLocation string

const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InHeader ParamLocation = "header"
)

type Parameter struct {
	Name         string        `json:"name"`
	In           ParamLocation `json:"in"`
	Required     bool          `json:"required"`
	Type         DataType      `json:"type"`
	Description  string        `json:"description,omitempty"`
	DefaultValue string        `json:"defaultValue,omitempty"`
	Enum         []string      `json:"enum,omitempty"`
}

type Endpoint struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Path           string            `json:"path"`
	Method         HTTPMethod        `json:"method"`
	Parameters     []Parameter       `json:"parameters"`
	RequestBody    *Schema           `json:"requestBody,omitempty"`
	ResponseSchema *Schema           `json:"responseSchema,omitempty"`
	Headers        map[string]string `json:"headers"`
	Tags           []string          `json:"tags"`
}

type AuthType string

const (
	AuthOAuth2      AuthType = "OAuth2"
	AuthBasic       AuthType = "Basic"
	AuthAPIKey      AuthType = "API_Key"
	AuthJWT         AuthType = "JWT"
	AuthCertificate AuthType = "Certificate"
	AuthNone        AuthType = "None"
)

// ParseAuthType accepts the canonical names case-insensitively.
func ParseAuthType(s string) (AuthType, bool) {
	for _, t := range []AuthType{AuthOAuth2, AuthBasic, AuthAPIKey, AuthJWT, AuthCertificate, AuthNone} {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// AuthConfig holds the settings of the variant selected by the connection's
// AuthenticationType. Only that variant is expected to be set.
type AuthConfig struct {
	OAuth2      *OAuth2Config      `json:"oauth2,omitempty"`
	Basic       *BasicAuthConfig   `json:"basic,omitempty"`
	APIKey      *APIKeyConfig      `json:"apiKey,omitempty"`
	JWT         *JWTConfig         `json:"jwt,omitempty"`
	Certificate *CertificateConfig `json:"certificate,omitempty"`
}

type OAuth2Config struct {
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	TokenURL     string `json:"tokenUrl,omitempty"`
	Scope        string `json:"scope,omitempty"`
	GrantType    string `json:"grantType,omitempty"`
	// AccessToken is supplied from outside; it is never acquired here.
	AccessToken string `json:"accessToken,omitempty"`
}

type BasicAuthConfig struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

type APIKeyLocation string

const (
	KeyInHeader APIKeyLocation = "header"
	KeyInQuery  APIKeyLocation = "query"
)

type APIKeyConfig struct {
	HeaderName string         `json:"headerName"`
	APIKey     string         `json:"apiKey,omitempty"`
	Location   APIKeyLocation `json:"location"`
}

type JWTConfig struct {
	Issuer   string `json:"issuer,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Audience string `json:"audience,omitempty"`
	// PrivateKey and Token are secrets; Token is supplied from outside.
	PrivateKey string `json:"privateKey,omitempty"`
	Token      string `json:"token,omitempty"`
}

type CertificateConfig struct {
	CertificatePath string `json:"certificatePath,omitempty"`
	KeyPath         string `json:"keyPath,omitempty"`
	Passphrase      string `json:"passphrase,omitempty"`
}

// WithoutSecrets returns a copy with every secret field blanked.
func (a *AuthConfig) WithoutSecrets() *AuthConfig {
	if a == nil {
		return nil
	}
	out := &AuthConfig{}
	if a.OAuth2 != nil {
		c := *a.OAuth2
		c.ClientSecret, c.AccessToken = "", ""
		out.OAuth2 = &c
	}
	if a.Basic != nil {
		c := *a.Basic
		c.Password = ""
		out.Basic = &c
	}
	if a.APIKey != nil {
		c := *a.APIKey
		c.APIKey = ""
		out.APIKey = &c
	}
	if a.JWT != nil {
		c := *a.JWT
		c.PrivateKey, c.Token = "", ""
		out.JWT = &c
	}
	if a.Certificate != nil {
		c := *a.Certificate
		c.Passphrase = ""
		out.Certificate = &c
	}
	return out
}

type RetryConfig struct {
	MaxRetries int   `json:"maxRetries"`
	RetryDelay int   `json:"retryDelay"` // milliseconds
	RetryOn    []int `json:"retryOn"`
}

// ShouldRetry reports whether status is listed in RetryOn.
func (r RetryConfig) ShouldRetry(status int) bool {
	for _, s := range r.RetryOn {
		if s == status {
			return true
		}
	}
	return false
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, RetryDelay: 1000, RetryOn: []int{500, 502, 503, 504}}
}

type ConnectionStatus string

const (
	StatusActive   ConnectionStatus = "active"
	StatusInactive ConnectionStatus = "inactive"
	StatusError    ConnectionStatus = "error"
	StatusTesting  ConnectionStatus = "testing"
)

type ERPType string

const (
	ERPNetSuite    ERPType = "NetSuite"
	ERPSAP         ERPType = "SAP"
	ERPDynamics365 ERPType = "Dynamics365"
	ERPAcumatica   ERPType = "Acumatica"
	ERPQuickBooks  ERPType = "QuickBooks"
	ERPXero        ERPType = "Xero"
	ERPCustom      ERPType = "Custom"
)

const (
	MinTimeout     = 1000
	MaxTimeout     = 120000
	DefaultTimeout = 30000
)

// ClampTimeout bounds a timeout in milliseconds to [MinTimeout, MaxTimeout].
func ClampTimeout(ms int) int {
	if ms < MinTimeout {
		return MinTimeout
	}
	if ms > MaxTimeout {
		return MaxTimeout
	}
	return ms
}

// DefaultHeaders returns a fresh copy of the headers every connection starts with.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}

type Connection struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	BaseURL            string            `json:"baseUrl"`
	AuthenticationType AuthType          `json:"authenticationType"`
	AuthConfig         *AuthConfig       `json:"authConfig,omitempty"`
	Headers            map[string]string `json:"headers"`
	Timeout            int               `json:"timeout"`
	RetryConfig        RetryConfig       `json:"retryConfig"`
	Endpoints          []Endpoint        `json:"endpoints"`
	Status             ConnectionStatus  `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	Tags               []string          `json:"tags"`
	ERPType            ERPType           `json:"erpType,omitempty"`
}

// Touch records a mutation.
func (c *Connection) Touch(now time.Time) {
	c.UpdatedAt = now
}

// Endpoint returns the endpoint with the given id, or nil.
func (c *Connection) Endpoint(id string) *Endpoint {
	for i := range c.Endpoints {
		if c.Endpoints[i].ID == id {
			return &c.Endpoints[i]
		}
	}
	return nil
}

type FileType string

const (
	FileServiceClass         FileType = "service-class"
	FileTest                 FileType = "test"
	FileMock                 FileType = "mock"
	FileCredentialDescriptor FileType = "credential-descriptor"
	FileServiceDescriptor    FileType = "service-descriptor"
)

// GeneratedFile is one emitted artifact. Path is slash separated and relative
// to the project root; it already includes FileName.
type GeneratedFile struct {
	FileName string   `json:"fileName"`
	Content  string   `json:"content"`
	Type     FileType `json:"type"`
	Path     string   `json:"path"`
}
