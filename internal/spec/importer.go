package spec

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/connectforce/connectforce/internal/security"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// defaultConnectionName is used when info.title is blank.
const defaultConnectionName = "Imported API"

// ImportOption configures ImportFromSpec.
type ImportOption func(*importConfig)

type importConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HTTPMethod]struct{}
	pathRes     []*regexp.Regexp
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

func defaultImportConfig() *importConfig {
	return &importConfig{
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

// WithIncludeTags keeps only endpoints that have at least one of the given tags.
func WithIncludeTags(tags []string) ImportOption {
	return func(c *importConfig) {
		c.includeTags = addTags(c.includeTags, tags)
	}
}

// WithExcludeTags removes endpoints that have any of the given tags.
func WithExcludeTags(tags []string) ImportOption {
	return func(c *importConfig) {
		c.excludeTags = addTags(c.excludeTags, tags)
	}
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only endpoints using one of the provided HTTP methods.
func WithMethods(methods []HTTPMethod) ImportOption {
	return func(c *importConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HTTPMethod]struct{}, len(methods))
			}
			c.methods[HTTPMethod(strings.ToUpper(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only endpoints whose path matches at least one of the
// provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) ImportOption {
	return func(c *importConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

func WithLogger(l *zap.Logger) ImportOption {
	return func(c *importConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the source of createdAt/updatedAt.
func WithClock(now func() time.Time) ImportOption {
	return func(c *importConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator sets how the connection ID is produced.
func WithIDGenerator(gen func() string) ImportOption {
	return func(c *importConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// ImportFromSpec parses an OpenAPI 3 or Swagger 2 document (JSON or YAML) into
// a Connection. It either returns a complete Connection or a *SpecError; no
// partial result is produced.
func ImportFromSpec(raw []byte, opts ...ImportOption) (*Connection, error) {
	cfg := defaultImportConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	pd, err := parseDocument(raw)
	if err != nil {
		cfg.logger.Debug("document rejected", zap.Error(err))
		return nil, err
	}
	doc := pd.Doc

	name := defaultConnectionName
	description := ""
	if doc.Info != nil {
		if t := strings.TrimSpace(doc.Info.Title); t != "" {
			name = t
		}
		description = strings.TrimSpace(doc.Info.Description)
	}

	authType, authConfig := inferAuthentication(doc, pd.Order.Schemes)
	baseURL := extractBaseURL(doc, cfg.logger)
	endpoints := buildEndpoints(pd, cfg)

	now := cfg.now().UTC()
	conn := &Connection{
		ID:                 cfg.newID(),
		Name:               name,
		Description:        description,
		BaseURL:            baseURL,
		AuthenticationType: authType,
		AuthConfig:         authConfig,
		Headers:            DefaultHeaders(),
		Timeout:            DefaultTimeout,
		RetryConfig:        DefaultRetryConfig(),
		Endpoints:          endpoints,
		Status:             StatusInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
		Tags:               []string{},
	}

	cfg.logger.Info("imported document",
		zap.String("name", conn.Name),
		zap.Int("version", pd.Version),
		zap.Int("endpoints", len(endpoints)),
		zap.String("baseUrl", baseURL),
		zap.String("auth", string(authType)))
	return conn, nil
}

// extractBaseURL returns servers[0].url when it is an absolute http(s) URL or
// a templated placeholder; anything else degrades to "".
func extractBaseURL(doc *openapi3.T, logger *zap.Logger) string {
	if len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}
	u := strings.TrimSpace(doc.Servers[0].URL)
	if u == "" || strings.HasPrefix(u, "{") {
		return u
	}
	if !security.IsValidURL(u) {
		logger.Warn("invalid base URL in document, using empty", zap.String("url", u))
		return ""
	}
	return u
}

// inferAuthentication walks security schemes in document order and returns the
// first recognised one. Only non-secret settings are prefilled.
func inferAuthentication(doc *openapi3.T, order []string) (AuthType, *AuthConfig) {
	if doc.Components == nil || len(doc.Components.SecuritySchemes) == 0 {
		return AuthNone, nil
	}
	names := make([]string, 0, len(doc.Components.SecuritySchemes))
	for n := range doc.Components.SecuritySchemes {
		names = append(names, n)
	}
	for _, name := range mergeOrder(order, names) {
		ref := doc.Components.SecuritySchemes[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		s := ref.Value
		switch {
		case s.Type == "oauth2":
			return AuthOAuth2, &AuthConfig{OAuth2: oauth2Config(s)}
		case s.Type == "http" && strings.EqualFold(s.Scheme, "basic"):
			return AuthBasic, nil
		case s.Type == "apiKey":
			loc := KeyInHeader
			if s.In == "query" {
				loc = KeyInQuery
			}
			return AuthAPIKey, &AuthConfig{APIKey: &APIKeyConfig{HeaderName: s.Name, Location: loc}}
		case s.Type == "http" && strings.EqualFold(s.Scheme, "bearer"):
			return AuthJWT, nil
		}
	}
	return AuthNone, nil
}

func oauth2Config(s *openapi3.SecurityScheme) *OAuth2Config {
	cfg := &OAuth2Config{}
	if s.Flows == nil {
		return cfg
	}
	var flow *openapi3.OAuthFlow
	switch {
	case s.Flows.ClientCredentials != nil:
		flow, cfg.GrantType = s.Flows.ClientCredentials, "client_credentials"
	case s.Flows.AuthorizationCode != nil:
		flow, cfg.GrantType = s.Flows.AuthorizationCode, "authorization_code"
	case s.Flows.Password != nil:
		flow, cfg.GrantType = s.Flows.Password, "password"
	default:
		return cfg
	}
	cfg.TokenURL = flow.TokenURL
	scopes := make([]string, 0, len(flow.Scopes))
	for sc := range flow.Scopes {
		scopes = append(scopes, sc)
	}
	sort.Strings(scopes)
	cfg.Scope = strings.Join(scopes, " ")
	return cfg
}

func buildEndpoints(pd *parsedDocument, cfg *importConfig) []Endpoint {
	doc := pd.Doc
	conv := newSchemaConverter(doc, cfg.logger)

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	endpoints := []Endpoint{}
	for _, p := range mergeOrder(pd.Order.Paths, paths) {
		item := doc.Paths[p]
		if item == nil || !cfg.allowPath(p) {
			continue
		}
		present := make([]string, 0, 5)
		for _, m := range Methods {
			if item.GetOperation(string(m)) != nil {
				present = append(present, strings.ToLower(string(m)))
			}
		}
		for _, lower := range mergeOrder(pd.Order.Methods[p], present) {
			method := HTTPMethod(strings.ToUpper(lower))
			op := item.GetOperation(string(method))
			if op == nil || !cfg.allowMethod(method) {
				continue
			}
			tags := cleanTags(op.Tags)
			if !cfg.allowTags(tags) {
				continue
			}
			endpoints = append(endpoints, buildEndpoint(doc, conv, p, method, item, op, tags))
		}
	}
	return endpoints
}

func buildEndpoint(doc *openapi3.T, conv *schemaConverter, path string, method HTTPMethod, item *openapi3.PathItem, op *openapi3.Operation, tags []string) Endpoint {
	name := strings.TrimSpace(op.OperationID)
	if name == "" {
		name = string(method) + " " + path
	}
	description := strings.TrimSpace(op.Summary)
	if description == "" {
		description = strings.TrimSpace(op.Description)
	}

	ep := Endpoint{
		ID:          EndpointID(method, path),
		Name:        name,
		Description: description,
		Path:        path,
		Method:      method,
		Parameters:  mergeParameters(doc, item.Parameters, op.Parameters),
		Headers:     map[string]string{},
		Tags:        tags,
	}

	if rb := resolveRequestBody(doc, op.RequestBody); rb != nil {
		if s := jsonSchemaOf(rb.Content); s != nil {
			ep.RequestBody = conv.Convert(s)
		}
	}
	for _, code := range []string{"200", "201", "default"} {
		resp := resolveResponse(doc, op.Responses[code])
		if resp == nil {
			continue
		}
		if s := jsonSchemaOf(resp.Content); s != nil {
			ep.ResponseSchema = conv.Convert(s)
			break
		}
	}
	return ep
}

// EndpointID derives a stable identifier from method and path so repeated
// imports of the same document yield the same endpoint IDs.
func EndpointID(method HTTPMethod, path string) string {
	return uuid.NewV5(uuid.NamespaceURL, "connectforce:"+string(method)+" "+path).String()
}

// mergeParameters combines path-level and operation-level parameters. An
// operation parameter replaces a path parameter with the same location and
// name in place; declaration order is otherwise kept.
func mergeParameters(doc *openapi3.T, pathLevel, opLevel openapi3.Parameters) []Parameter {
	out := []Parameter{}
	index := map[string]int{}
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			p, ok := toParameter(doc, resolveParameter(doc, ref))
			if !ok {
				continue
			}
			key := string(p.In) + ":" + p.Name
			if i, seen := index[key]; seen {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	add(pathLevel)
	add(opLevel)
	return out
}

func toParameter(doc *openapi3.T, p *openapi3.Parameter) (Parameter, bool) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return Parameter{}, false
	}
	var in ParamLocation
	switch p.In {
	case "path":
		in = InPath
	case "query":
		in = InQuery
	case "header":
		in = InHeader
	default:
		return Parameter{}, false
	}

	out := Parameter{
		Name:        strings.TrimSpace(p.Name),
		In:          in,
		Required:    p.Required || in == InPath,
		Type:        TypeString,
		Description: strings.TrimSpace(p.Description),
	}
	if s := schemaValue(doc, p.Schema); s != nil {
		out.Type = ParseDataType(s.Type, TypeString)
		if out.Type == TypeString {
			switch s.Format {
			case "date":
				out.Type = TypeDate
			case "date-time":
				out.Type = TypeDateTime
			}
		}
		if s.Default != nil {
			out.DefaultValue = literalString(s.Default)
		}
		out.Enum = enumStrings(s.Enum)
	}
	return out, true
}

// schemaValue follows component schema references until a concrete schema is
// found, giving up after maxRefDepth hops.
func schemaValue(doc *openapi3.T, ref *openapi3.SchemaRef) *openapi3.Schema {
	for i := 0; ref != nil && i < maxRefDepth; i++ {
		if ref.Ref == "" {
			return ref.Value
		}
		name, ok := componentName(ref.Ref, schemaRefPrefix)
		if !ok || doc.Components == nil {
			return nil
		}
		ref = doc.Components.Schemas[name]
	}
	return nil
}

func cleanTags(in []string) []string {
	tags := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c *importConfig) allowMethod(m HTTPMethod) bool {
	if len(c.methods) == 0 {
		return true
	}
	_, ok := c.methods[m]
	return ok
}

func (c *importConfig) allowPath(p string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func (c *importConfig) allowTags(tags []string) bool {
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}
