package spec

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	sigsyaml "sigs.k8s.io/yaml"
)

const (
	ExportedOpenAPIVersion = "3.0.3"
	exportedInfoVersion    = "1.0.0"
	defaultTokenURL        = "/oauth/token"
)

// GenerateOpenAPISpec renders conn as a pretty-printed OpenAPI 3.0.3 JSON
// document. Endpoints are grouped by path with one operation per method;
// absent optional fields are omitted.
func GenerateOpenAPISpec(conn *Connection) string {
	data, err := MarshalOpenAPISpec(conn)
	if err != nil {
		// Only user supplied examples can fail to encode; drop them.
		data, _ = encodeDocument(BuildOpenAPIDocument(conn, false))
	}
	return string(data)
}

// MarshalOpenAPISpec is GenerateOpenAPISpec with the encoding error exposed.
func MarshalOpenAPISpec(conn *Connection) ([]byte, error) {
	return encodeDocument(BuildOpenAPIDocument(conn, true))
}

// encodeDocument pretty-prints doc. kin-openapi drops empty component maps,
// but components.schemas and components.securitySchemes are always present
// in an exported document.
func encodeDocument(doc *openapi3.T) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	components := map[string]json.RawMessage{}
	if c, ok := top["components"]; ok {
		if err := json.Unmarshal(c, &components); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{"schemas", "securitySchemes"} {
		if _, ok := components[key]; !ok {
			components[key] = json.RawMessage("{}")
		}
	}
	if top["components"], err = json.Marshal(components); err != nil {
		return nil, err
	}
	return json.MarshalIndent(top, "", "  ")
}

// ExportYAML renders the same document as GenerateOpenAPISpec in YAML.
func ExportYAML(conn *Connection) ([]byte, error) {
	return sigsyaml.JSONToYAML([]byte(GenerateOpenAPISpec(conn)))
}

// BuildOpenAPIDocument converts conn into a kin-openapi document.
func BuildOpenAPIDocument(conn *Connection, withExamples bool) *openapi3.T {
	if conn == nil {
		conn = &Connection{}
	}
	doc := &openapi3.T{
		OpenAPI: ExportedOpenAPIVersion,
		Info: &openapi3.Info{
			Title:       conn.Name,
			Description: conn.Description,
			Version:     exportedInfoVersion,
		},
		Paths: openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas:         openapi3.Schemas{},
			SecuritySchemes: securitySchemesFor(conn),
		},
	}
	doc.Servers = openapi3.Servers{{URL: conn.BaseURL, Description: "API Server"}}

	x := exporter{examples: withExamples}
	for i := range conn.Endpoints {
		ep := &conn.Endpoints[i]
		item := doc.Paths[ep.Path]
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths[ep.Path] = item
		}
		item.SetOperation(string(ep.Method), x.operation(ep))
	}
	return doc
}

type exporter struct {
	examples bool
}

func (x exporter) operation(ep *Endpoint) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: strings.Join(strings.Fields(ep.Name), "_"),
		Summary:     ep.Name,
		Description: ep.Description,
	}
	if len(ep.Tags) > 0 {
		op.Tags = append([]string(nil), ep.Tags...)
	}
	for _, p := range ep.Parameters {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: x.parameter(p)})
	}
	if ep.RequestBody != nil {
		op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Required: true,
			Content:  jsonContent(x.schema(ep.RequestBody)),
		}}
	}

	desc := "Successful response"
	resp := &openapi3.Response{Description: &desc}
	if ep.ResponseSchema != nil {
		resp.Content = jsonContent(x.schema(ep.ResponseSchema))
	}
	op.Responses = openapi3.Responses{"200": &openapi3.ResponseRef{Value: resp}}
	return op
}

func (x exporter) parameter(p Parameter) *openapi3.Parameter {
	t, format := wireType(p.Type)
	s := &openapi3.Schema{Type: t, Format: format, Enum: anySlice(p.Enum)}
	if p.DefaultValue != "" {
		s.Default = p.DefaultValue
	}
	return &openapi3.Parameter{
		Name:        p.Name,
		In:          string(p.In),
		Required:    p.Required,
		Description: p.Description,
		Schema:      &openapi3.SchemaRef{Value: s},
	}
}

// schema converts a Schema tree bottom-up; per-property required flags are
// folded into the parent's required array.
func (x exporter) schema(s *Schema) *openapi3.SchemaRef {
	if s == nil {
		return nil
	}
	out := &openapi3.Schema{
		Description: s.Description,
		Nullable:    s.Nullable,
		Pattern:     s.Pattern,
		Enum:        anySlice(s.Enum),
	}
	if s.Cyclic {
		out.Type = string(TypeObject)
		return &openapi3.SchemaRef{Value: out}
	}

	out.Type, out.Format = wireType(s.Type)
	if s.Format != "" && out.Format == "" {
		out.Format = s.Format
	}
	if s.MinLength != nil && *s.MinLength > 0 {
		out.MinLength = uint64(*s.MinLength)
	}
	if s.MaxLength != nil && *s.MaxLength >= 0 {
		n := uint64(*s.MaxLength)
		out.MaxLength = &n
	}
	if x.examples && s.Example != nil {
		out.Example = s.Example
	}

	if len(s.Properties) > 0 {
		out.Properties = make(openapi3.Schemas, len(s.Properties))
		required := map[string]struct{}{}
		for _, r := range s.RequiredFields {
			if _, ok := s.Properties[r]; ok {
				required[r] = struct{}{}
			}
		}
		for _, name := range s.PropertyNames() {
			prop := s.Properties[name]
			out.Properties[name] = x.schema(prop)
			if prop != nil && prop.Required {
				required[name] = struct{}{}
			}
		}
		if len(required) > 0 {
			out.Required = make([]string, 0, len(required))
			for r := range required {
				out.Required = append(out.Required, r)
			}
			sort.Strings(out.Required)
		}
	}
	if s.Items != nil {
		out.Items = x.schema(s.Items)
	}
	return &openapi3.SchemaRef{Value: out}
}

// wireType maps a DataType onto an OpenAPI type keyword and format.
func wireType(t DataType) (string, string) {
	switch t {
	case TypeDate:
		return "string", "date"
	case TypeDateTime:
		return "string", "date-time"
	case "":
		return string(TypeString), ""
	default:
		return string(t), ""
	}
}

func securitySchemesFor(conn *Connection) openapi3.SecuritySchemes {
	schemes := openapi3.SecuritySchemes{}
	switch conn.AuthenticationType {
	case AuthOAuth2:
		tokenURL := defaultTokenURL
		if conn.AuthConfig != nil && conn.AuthConfig.OAuth2 != nil && conn.AuthConfig.OAuth2.TokenURL != "" {
			tokenURL = conn.AuthConfig.OAuth2.TokenURL
		}
		schemes["oauth2"] = &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{
			Type: "oauth2",
			Flows: &openapi3.OAuthFlows{
				ClientCredentials: &openapi3.OAuthFlow{TokenURL: tokenURL, Scopes: map[string]string{}},
			},
		}}
	case AuthBasic:
		schemes["basicAuth"] = &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "http", Scheme: "basic"}}
	case AuthAPIKey:
		schemes["apiKey"] = &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "apiKey", In: "header", Name: "X-API-Key"}}
	case AuthJWT:
		schemes["bearerAuth"] = &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}}
	}
	return schemes
}

func jsonContent(ref *openapi3.SchemaRef) openapi3.Content {
	return openapi3.Content{"application/json": &openapi3.MediaType{Schema: ref}}
}

func anySlice(in []string) []any {
	if len(in) == 0 {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
