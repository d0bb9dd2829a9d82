package spec

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func decodeExport(t *testing.T, conn *Connection) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(GenerateOpenAPISpec(conn)), &doc); err != nil {
		t.Fatalf("exported JSON: %v", err)
	}
	return doc
}

func dig(t *testing.T, v any, keys ...string) any {
	t.Helper()
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			t.Fatalf("at %q: not an object (%T)", k, v)
		}
		v, ok = m[k]
		if !ok {
			t.Fatalf("missing key %q", k)
		}
	}
	return v
}

func TestExport_DocumentShape(t *testing.T) {
	t.Parallel()
	conn := mustImport(t, petstoreSpec)
	out := GenerateOpenAPISpec(conn)
	if !strings.HasPrefix(out, "{\n  \"") {
		t.Fatalf("expected pretty-printed JSON, got %.40q", out)
	}

	doc := decodeExport(t, conn)
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("openapi: %v", doc["openapi"])
	}
	if dig(t, doc, "info", "title") != "Pet Store" || dig(t, doc, "info", "version") != "1.0.0" {
		t.Fatalf("info: %v", doc["info"])
	}
	servers := doc["servers"].([]any)
	if len(servers) != 1 || dig(t, servers[0], "url") != "https://api.example.com/v1" || dig(t, servers[0], "description") != "API Server" {
		t.Fatalf("servers: %v", servers)
	}

	list := dig(t, doc, "paths", "/pets", "get")
	if dig(t, list, "operationId") != "listPets" || dig(t, list, "summary") != "listPets" {
		t.Fatalf("operation: %v", list)
	}
	create := dig(t, doc, "paths", "/pets", "post")
	if dig(t, create, "operationId") != "POST_/pets" {
		t.Fatalf("operationId spaces should become underscores: %v", dig(t, create, "operationId"))
	}
	if dig(t, create, "requestBody", "required") != true {
		t.Fatalf("request body should be required")
	}
	schema := dig(t, create, "requestBody", "content", "application/json", "schema")
	if !reflect.DeepEqual(dig(t, schema, "required"), []any{"id", "name"}) {
		t.Fatalf("required array: %v", dig(t, schema, "required"))
	}
	if dig(t, create, "responses", "200", "description") != "Successful response" {
		t.Fatalf("response description")
	}

	if _, ok := doc["security"]; ok {
		t.Fatalf("no top-level security expected")
	}
}

func TestExport_OmitsAbsentFields(t *testing.T) {
	t.Parallel()
	conn := &Connection{
		Name:               "Bare",
		AuthenticationType: AuthNone,
		Endpoints: []Endpoint{{
			Name:   "ping",
			Path:   "/ping",
			Method: GET,
		}},
	}
	out := GenerateOpenAPISpec(conn)
	if strings.Contains(out, "null") {
		t.Fatalf("absent fields must be omitted, not null:\n%s", out)
	}
	doc := decodeExport(t, conn)
	servers := doc["servers"].([]any)
	if len(servers) != 1 || dig(t, servers[0], "url") != "" {
		t.Fatalf("servers: %v", servers)
	}
	for _, key := range []string{"schemas", "securitySchemes"} {
		if m := dig(t, doc, "components", key).(map[string]any); len(m) != 0 {
			t.Fatalf("None must emit an empty %s map: %v", key, m)
		}
	}
	resp := dig(t, doc, "paths", "/ping", "get", "responses", "200").(map[string]any)
	if _, ok := resp["content"]; ok {
		t.Fatalf("no content expected without a response schema")
	}
}

func TestExport_SecuritySchemes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		auth AuthType
		name string
		want map[string]any
	}{
		{AuthBasic, "basicAuth", map[string]any{"type": "http", "scheme": "basic"}},
		{AuthAPIKey, "apiKey", map[string]any{"type": "apiKey", "in": "header", "name": "X-API-Key"}},
		{AuthJWT, "bearerAuth", map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.auth), func(t *testing.T) {
			t.Parallel()
			doc := decodeExport(t, &Connection{Name: "S", AuthenticationType: tc.auth})
			got := dig(t, doc, "components", "securitySchemes", tc.name)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("scheme %s:\n got %v\nwant %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestExport_OAuth2ClientCredentials(t *testing.T) {
	t.Parallel()
	doc := decodeExport(t, &Connection{Name: "S", AuthenticationType: AuthOAuth2})
	if got := dig(t, doc, "components", "securitySchemes", "oauth2", "type"); got != "oauth2" {
		t.Fatalf("type: %v", got)
	}
	if got := dig(t, doc, "components", "securitySchemes", "oauth2", "flows", "clientCredentials", "tokenUrl"); got != "/oauth/token" {
		t.Fatalf("default tokenUrl: %v", got)
	}
}

func TestExport_OAuth2TokenURLFromConfig(t *testing.T) {
	t.Parallel()
	conn := &Connection{
		Name:               "S",
		AuthenticationType: AuthOAuth2,
		AuthConfig:         &AuthConfig{OAuth2: &OAuth2Config{TokenURL: "https://id.example.com/token"}},
	}
	doc := decodeExport(t, conn)
	if got := dig(t, doc, "components", "securitySchemes", "oauth2", "flows", "clientCredentials", "tokenUrl"); got != "https://id.example.com/token" {
		t.Fatalf("tokenUrl: %v", got)
	}
}

func TestExport_SchemaTranslation(t *testing.T) {
	t.Parallel()
	max := 10
	conn := &Connection{
		Name: "Types",
		Endpoints: []Endpoint{{
			Name:   "create",
			Path:   "/things",
			Method: POST,
			Parameters: []Parameter{
				{Name: "since", In: InQuery, Type: TypeDate, Enum: []string{"a"}, DefaultValue: "a"},
			},
			RequestBody: &Schema{
				Type:           TypeObject,
				RequiredFields: []string{"b"},
				Properties: map[string]*Schema{
					"a":    {Type: TypeString, Required: true, MaxLength: &max},
					"b":    {Type: TypeDateTime},
					"loop": {Type: TypeObject, Cyclic: true, Ref: "Thing", Description: "Circular reference to Thing (not expanded)"},
					"tags": {Type: TypeArray, Items: &Schema{Type: TypeString}},
				},
			},
		}},
	}
	doc := decodeExport(t, conn)
	op := dig(t, doc, "paths", "/things", "post")
	param := op.(map[string]any)["parameters"].([]any)[0]
	if !reflect.DeepEqual(dig(t, param, "schema"), map[string]any{"type": "string", "format": "date", "enum": []any{"a"}, "default": "a"}) {
		t.Fatalf("parameter schema: %v", dig(t, param, "schema"))
	}
	body := dig(t, op, "requestBody", "content", "application/json", "schema")
	if !reflect.DeepEqual(dig(t, body, "required"), []any{"a", "b"}) {
		t.Fatalf("required union: %v", dig(t, body, "required"))
	}
	if dig(t, body, "properties", "b", "format") != "date-time" {
		t.Fatalf("datetime format")
	}
	if dig(t, body, "properties", "a", "maxLength") != float64(10) {
		t.Fatalf("maxLength")
	}
	loop := dig(t, body, "properties", "loop").(map[string]any)
	if loop["type"] != "object" || loop["properties"] != nil {
		t.Fatalf("cyclic placeholder: %v", loop)
	}
	if dig(t, body, "properties", "tags", "items", "type") != "string" {
		t.Fatalf("array items")
	}
}

func TestExport_RoundTripKeepsEndpoints(t *testing.T) {
	t.Parallel()
	first := mustImport(t, petstoreSpec)
	second, err := ImportFromSpec([]byte(GenerateOpenAPISpec(first)))
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if len(second.Endpoints) != len(first.Endpoints) {
		t.Fatalf("endpoints: %d vs %d", len(second.Endpoints), len(first.Endpoints))
	}
	seen := map[string]bool{}
	for _, ep := range second.Endpoints {
		seen[string(ep.Method)+" "+ep.Path] = true
	}
	for _, ep := range first.Endpoints {
		if !seen[string(ep.Method)+" "+ep.Path] {
			t.Fatalf("lost %s %s", ep.Method, ep.Path)
		}
	}
	if second.BaseURL != first.BaseURL || second.Name != first.Name {
		t.Fatalf("connection fields changed: %q %q", second.BaseURL, second.Name)
	}
}

func TestExport_Deterministic(t *testing.T) {
	t.Parallel()
	conn := mustImport(t, petstoreSpec)
	if GenerateOpenAPISpec(conn) != GenerateOpenAPISpec(conn) {
		t.Fatalf("export is not deterministic")
	}
}

func TestExportYAML(t *testing.T) {
	t.Parallel()
	out, err := ExportYAML(mustImport(t, petstoreSpec))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(string(out), "openapi: 3.0.3") {
		t.Fatalf("unexpected yaml:\n%s", out)
	}
}
