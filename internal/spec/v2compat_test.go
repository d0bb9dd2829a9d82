package spec

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeYAMLMap(t *testing.T, src string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc
}

func operationParams(t *testing.T, doc map[string]any, path, method string) []any {
	t.Helper()
	op := doc["paths"].(map[string]any)[path].(map[string]any)[method].(map[string]any)
	params, _ := op["parameters"].([]any)
	return params
}

func TestV2Compat_MultipleBodyMerged(t *testing.T) {
	t.Parallel()
	doc := decodeYAMLMap(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: body
        name: a
        required: true
        schema: { type: string }
      - in: body
        name: b
        schema: { type: integer }
      - in: query
        name: q
        type: string
      responses: { '200': { description: ok } }
`)
	if !preprocessV2ForCompatibility(doc) {
		t.Fatalf("expected changes")
	}
	params := operationParams(t, doc, "/x", "post")
	if len(params) != 2 {
		t.Fatalf("expected merged body plus query, got %d params", len(params))
	}
	body := params[0].(map[string]any)
	if body["in"] != "body" || body["name"] != "body" {
		t.Fatalf("expected single merged body first, got %v", body)
	}
	schema := body["schema"].(map[string]any)
	props := schema["properties"].(map[string]any)
	if _, ok := props["a"]; !ok {
		t.Fatalf("property a missing: %v", props)
	}
	if _, ok := props["b"]; !ok {
		t.Fatalf("property b missing: %v", props)
	}
	req := schema["required"].([]any)
	if len(req) != 1 || req[0] != "a" {
		t.Fatalf("required: got %v", req)
	}
}

func TestV2Compat_BodyAndFormData_ToFormData(t *testing.T) {
	t.Parallel()
	doc := decodeYAMLMap(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /upload:
    post:
      parameters:
      - in: body
        name: desc
        schema: { type: string }
      - in: formData
        name: file
        type: file
        required: true
      responses: { '200': { description: ok } }
`)
	if !preprocessV2ForCompatibility(doc) {
		t.Fatalf("expected changes")
	}
	for _, p := range operationParams(t, doc, "/upload", "post") {
		if p.(map[string]any)["in"] == "body" {
			t.Fatalf("expected no body params after conversion to formData")
		}
	}
	op := doc["paths"].(map[string]any)["/upload"].(map[string]any)["post"].(map[string]any)
	if !containsString(op["consumes"].([]any), "multipart/form-data") {
		t.Fatalf("expected consumes multipart/form-data, got %v", op["consumes"])
	}
}

func TestV2Compat_DefaultsMediaTypes(t *testing.T) {
	t.Parallel()
	doc := decodeYAMLMap(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths: {}
`)
	if !preprocessV2ForCompatibility(doc) {
		t.Fatalf("expected consumes/produces to be added")
	}
	if !containsString(doc["produces"].([]any), "application/json") {
		t.Fatalf("produces: got %v", doc["produces"])
	}
	if preprocessV2ForCompatibility(doc) {
		t.Fatalf("second pass should be a no-op")
	}
}

func TestImport_V2BodyBecomesRequestBody(t *testing.T) {
	t.Parallel()
	conn, err := ImportFromSpec([]byte(`swagger: "2.0"
info: { title: Legacy, version: "1.0.0" }
host: api.example.com
basePath: /v1
schemes: [https]
securityDefinitions:
  basic: { type: basic }
paths:
  /items:
    post:
      operationId: createItem
      parameters:
      - in: body
        name: item
        required: true
        schema:
          $ref: '#/definitions/Item'
      responses:
        '200':
          description: ok
          schema:
            $ref: '#/definitions/Item'
definitions:
  Item:
    type: object
    required: [name]
    properties:
      name: { type: string }
      qty: { type: integer }
`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if conn.AuthenticationType != AuthBasic {
		t.Fatalf("auth: got %s", conn.AuthenticationType)
	}
	if conn.BaseURL != "https://api.example.com/v1" {
		t.Fatalf("baseUrl: got %q", conn.BaseURL)
	}
	if len(conn.Endpoints) != 1 {
		t.Fatalf("endpoints: got %d", len(conn.Endpoints))
	}
	ep := conn.Endpoints[0]
	if ep.RequestBody == nil || !ep.RequestBody.IsRequired("name") {
		t.Fatalf("expected request body with required name, got %+v", ep.RequestBody)
	}
	if ep.ResponseSchema == nil || ep.ResponseSchema.Properties["qty"].Type != TypeInteger {
		t.Fatalf("expected response schema with integer qty, got %+v", ep.ResponseSchema)
	}
}
