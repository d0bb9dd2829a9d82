package goemitter

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/connectforce/connectforce/internal/spec"
)

func minimalConnection() *spec.Connection {
	pet := &spec.Schema{
		Type:           spec.TypeObject,
		RequiredFields: []string{"id"},
		Properties: map[string]*spec.Schema{
			"id":        {Type: spec.TypeInteger, Format: "int64", Required: true},
			"name":      {Type: spec.TypeString},
			"createdAt": {Type: spec.TypeString, Format: "date-time"},
		},
	}
	return &spec.Connection{
		Name:    "Pet Store",
		BaseURL: "https://petstore.example.com/v1",
		Headers: spec.DefaultHeaders(),
		Timeout: 15000,
		Endpoints: []spec.Endpoint{
			{
				Name: "listPets", Path: "/pets", Method: spec.GET,
				Parameters:     []spec.Parameter{{Name: "limit", In: spec.InQuery, Type: spec.TypeInteger}},
				ResponseSchema: &spec.Schema{Type: spec.TypeArray, Items: pet},
			},
			{
				Name: "getPet", Path: "/pets/{petId}", Method: spec.GET,
				Parameters: []spec.Parameter{
					{Name: "X-Trace", In: spec.InHeader, Type: spec.TypeString},
					{Name: "petId", In: spec.InPath, Required: true, Type: spec.TypeString},
				},
				ResponseSchema: pet,
			},
			{Name: "ping", Path: "/ping", Method: spec.POST},
		},
	}
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	res, err := Emit(ctx, minimalConnection(), Options{
		OutDir:     dir,
		ModuleName: "example.com/petstore",
		DryRun:     true,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if res.PackageName != "petstore" || res.ModuleName != "example.com/petstore" {
		t.Fatalf("names mismatch: %+v", res)
	}
	want := []string{"README.md", "client.go", "endpoints.go", "go.mod", "types.go"}
	if len(res.Planned) != len(want) {
		t.Fatalf("planned %d files, want %d", len(res.Planned), len(want))
	}
	for i, p := range want {
		if res.Planned[i].RelPath != p {
			t.Fatalf("planned[%d] = %s, want %s", i, res.Planned[i].RelPath, p)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := Emit(context.Background(), minimalConnection(), Options{
		OutDir:      dir,
		PackageName: "pets",
		ModuleName:  "example.com/pets",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	gomod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		t.Fatalf("read go.mod: %v", err)
	}
	if !strings.Contains(string(gomod), "module example.com/pets") {
		t.Fatalf("go.mod missing module name: %s", gomod)
	}

	fset := token.NewFileSet()
	for _, name := range []string{"client.go", "types.go", "endpoints.go"} {
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
		if err != nil {
			t.Fatalf("%s does not parse: %v", name, err)
		}
		if f.Name.Name != "pets" {
			t.Fatalf("%s package = %s", name, f.Name.Name)
		}
		if !strings.Contains(string(src), generatedHeader) {
			t.Fatalf("%s missing generated header", name)
		}
	}

	endpoints, _ := os.ReadFile(filepath.Join(dir, "endpoints.go"))
	for _, sig := range []string{
		"func (c *Client) ListPets(ctx context.Context, limit *int64) ([]ListPetsItem, error)",
		"func (c *Client) GetPet(ctx context.Context, petId string, xTrace *string) (*ListPetsItem, error)",
		"func (c *Client) Ping(ctx context.Context) ([]byte, error)",
	} {
		if !strings.Contains(string(endpoints), sig) {
			t.Fatalf("endpoints.go missing %q:\n%s", sig, endpoints)
		}
	}

	types, _ := os.ReadFile(filepath.Join(dir, "types.go"))
	if n := strings.Count(string(types), "type ListPetsItem struct"); n != 1 {
		t.Fatalf("shared shape declared %d times:\n%s", n, types)
	}
	if !strings.Contains(string(types), "time.Time") || !strings.Contains(string(types), `json:"name,omitempty"`) {
		t.Fatalf("unexpected field rendering:\n%s", types)
	}

	client, _ := os.ReadFile(filepath.Join(dir, "client.go"))
	if !strings.Contains(string(client), "15000 * time.Millisecond") {
		t.Fatalf("timeout not carried into the client:\n%s", client)
	}

	readme, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	if !strings.Contains(string(readme), "| `GetPet` | GET | `/pets/{petId}` |") {
		t.Fatalf("readme table missing endpoint:\n%s", readme)
	}
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := Render(minimalConnection(), "pets")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := Render(minimalConnection(), "pets")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for name, src := range a {
		if !bytes.Equal(src, b[name]) {
			t.Fatalf("%s differs between runs", name)
		}
	}
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}
	if _, err := Emit(ctx, minimalConnection(), Options{OutDir: dir}); err == nil {
		t.Fatalf("expected error on non-empty dir without force")
	}
	if _, err := Emit(ctx, minimalConnection(), Options{OutDir: dir, Force: true}); err != nil {
		t.Fatalf("forced emit: %v", err)
	}
	if _, err := Emit(ctx, nil, Options{OutDir: dir}); err == nil {
		t.Fatalf("nil connection accepted")
	}
}

func TestSanitizePackageName(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Pet Store": "petstore",
		"9lives":    "lives",
		"ERP-v2":    "erpv2",
		"!!":        "",
	}
	for in, want := range cases {
		if got := sanitizePackageName(in); got != want {
			t.Fatalf("sanitizePackageName(%q) = %q, want %q", in, got, want)
		}
	}
}
