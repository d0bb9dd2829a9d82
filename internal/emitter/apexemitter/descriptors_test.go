package apexemitter

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/connectforce/connectforce/internal/spec"
)

func TestCredentialProtocol(t *testing.T) {
	t.Parallel()
	cases := []struct {
		auth spec.AuthType
		cfg  *spec.AuthConfig
		want string
	}{
		{spec.AuthNone, nil, ProtocolNoAuthentication},
		{spec.AuthAPIKey, nil, ProtocolNoAuthentication},
		{spec.AuthBasic, nil, ProtocolPassword},
		{spec.AuthOAuth2, nil, ProtocolOAuth},
		{spec.AuthJWT, &spec.AuthConfig{JWT: &spec.JWTConfig{Audience: "acme"}}, ProtocolJWT},
		{spec.AuthJWT, &spec.AuthConfig{JWT: &spec.JWTConfig{Audience: "https://login.acme.com/token"}}, ProtocolJWTExchange},
		{spec.AuthCertificate, nil, ProtocolCertificate},
	}
	for _, c := range cases {
		conn := &spec.Connection{AuthenticationType: c.auth, AuthConfig: c.cfg}
		if got := CredentialProtocol(conn); got != c.want {
			t.Fatalf("%s: got %s, want %s", c.auth, got, c.want)
		}
	}
}

func TestGenerateNamedCredential(t *testing.T) {
	t.Parallel()
	f, err := GenerateNamedCredential(petStore())
	if err != nil {
		t.Fatalf("named credential: %v", err)
	}
	if f.Type != spec.FileCredentialDescriptor {
		t.Fatalf("type = %s", f.Type)
	}
	if f.Path != DefaultNamedCredentialPath+"/PetStore.namedCredential-meta.xml" {
		t.Fatalf("path = %s", f.Path)
	}
	var doc namedCredentialXML
	if err := xml.Unmarshal([]byte(f.Content), &doc); err != nil {
		t.Fatalf("invalid xml: %v\n%s", err, f.Content)
	}
	if doc.Protocol != ProtocolPassword || doc.Endpoint != "https://petstore.example.com/v1" || doc.Username != "svc" {
		t.Fatalf("unexpected descriptor: %+v", doc)
	}
	if !doc.GenerateAuthorizationHeader {
		t.Fatalf("basic auth should generate the authorization header")
	}
	if strings.Contains(f.Content, "hunter2") {
		t.Fatalf("password written to descriptor")
	}
	if !strings.HasPrefix(f.Content, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("missing xml header")
	}
}

func TestGenerateNamedCredential_JWTExchange(t *testing.T) {
	t.Parallel()
	conn := petStore()
	conn.AuthenticationType = spec.AuthJWT
	conn.AuthConfig = &spec.AuthConfig{JWT: &spec.JWTConfig{
		Issuer: "connectforce", Subject: "svc", Audience: "https://login.acme.com/token", PrivateKey: "-----BEGIN KEY-----",
	}}
	f, err := NamedCredentialAt(conn, "custom/creds/")
	if err != nil {
		t.Fatalf("named credential: %v", err)
	}
	if f.Path != "custom/creds/PetStore.namedCredential-meta.xml" {
		t.Fatalf("path = %s", f.Path)
	}
	var doc namedCredentialXML
	if err := xml.Unmarshal([]byte(f.Content), &doc); err != nil {
		t.Fatalf("invalid xml: %v", err)
	}
	if doc.Protocol != ProtocolJWTExchange || doc.AuthTokenEndpointURL != "https://login.acme.com/token" || doc.JWTIssuer != "connectforce" {
		t.Fatalf("unexpected descriptor: %+v", doc)
	}
	if strings.Contains(f.Content, "BEGIN KEY") {
		t.Fatalf("private key written to descriptor")
	}
}

func TestGenerateExternalService(t *testing.T) {
	t.Parallel()
	files, err := GenerateExternalService(petStore())
	if err != nil {
		t.Fatalf("external service: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("want registration and manifest, got %d files", len(files))
	}
	reg, manifest := files[0], files[1]
	if reg.Path != DefaultExternalServicePath+"/PetStore.externalServiceRegistration-meta.xml" || reg.Type != spec.FileServiceDescriptor {
		t.Fatalf("registration: %s %s", reg.Path, reg.Type)
	}
	var doc externalServiceXML
	if err := xml.Unmarshal([]byte(reg.Content), &doc); err != nil {
		t.Fatalf("invalid xml: %v", err)
	}
	if doc.NamedCredential != "PetStore" || doc.SchemaType != "OpenApi3" {
		t.Fatalf("unexpected registration: %+v", doc)
	}
	var openapi map[string]any
	if err := json.Unmarshal([]byte(doc.Schema), &openapi); err != nil {
		t.Fatalf("embedded schema is not JSON: %v", err)
	}
	if openapi["openapi"] != spec.ExportedOpenAPIVersion {
		t.Fatalf("embedded openapi version = %v", openapi["openapi"])
	}
	if doc.Schema != spec.GenerateOpenAPISpec(petStore()) {
		t.Fatalf("embedded schema differs from the exporter output")
	}

	if manifest.Path != DefaultManifestPath+"/package-PetStore.xml" {
		t.Fatalf("manifest path = %s", manifest.Path)
	}
	var pkg packageXML
	if err := xml.Unmarshal([]byte(manifest.Content), &pkg); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}
	if pkg.Version != APIVersion || len(pkg.Types) != 2 || pkg.Types[0].Members[0] != "PetStore" {
		t.Fatalf("unexpected manifest: %+v", pkg)
	}
}

func TestDescriptors_NilAndInvalid(t *testing.T) {
	t.Parallel()
	if _, err := GenerateNamedCredential(nil); err == nil {
		t.Fatalf("nil connection accepted")
	}
	if _, err := GenerateExternalService(&spec.Connection{Name: "!!"}); err == nil {
		t.Fatalf("name without identifier characters accepted")
	}
}
