package apexemitter

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

// Credential protocols a named credential can declare.
const (
	ProtocolNoAuthentication = "NoAuthentication"
	ProtocolPassword         = "Password"
	ProtocolOAuth            = "Oauth"
	ProtocolJWT              = "Jwt"
	ProtocolJWTExchange      = "JwtExchange"
	ProtocolCertificate      = "Certificate"
)

// CredentialProtocol maps a connection's authentication type to the named
// credential protocol. JWT connections whose audience is an https URL use
// the token exchange flow against that URL.
func CredentialProtocol(conn *spec.Connection) string {
	switch conn.AuthenticationType {
	case spec.AuthBasic:
		return ProtocolPassword
	case spec.AuthOAuth2:
		return ProtocolOAuth
	case spec.AuthJWT:
		if conn.AuthConfig != nil && conn.AuthConfig.JWT != nil && isHTTPS(conn.AuthConfig.JWT.Audience) {
			return ProtocolJWTExchange
		}
		return ProtocolJWT
	case spec.AuthCertificate:
		return ProtocolCertificate
	}
	return ProtocolNoAuthentication
}

func isHTTPS(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && u.Scheme == "https" && u.Host != ""
}

type namedCredentialXML struct {
	XMLName                     xml.Name `xml:"NamedCredential"`
	Xmlns                       string   `xml:"xmlns,attr"`
	AllowMergeFieldsInBody      bool     `xml:"allowMergeFieldsInBody"`
	AllowMergeFieldsInHeader    bool     `xml:"allowMergeFieldsInHeader"`
	AuthTokenEndpointURL        string   `xml:"authTokenEndpointUrl,omitempty"`
	Certificate                 string   `xml:"certificate,omitempty"`
	Endpoint                    string   `xml:"endpoint"`
	GenerateAuthorizationHeader bool     `xml:"generateAuthorizationHeader"`
	JWTIssuer                   string   `xml:"jwtIssuer,omitempty"`
	JWTTextSubject              string   `xml:"jwtTextSubject,omitempty"`
	JWTValidityPeriodSeconds    int      `xml:"jwtValidityPeriodSeconds,omitempty"`
	Label                       string   `xml:"label"`
	OAuthScope                  string   `xml:"oauthScope,omitempty"`
	PrincipalType               string   `xml:"principalType"`
	Protocol                    string   `xml:"protocol"`
	Username                    string   `xml:"username,omitempty"`
}

type externalServiceXML struct {
	XMLName         xml.Name `xml:"ExternalServiceRegistration"`
	Xmlns           string   `xml:"xmlns,attr"`
	Description     string   `xml:"description,omitempty"`
	Label           string   `xml:"label"`
	NamedCredential string   `xml:"namedCredential"`
	Schema          string   `xml:"schema"`
	SchemaType      string   `xml:"schemaType"`
	Status          string   `xml:"status"`
}

type packageXML struct {
	XMLName xml.Name      `xml:"Package"`
	Xmlns   string        `xml:"xmlns,attr"`
	Types   []packageType `xml:"types"`
	Version string        `xml:"version"`
}

type packageType struct {
	Members []string `xml:"members"`
	Name    string   `xml:"name"`
}

type apexClassMetaXML struct {
	XMLName    xml.Name `xml:"ApexClass"`
	Xmlns      string   `xml:"xmlns,attr"`
	APIVersion string   `xml:"apiVersion"`
	Status     string   `xml:"status"`
}

func renderXML(v any) (string, error) {
	out, err := xml.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out) + "\n", nil
}

// GenerateNamedCredential renders the named credential descriptor under the
// default namedCredentials directory.
func GenerateNamedCredential(conn *spec.Connection) (spec.GeneratedFile, error) {
	return NamedCredentialAt(conn, DefaultNamedCredentialPath)
}

// NamedCredentialAt renders the named credential descriptor under dir. No
// secret from the connection's auth config is written.
func NamedCredentialAt(conn *spec.Connection, dir string) (spec.GeneratedFile, error) {
	if conn == nil {
		return spec.GeneratedFile{}, errNilConnection
	}
	base, err := naming.ApexClassName(conn.Name)
	if err != nil {
		return spec.GeneratedFile{}, err
	}
	doc := namedCredentialXML{
		Xmlns:                       metadataNamespace,
		AllowMergeFieldsInHeader:    conn.AuthenticationType == spec.AuthAPIKey,
		Endpoint:                    conn.BaseURL,
		GenerateAuthorizationHeader: conn.AuthenticationType != spec.AuthNone && conn.AuthenticationType != spec.AuthAPIKey,
		Label:                       conn.Name,
		PrincipalType:               "NamedUser",
		Protocol:                    CredentialProtocol(conn),
	}
	if ac := conn.AuthConfig; ac != nil {
		switch doc.Protocol {
		case ProtocolPassword:
			if ac.Basic != nil {
				doc.Username = ac.Basic.Username
			}
		case ProtocolOAuth:
			if ac.OAuth2 != nil {
				doc.OAuthScope = ac.OAuth2.Scope
			}
		case ProtocolJWT, ProtocolJWTExchange:
			if ac.JWT != nil {
				doc.JWTIssuer = ac.JWT.Issuer
				doc.JWTTextSubject = ac.JWT.Subject
				doc.JWTValidityPeriodSeconds = 300
				if doc.Protocol == ProtocolJWTExchange {
					doc.AuthTokenEndpointURL = ac.JWT.Audience
				}
			}
		}
	}
	if doc.Protocol == ProtocolCertificate {
		doc.Certificate = base
	}
	content, err := renderXML(doc)
	if err != nil {
		return spec.GeneratedFile{}, fmt.Errorf("render named credential: %w", err)
	}
	name := base + namedCredentialFileExt
	return spec.GeneratedFile{
		FileName: name,
		Content:  content,
		Type:     spec.FileCredentialDescriptor,
		Path:     path.Join(cleanDir(dir, DefaultNamedCredentialPath), name),
	}, nil
}

// GenerateExternalService renders the external service registration, which
// embeds the exported OpenAPI document, and its package manifest.
func GenerateExternalService(conn *spec.Connection) ([]spec.GeneratedFile, error) {
	return ExternalServiceAt(conn, DefaultExternalServicePath, DefaultManifestPath)
}

// ExternalServiceAt is GenerateExternalService with explicit directories.
func ExternalServiceAt(conn *spec.Connection, dir, manifestDir string) ([]spec.GeneratedFile, error) {
	if conn == nil {
		return nil, errNilConnection
	}
	base, err := naming.ApexClassName(conn.Name)
	if err != nil {
		return nil, err
	}
	reg := externalServiceXML{
		Xmlns:           metadataNamespace,
		Description:     strings.TrimSpace(conn.Description),
		Label:           conn.Name,
		NamedCredential: base,
		Schema:          spec.GenerateOpenAPISpec(conn),
		SchemaType:      "OpenApi3",
		Status:          "Complete",
	}
	content, err := renderXML(reg)
	if err != nil {
		return nil, fmt.Errorf("render external service: %w", err)
	}
	name := base + externalServiceFileExt
	regFile := spec.GeneratedFile{
		FileName: name,
		Content:  content,
		Type:     spec.FileServiceDescriptor,
		Path:     path.Join(cleanDir(dir, DefaultExternalServicePath), name),
	}

	manifest, err := renderXML(packageXML{
		Xmlns: metadataNamespace,
		Types: []packageType{
			{Members: []string{base}, Name: "ExternalServiceRegistration"},
			{Members: []string{base}, Name: "NamedCredential"},
		},
		Version: APIVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("render package manifest: %w", err)
	}
	manifestName := "package-" + base + ".xml"
	manifestFile := spec.GeneratedFile{
		FileName: manifestName,
		Content:  manifest,
		Type:     spec.FileServiceDescriptor,
		Path:     path.Join(cleanDir(manifestDir, DefaultManifestPath), manifestName),
	}
	return []spec.GeneratedFile{regFile, manifestFile}, nil
}

// classMeta renders the .cls-meta.xml companion of a class file. The
// companion carries the same file type as its class.
func classMeta(class spec.GeneratedFile) (spec.GeneratedFile, error) {
	content, err := renderXML(apexClassMetaXML{Xmlns: metadataNamespace, APIVersion: APIVersion, Status: "Active"})
	if err != nil {
		return spec.GeneratedFile{}, err
	}
	name := strings.TrimSuffix(class.FileName, classFileExt) + metaFileExt
	return spec.GeneratedFile{
		FileName: name,
		Content:  content,
		Type:     class.Type,
		Path:     path.Join(path.Dir(class.Path), name),
	}, nil
}
