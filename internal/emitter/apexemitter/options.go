package apexemitter

import (
	"fmt"
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
)

// Default project-relative output directories, following the sfdx source layout.
const (
	DefaultClassesPath         = "force-app/main/default/classes"
	DefaultNamedCredentialPath = "force-app/main/default/namedCredentials"
	DefaultExternalServicePath = "force-app/main/default/externalServiceRegistrations"
	DefaultManifestPath        = "manifest"
	APIVersion                 = "59.0"
	metadataNamespace          = "http://soap.sforce.com/2006/04/metadata"
	serviceSuffix              = "Service"
	maxClassPrefix             = naming.MaxApexIdentifier - len("ServiceTest")
	classFileExt               = ".cls"
	metaFileExt                = ".cls-meta.xml"
	namedCredentialFileExt     = ".namedCredential-meta.xml"
	externalServiceFileExt     = ".externalServiceRegistration-meta.xml"
)

// ErrorHandling selects how generated services react to failed callouts.
type ErrorHandling string

const (
	// ErrorHandlingBasic throws ServiceException on any non-2xx status.
	ErrorHandlingBasic ErrorHandling = "basic"
	// ErrorHandlingAdvanced retries statuses listed in the connection's
	// retry config and records status code and body on the exception.
	ErrorHandlingAdvanced ErrorHandling = "advanced"
)

// ParseErrorHandling accepts basic or advanced, case-insensitively. Empty
// means advanced.
func ParseErrorHandling(s string) (ErrorHandling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "advanced":
		return ErrorHandlingAdvanced, nil
	case "basic":
		return ErrorHandlingBasic, nil
	}
	return "", fmt.Errorf("unknown error handling %q (use basic or advanced)", s)
}

// GenerationOptions controls GenerateApexClasses.
type GenerationOptions struct {
	GenerateTestClass   bool
	GenerateMockService bool
	IncludeComments     bool
	UseBulkAPI          bool
	AsyncProcessing     bool
	ErrorHandling       ErrorHandling
	NamingConvention    naming.Convention
	// OutputPath is the slash separated directory classes are placed in.
	OutputPath string
}

// DefaultGenerationOptions mirrors the workspace defaults: tests, mocks,
// comments and async variants on, bulk variants off.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		GenerateTestClass:   true,
		GenerateMockService: true,
		IncludeComments:     true,
		AsyncProcessing:     true,
		ErrorHandling:       ErrorHandlingAdvanced,
		NamingConvention:    naming.CamelCase,
		OutputPath:          DefaultClassesPath,
	}
}

func (o GenerationOptions) normalized() GenerationOptions {
	if o.ErrorHandling != ErrorHandlingBasic {
		o.ErrorHandling = ErrorHandlingAdvanced
	}
	if o.NamingConvention != naming.PascalCase {
		o.NamingConvention = naming.CamelCase
	}
	o.OutputPath = cleanDir(o.OutputPath, DefaultClassesPath)
	return o
}

func cleanDir(dir, def string) string {
	dir = strings.Trim(strings.ReplaceAll(strings.TrimSpace(dir), "\\", "/"), "/")
	if dir == "" {
		return def
	}
	return dir
}
