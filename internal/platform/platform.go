// Package platform reaches the Salesforce org through the sf CLI. Consumers
// depend on the Metadata interface so they can run against Fake in tests.
package platform

import (
	"context"
	"regexp"
	"strings"
)

type PicklistValue struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	Active       bool   `json:"active"`
	DefaultValue bool   `json:"defaultValue"`
}

type Field struct {
	Name           string          `json:"name"`
	Label          string          `json:"label"`
	Type           string          `json:"type"`
	Length         int             `json:"length,omitempty"`
	Precision      int             `json:"precision,omitempty"`
	Scale          int             `json:"scale,omitempty"`
	Required       bool            `json:"required"`
	Unique         bool            `json:"unique"`
	ExternalID     bool            `json:"externalId"`
	ReferenceTo    []string        `json:"referenceTo,omitempty"`
	PicklistValues []PicklistValue `json:"picklistValues,omitempty"`
	DefaultValue   any             `json:"defaultValue,omitempty"`
	Formula        string          `json:"formula,omitempty"`
	Calculated     bool            `json:"calculated"`
	Createable     bool            `json:"createable"`
	Updateable     bool            `json:"updateable"`
}

type Object struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	APIName   string  `json:"apiName"`
	Fields    []Field `json:"fields,omitempty"`
	IsCustom  bool    `json:"isCustom"`
	KeyPrefix string  `json:"keyPrefix,omitempty"`
}

// FieldNames lists the object's field API names in describe order.
func (o *Object) FieldNames() []string {
	out := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		out[i] = f.Name
	}
	return out
}

type Record map[string]any

type DeployResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Metadata is the org capability used for mapping suggestions and deploys.
type Metadata interface {
	ListObjects(ctx context.Context) ([]Object, error)
	DescribeObject(ctx context.Context, name string) (*Object, error)
	Query(ctx context.Context, soql string) ([]Record, error)
	Deploy(ctx context.Context, sourceDir string) (DeployResult, error)
}

var standardObjects = []string{
	"Account", "Contact", "Lead", "Opportunity", "Case", "Task", "Event", "User",
	"Product2", "Pricebook2", "PricebookEntry", "Order", "OrderItem", "Contract",
	"Asset", "Campaign", "CampaignMember",
}

// StandardObjects returns the commonly mapped standard objects.
func StandardObjects() []string {
	return append([]string(nil), standardObjects...)
}

var objectNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidObjectName reports whether name is a plain sObject API name.
func ValidObjectName(name string) bool {
	return objectNameRe.MatchString(name)
}

// IsCustomObject reports whether name carries the custom object suffix.
func IsCustomObject(name string) bool {
	return strings.HasSuffix(name, "__c")
}
