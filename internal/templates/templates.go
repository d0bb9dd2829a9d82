// Package templates is the built-in catalog of ERP connection templates.
// The catalog is decoded once at init and never mutated; lookups hand out
// deep copies.
package templates

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
	"sigs.k8s.io/yaml"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Template struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	ERPType          spec.ERPType         `json:"erpType"`
	Category         string               `json:"category"`
	Description      string               `json:"description"`
	AuthType         spec.AuthType        `json:"authType"`
	DocumentationURL string               `json:"documentationUrl,omitempty"`
	DefaultEndpoints []spec.Endpoint      `json:"defaultEndpoints"`
	DefaultMappings  []store.FieldMapping `json:"defaultMappings"`
}

var catalog = mustLoad(catalogYAML)

func mustLoad(data []byte) map[spec.ERPType]Template {
	var list []Template
	if err := yaml.UnmarshalStrict(data, &list); err != nil {
		panic(fmt.Sprintf("templates: decode catalog: %v", err))
	}
	out := make(map[spec.ERPType]Template, len(list))
	for _, t := range list {
		if _, dup := out[t.ERPType]; dup {
			panic(fmt.Sprintf("templates: duplicate erp type %s", t.ERPType))
		}
		out[t.ERPType] = t
	}
	return out
}

// Lookup finds a template by ERP type, id or display name, case-insensitively.
func Lookup(key string) (Template, bool) {
	for _, t := range catalog {
		if strings.EqualFold(string(t.ERPType), key) || strings.EqualFold(t.ID, key) || strings.EqualFold(t.Name, key) {
			return clone(t), true
		}
	}
	return Template{}, false
}

// All returns every template sorted by id.
func All() []Template {
	out := make([]Template, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Input returns the creation input for a new connection based on t. Endpoint
// ids are derived from the template so repeated use stays stable.
func (t Template) Input(name, baseURL string) connection.Input {
	c := clone(t)
	for i := range c.DefaultEndpoints {
		ep := &c.DefaultEndpoints[i]
		ep.ID = uuid.NewV5(uuid.NamespaceURL, "connectforce:template:"+t.ID+":"+ep.ID).String()
		if ep.Parameters == nil {
			ep.Parameters = []spec.Parameter{}
		}
		if ep.Headers == nil {
			ep.Headers = map[string]string{}
		}
	}
	return connection.Input{
		Name:               name,
		Description:        t.Description,
		BaseURL:            baseURL,
		AuthenticationType: t.AuthType,
		Headers:            spec.DefaultHeaders(),
		Endpoints:          c.DefaultEndpoints,
		Tags:               []string{t.ID},
		ERPType:            t.ERPType,
	}
}

func clone(t Template) Template {
	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	var out Template
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
