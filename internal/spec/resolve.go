package spec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

const (
	schemaRefPrefix      = "#/components/schemas/"
	parameterRefPrefix   = "#/components/parameters/"
	requestBodyRefPrefix = "#/components/requestBodies/"
	responseRefPrefix    = "#/components/responses/"

	// maxRefDepth bounds nested reference expansion along one path.
	maxRefDepth = 32
	// maxSchemaNodes bounds the nodes one root schema may expand into. Past
	// it, further references stay unexpanded.
	maxSchemaNodes = 5000
)

// schemaConverter turns OpenAPI schemas into Schema trees, inlining
// #/components/schemas references. References already being expanded on the
// current path become cyclic placeholders, as do references met once the
// node budget of the current root is spent.
type schemaConverter struct {
	components *openapi3.Components
	logger     *zap.Logger
	stack      []string
	nodes      int
}

func newSchemaConverter(doc *openapi3.T, logger *zap.Logger) *schemaConverter {
	return &schemaConverter{components: doc.Components, logger: logger}
}

// Convert converts a root schema; a missing type defaults to object.
func (c *schemaConverter) Convert(ref *openapi3.SchemaRef) *Schema {
	c.nodes = 0
	return c.convert(ref, TypeObject)
}

func (c *schemaConverter) convert(ref *openapi3.SchemaRef, def DataType) *Schema {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		if ref.Value == nil {
			return nil
		}
		return c.convertValue(ref.Value, def)
	}

	name, ok := componentName(ref.Ref, schemaRefPrefix)
	if !ok {
		c.logger.Debug("unresolvable reference treated as absent", zap.String("ref", ref.Ref))
		return nil
	}
	if c.onStack(name) || len(c.stack) >= maxRefDepth {
		c.logger.Debug("reference not expanded", zap.String("ref", ref.Ref), zap.Int("depth", len(c.stack)))
		return cyclicPlaceholder(name)
	}
	if c.nodes >= maxSchemaNodes {
		c.logger.Debug("reference not expanded, node budget spent", zap.String("ref", ref.Ref), zap.Int("nodes", c.nodes))
		return truncatedPlaceholder(name)
	}
	var target *openapi3.SchemaRef
	if c.components != nil {
		target = c.components.Schemas[name]
	}
	if target == nil {
		c.logger.Debug("unresolvable reference treated as absent", zap.String("ref", ref.Ref))
		return nil
	}

	c.stack = append(c.stack, name)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()
	return c.convert(target, def)
}

func (c *schemaConverter) convertValue(v *openapi3.Schema, def DataType) *Schema {
	// Composition without an explicit type: allOf merges, oneOf/anyOf take
	// the first variant.
	if v.Type == "" && len(v.Properties) == 0 {
		if len(v.AllOf) > 0 {
			return c.mergeAllOf(v, def)
		}
		if len(v.OneOf) > 0 {
			return c.withOverrides(c.convert(v.OneOf[0], def), v)
		}
		if len(v.AnyOf) > 0 {
			return c.withOverrides(c.convert(v.AnyOf[0], def), v)
		}
	}

	c.nodes++
	t := ParseDataType(v.Type, def)
	switch {
	case v.Type == "" && len(v.Properties) > 0:
		t = TypeObject
	case v.Type == "" && v.Items != nil:
		t = TypeArray
	}

	s := &Schema{
		Type:        t,
		Description: strings.TrimSpace(v.Description),
		Format:      v.Format,
		Nullable:    v.Nullable,
		Pattern:     v.Pattern,
		Example:     v.Example,
		Enum:        enumStrings(v.Enum),
	}
	if v.MinLength > 0 {
		n := int(v.MinLength)
		s.MinLength = &n
	}
	if v.MaxLength != nil {
		n := int(*v.MaxLength)
		s.MaxLength = &n
	}

	switch t {
	case TypeObject:
		c.addProperties(s, v)
	case TypeArray:
		s.Items = c.convert(v.Items, def)
	}
	return s
}

func (c *schemaConverter) addProperties(s *Schema, v *openapi3.Schema) {
	if len(v.Required) > 0 {
		s.RequiredFields = append([]string(nil), v.Required...)
	}
	if len(v.Properties) == 0 {
		return
	}
	if s.Properties == nil {
		s.Properties = make(map[string]*Schema, len(v.Properties))
	}
	// Sorted so a spent node budget always cuts the same branches.
	names := make([]string, 0, len(v.Properties))
	for name := range v.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := c.convert(v.Properties[name], TypeString)
		if child == nil {
			continue
		}
		child.Required = containsName(v.Required, name)
		s.Properties[name] = child
	}
}

func (c *schemaConverter) mergeAllOf(v *openapi3.Schema, def DataType) *Schema {
	out := &Schema{Type: TypeObject, Description: strings.TrimSpace(v.Description), Nullable: v.Nullable, Example: v.Example}
	for _, part := range v.AllOf {
		converted := c.convert(part, def)
		if converted == nil {
			continue
		}
		if converted.Type != TypeObject || converted.Cyclic {
			if len(v.AllOf) == 1 {
				return c.withOverrides(converted, v)
			}
			continue
		}
		if out.Description == "" {
			out.Description = converted.Description
		}
		for name, prop := range converted.Properties {
			if out.Properties == nil {
				out.Properties = map[string]*Schema{}
			}
			out.Properties[name] = prop
		}
		for _, r := range converted.RequiredFields {
			if !containsName(out.RequiredFields, r) {
				out.RequiredFields = append(out.RequiredFields, r)
			}
		}
	}
	for _, r := range v.Required {
		if !containsName(out.RequiredFields, r) {
			out.RequiredFields = append(out.RequiredFields, r)
		}
	}
	for name, prop := range out.Properties {
		prop.Required = containsName(out.RequiredFields, name)
	}
	return out
}

func (c *schemaConverter) withOverrides(s *Schema, v *openapi3.Schema) *Schema {
	if s == nil {
		return nil
	}
	if d := strings.TrimSpace(v.Description); d != "" {
		s.Description = d
	}
	if v.Nullable {
		s.Nullable = true
	}
	return s
}

func (c *schemaConverter) onStack(name string) bool {
	for _, n := range c.stack {
		if n == name {
			return true
		}
	}
	return false
}

func cyclicPlaceholder(name string) *Schema {
	return &Schema{
		Type:        TypeObject,
		Description: fmt.Sprintf("Circular reference to %s (not expanded)", name),
		Cyclic:      true,
		Ref:         name,
	}
}

func truncatedPlaceholder(name string) *Schema {
	return &Schema{
		Type:        TypeObject,
		Description: fmt.Sprintf("Reference to %s (not expanded, schema too large)", name),
		Cyclic:      true,
		Ref:         name,
	}
}

func componentName(ref, prefix string) (string, bool) {
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	name = strings.ReplaceAll(strings.ReplaceAll(name, "~1", "/"), "~0", "~")
	return name, name != ""
}

// resolveParameter follows a #/components/parameters reference.
func resolveParameter(doc *openapi3.T, ref *openapi3.ParameterRef) *openapi3.Parameter {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		return ref.Value
	}
	name, ok := componentName(ref.Ref, parameterRefPrefix)
	if !ok || doc.Components == nil {
		return nil
	}
	if target := doc.Components.Parameters[name]; target != nil && target.Ref == "" {
		return target.Value
	}
	return nil
}

// resolveRequestBody follows a #/components/requestBodies reference.
func resolveRequestBody(doc *openapi3.T, ref *openapi3.RequestBodyRef) *openapi3.RequestBody {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		return ref.Value
	}
	name, ok := componentName(ref.Ref, requestBodyRefPrefix)
	if !ok || doc.Components == nil {
		return nil
	}
	if target := doc.Components.RequestBodies[name]; target != nil && target.Ref == "" {
		return target.Value
	}
	return nil
}

// resolveResponse follows a #/components/responses reference.
func resolveResponse(doc *openapi3.T, ref *openapi3.ResponseRef) *openapi3.Response {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		return ref.Value
	}
	name, ok := componentName(ref.Ref, responseRefPrefix)
	if !ok || doc.Components == nil {
		return nil
	}
	if target := doc.Components.Responses[name]; target != nil && target.Ref == "" {
		return target.Value
	}
	return nil
}

// jsonSchemaOf returns the application/json schema of content, accepting
// media type parameters such as charset.
func jsonSchemaOf(content openapi3.Content) *openapi3.SchemaRef {
	if content == nil {
		return nil
	}
	if mt := content["application/json"]; mt != nil && mt.Schema != nil {
		return mt.Schema
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		base := strings.TrimSpace(strings.SplitN(k, ";", 2)[0])
		if strings.EqualFold(base, "application/json") {
			if mt := content[k]; mt != nil && mt.Schema != nil {
				return mt.Schema
			}
		}
	}
	return nil
}

func enumStrings(values []any) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, literalString(v))
	}
	return out
}

// literalString renders a scalar as text and anything else as compact JSON.
func literalString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, float64, float32, int, int64, int32, uint64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func containsName(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
