package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// parsedDocument is a spec that passed the structural checks, decoded into
// an OpenAPI 3 document plus the key order of the original text.
type parsedDocument struct {
	Version int // 2 or 3
	Doc     *openapi3.T
	Order   keyOrder
}

// safeYAMLTags are the tags a YAML spec may carry. Anything else (custom or
// language-specific tags) is rejected before conversion.
var safeYAMLTags = map[string]bool{
	"!!str":       true,
	"!!int":       true,
	"!!float":     true,
	"!!bool":      true,
	"!!null":      true,
	"!!map":       true,
	"!!seq":       true,
	"!!timestamp": true,
	"!!merge":     true,
}

// parseDocument runs the fail-fast part of an import: size cap, JSON/YAML
// decoding, required top-level fields, path cap. No endpoint is built here.
func parseDocument(raw []byte) (*parsedDocument, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newSpecError(InputError, nil, "spec: input is empty")
	}
	if len(raw) > MaxSpecBytes {
		return nil, newSpecError(LimitError, nil, "spec: document is %d bytes, limit is %d", len(raw), MaxSpecBytes)
	}

	jsonText, node, err := toJSON(raw)
	if err != nil {
		return nil, err
	}

	var root map[string]any
	if err := json.Unmarshal(jsonText, &root); err != nil || root == nil {
		return nil, newSpecError(ValidationError, err, "spec: document root must be an object")
	}

	version, err := checkStructure(root)
	if err != nil {
		return nil, err
	}

	var order keyOrder
	if node != nil {
		order = readKeyOrderYAML(node, version)
	} else {
		order = readKeyOrder(jsonText, version)
	}

	if v, ok := root["openapi"]; ok {
		root["openapi"] = scalarString(v)
	}
	if v, ok := root["swagger"]; ok {
		root["swagger"] = scalarString(v)
	}
	if info, ok := root["info"].(map[string]any); ok {
		if v, ok := info["version"]; ok {
			info["version"] = scalarString(v)
		}
	}

	normalizeMethodKeys(root)
	normalizeTypeArrays(root)
	if version == 2 {
		preprocessV2ForCompatibility(root)
	}
	normalized, err := json.Marshal(root)
	if err != nil {
		return nil, newSpecError(ParseError, err, "spec: re-encode document: %v", err)
	}

	doc, err := decodeOpenAPI(normalized, version)
	if err != nil {
		return nil, err
	}
	return &parsedDocument{Version: version, Doc: doc, Order: order}, nil
}

// toJSON returns raw unchanged when it is JSON, otherwise converts safe YAML.
// For YAML input the parsed node tree is returned as well, since the JSON
// conversion does not keep mapping order.
func toJSON(raw []byte) ([]byte, *yaml.Node, error) {
	var probe any
	jsonErr := json.Unmarshal(raw, &probe)
	if jsonErr == nil {
		return raw, nil, nil
	}
	out, node, yamlErr := safeYAMLToJSON(raw)
	if yamlErr != nil {
		return nil, nil, newSpecError(ParseError, yamlErr, "spec: not valid JSON (%v) or YAML (%v)", jsonErr, yamlErr)
	}
	return out, node, nil
}

func safeYAMLToJSON(raw []byte) ([]byte, *yaml.Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, nil, err
	}
	if node.Kind == 0 {
		return nil, nil, fmt.Errorf("empty document")
	}
	if err := checkYAMLTags(&node); err != nil {
		return nil, nil, err
	}
	out, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	return out, &node, nil
}

func checkYAMLTags(n *yaml.Node) error {
	if n == nil || n.Kind == yaml.AliasNode {
		return nil
	}
	if n.Kind != yaml.DocumentNode {
		if tag := n.ShortTag(); !safeYAMLTags[tag] {
			return fmt.Errorf("line %d: tag %q is not allowed", n.Line, tag)
		}
	}
	for _, child := range n.Content {
		if err := checkYAMLTags(child); err != nil {
			return err
		}
	}
	return nil
}

// checkStructure validates the discriminator, info and paths, and enforces
// the path cap. It returns the major version.
func checkStructure(root map[string]any) (int, error) {
	openapiVersion := scalarString(root["openapi"])
	swaggerVersion := scalarString(root["swagger"])
	if openapiVersion == "" && swaggerVersion == "" {
		return 0, newSpecError(ValidationError, nil, "spec: missing version field (expected 'openapi' or 'swagger')")
	}
	if _, ok := root["info"].(map[string]any); !ok {
		return 0, newSpecError(ValidationError, nil, "spec: missing 'info' object")
	}
	paths, ok := root["paths"].(map[string]any)
	if !ok {
		return 0, newSpecError(ValidationError, nil, "spec: missing 'paths' object")
	}
	if len(paths) > MaxSpecPaths {
		return 0, newSpecError(LimitError, nil, "spec: %d paths declared, limit is %d", len(paths), MaxSpecPaths)
	}

	switch {
	case strings.HasPrefix(openapiVersion, "3"):
		return 3, nil
	case openapiVersion == "" && strings.HasPrefix(swaggerVersion, "2"):
		return 2, nil
	default:
		v := openapiVersion
		if v == "" {
			v = swaggerVersion
		}
		return 0, newSpecError(ValidationError, nil, "spec: unsupported version %q (expected openapi 3.x or swagger 2.0)", v)
	}
}

func decodeOpenAPI(data []byte, version int) (*openapi3.T, error) {
	if version == 2 {
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return nil, newSpecError(ParseError, err, "spec: decode swagger document: %v", err)
		}
		doc, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, newSpecError(ConversionError, err, "convert v2→v3: %v", err)
		}
		return doc, nil
	}
	var doc openapi3.T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newSpecError(ParseError, err, "spec: decode OpenAPI document: %v", err)
	}
	return &doc, nil
}

// normalizeMethodKeys lower-cases operation keys so GET and get are treated alike.
func normalizeMethodKeys(root map[string]any) {
	paths, _ := root["paths"].(map[string]any)
	for _, v := range paths {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for key, op := range item {
			lower := strings.ToLower(key)
			if lower == key || !isMethodKey(lower) {
				continue
			}
			delete(item, key)
			item[lower] = op
		}
	}
}

// normalizeTypeArrays rewrites `type: [T, "null"]` into `type: T, nullable: true`
// so 3.1-style schemas decode into the 3.0 model.
func normalizeTypeArrays(node any) {
	switch v := node.(type) {
	case map[string]any:
		if types, ok := v["type"].([]any); ok {
			picked := ""
			nullable := false
			for _, t := range types {
				s, _ := t.(string)
				if s == "null" {
					nullable = true
					continue
				}
				if picked == "" {
					picked = s
				}
			}
			if picked == "" {
				delete(v, "type")
			} else {
				v["type"] = picked
			}
			if nullable {
				v["nullable"] = true
			}
		}
		for _, child := range v {
			normalizeTypeArrays(child)
		}
	case []any:
		for _, child := range v {
			normalizeTypeArrays(child)
		}
	}
}

func isMethodKey(key string) bool {
	for _, m := range Methods {
		if strings.EqualFold(string(m), key) {
			return true
		}
	}
	return false
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, int, int64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
