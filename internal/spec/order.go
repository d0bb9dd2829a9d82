package spec

import (
	"encoding/json"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// keyOrder records the document order of maps whose order carries meaning:
// paths, the operations under each path, and security schemes.
type keyOrder struct {
	Paths   []string
	Methods map[string][]string // path -> lower-case method keys
	Schemes []string
}

func readKeyOrder(doc []byte, version int) keyOrder {
	order := keyOrder{Methods: map[string][]string{}}

	top := decodeOrdered(doc)
	if top == nil {
		return order
	}

	if paths, ok := top.Get("paths"); ok {
		pathMap := decodeOrdered(paths)
		if pathMap != nil {
			for pair := pathMap.Oldest(); pair != nil; pair = pair.Next() {
				order.Paths = append(order.Paths, pair.Key)
				var methods []string
				for _, key := range orderedKeys(pair.Value) {
					lower := strings.ToLower(key)
					if isMethodKey(lower) {
						methods = append(methods, lower)
					}
				}
				order.Methods[pair.Key] = methods
			}
		}
	}

	if version == 2 {
		if defs, ok := top.Get("securityDefinitions"); ok {
			order.Schemes = orderedKeys(defs)
		}
		return order
	}
	if comps, ok := top.Get("components"); ok {
		if c := decodeOrdered(comps); c != nil {
			if schemes, ok := c.Get("securitySchemes"); ok {
				order.Schemes = orderedKeys(schemes)
			}
		}
	}
	return order
}

// readKeyOrderYAML is readKeyOrder for a YAML node tree.
func readKeyOrderYAML(doc *yaml.Node, version int) keyOrder {
	order := keyOrder{Methods: map[string][]string{}}
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	if paths := mappingValue(root, "paths"); paths != nil {
		for i := 0; i+1 < len(paths.Content); i += 2 {
			path := paths.Content[i].Value
			order.Paths = append(order.Paths, path)
			var methods []string
			for _, key := range mappingKeys(paths.Content[i+1]) {
				lower := strings.ToLower(key)
				if isMethodKey(lower) {
					methods = append(methods, lower)
				}
			}
			order.Methods[path] = methods
		}
	}

	if version == 2 {
		order.Schemes = mappingKeys(mappingValue(root, "securityDefinitions"))
		return order
	}
	order.Schemes = mappingKeys(mappingValue(mappingValue(root, "components"), "securitySchemes"))
	return order
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func mappingKeys(n *yaml.Node) []string {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func decodeOrdered(raw json.RawMessage) *orderedmap.OrderedMap[string, json.RawMessage] {
	if len(raw) == 0 {
		return nil
	}
	om := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, om); err != nil {
		return nil
	}
	return om
}

func orderedKeys(raw json.RawMessage) []string {
	om := decodeOrdered(raw)
	if om == nil {
		return nil
	}
	keys := make([]string, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// mergeOrder returns ordered followed by any keys of all missing from it, sorted.
func mergeOrder(ordered []string, all []string) []string {
	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, len(all))
	present := make(map[string]struct{}, len(all))
	for _, k := range all {
		present[k] = struct{}{}
	}
	for _, k := range ordered {
		if _, ok := present[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	var rest []string
	for _, k := range all {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
