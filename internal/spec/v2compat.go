package spec

import "strings"

// preprocessV2ForCompatibility rewrites Swagger 2.0 constructs that the
// v2→v3 converter rejects or drops:
//   - several `in: body` parameters on one operation are folded into a single
//     object body whose properties are the original parameters;
//   - body parameters mixed with formData are turned into formData fields;
//   - documents that declare no consumes/produces default to application/json,
//     so bodies and responses land under that media type after conversion.
//
// The document is modified in place; the result reports whether anything changed.
func preprocessV2ForCompatibility(doc map[string]any) bool {
	modified := false
	if _, ok := doc["consumes"]; !ok {
		doc["consumes"] = []any{"application/json"}
		modified = true
	}
	if _, ok := doc["produces"]; !ok {
		doc["produces"] = []any{"application/json"}
		modified = true
	}

	paths, _ := doc["paths"].(map[string]any)
	for _, pim := range paths {
		item, ok := pim.(map[string]any)
		if !ok {
			continue
		}
		for method, opm := range item {
			if !isMethodKey(method) {
				continue
			}
			op, ok := opm.(map[string]any)
			if !ok {
				continue
			}
			if rewriteV2Parameters(op) {
				modified = true
			}
		}
	}
	return modified
}

func rewriteV2Parameters(op map[string]any) bool {
	params, ok := op["parameters"].([]any)
	if !ok || len(params) == 0 {
		return false
	}

	bodies, hasFormData := 0, false
	for _, p := range params {
		pm, _ := p.(map[string]any)
		switch strings.ToLower(asString(pm["in"])) {
		case "body":
			bodies++
		case "formdata":
			hasFormData = true
		}
	}

	switch {
	case bodies == 0:
		return false
	case hasFormData:
		out := make([]any, 0, len(params))
		for _, p := range params {
			pm, _ := p.(map[string]any)
			if pm == nil {
				continue
			}
			if strings.EqualFold(asString(pm["in"]), "body") {
				out = append(out, formDataFromBodyParam(pm))
				continue
			}
			out = append(out, pm)
		}
		op["parameters"] = out
		consumes, _ := op["consumes"].([]any)
		if !containsString(consumes, "multipart/form-data") {
			op["consumes"] = append(consumes, "multipart/form-data")
		}
		return true
	case bodies > 1:
		props := map[string]any{}
		var required []any
		rest := make([]any, 0, len(params))
		for _, p := range params {
			pm, _ := p.(map[string]any)
			if pm == nil || !strings.EqualFold(asString(pm["in"]), "body") {
				rest = append(rest, p)
				continue
			}
			name := asString(pm["name"])
			if name == "" {
				name = "field"
			}
			schema := schemaFromParam(pm)
			if schema == nil {
				schema = map[string]any{"type": "string"}
			}
			props[name] = schema
			if req, _ := pm["required"].(bool); req {
				required = append(required, name)
			}
		}
		body := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			body["required"] = required
		}
		merged := map[string]any{"in": "body", "name": "body", "schema": body}
		op["parameters"] = append([]any{merged}, rest...)
		return true
	}
	return false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func containsString(list []any, want string) bool {
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}

func schemaFromParam(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	t := asString(pm["type"])
	if t == "" {
		return nil
	}
	m := map[string]any{"type": t}
	if it, ok := pm["items"].(map[string]any); ok {
		m["items"] = it
	}
	if f := asString(pm["format"]); f != "" {
		m["format"] = f
	}
	return m
}

func formDataFromBodyParam(pm map[string]any) map[string]any {
	name := asString(pm["name"])
	if name == "" {
		name = "field"
	}
	out := map[string]any{"in": "formData", "name": name}
	if desc := asString(pm["description"]); desc != "" {
		out["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		out["required"] = req
	}

	typ, format := "", ""
	var items any
	if sch, ok := pm["schema"].(map[string]any); ok {
		typ, format = asString(sch["type"]), asString(sch["format"])
		if it, ok := sch["items"].(map[string]any); ok {
			items = it
		}
	}
	// Referenced objects have no formData form; they degrade to string.
	if typ == "" || typ == "object" {
		typ = "string"
	}
	out["type"] = typ
	if items != nil {
		out["items"] = items
	}
	if format != "" {
		out["format"] = format
	}
	return out
}
