package apexemitter

import (
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

// wrapper is one generated DTO inner class.
type wrapper struct {
	Name        string
	Description string
	Fields      []field
}

type field struct {
	JSONName    string
	Name        string
	Type        string
	// Wrapper is the wrapper Type holds directly or as list elements.
	Wrapper     string
	Required    bool
	Description string
}

// typeRegistry maps schema trees to Apex type expressions and collects one
// wrapper per distinct object shape.
type typeRegistry struct {
	bySig   map[string]*wrapper
	byName  map[string]*wrapper
	ordered []*wrapper
	taken   map[string]struct{}
	// renamed is filled on first use, once every wrapper is registered.
	renamed map[string]bool
}

// builtinTypes may not be reused as wrapper names.
var builtinTypes = []string{
	"Blob", "Boolean", "Database", "Date", "Datetime", "Decimal", "Double", "Exception", "Http",
	"HttpRequest", "HttpResponse", "Id", "Integer", "JSON", "List", "Long", "Map", "Object",
	"Schema", "Set", "String", "System", "Test", "Time", "Type",
	// inner classes every service declares
	"ServiceException", "PendingCall", "AsyncJob",
}

func newTypeRegistry(outer ...string) *typeRegistry {
	r := &typeRegistry{
		bySig:  map[string]*wrapper{},
		byName: map[string]*wrapper{},
		taken:  map[string]struct{}{},
	}
	for _, n := range builtinTypes {
		naming.Unique(n, r.taken)
	}
	for _, n := range outer {
		naming.Unique(n, r.taken)
	}
	return r
}

// apexType returns the Apex type for s. hint names the wrapper created when s
// is an object with properties that has not been seen before; item does the
// same for the elements of an array.
func (r *typeRegistry) apexType(s *spec.Schema, hint, item string) string {
	if s == nil || s.Cyclic {
		return "Object"
	}
	switch s.Type {
	case spec.TypeString:
		switch s.Format {
		case "date":
			return "Date"
		case "date-time":
			return "Datetime"
		}
		return "String"
	case spec.TypeDate:
		return "Date"
	case spec.TypeDateTime:
		return "Datetime"
	case spec.TypeInteger:
		if s.Format == "int64" {
			return "Long"
		}
		return "Integer"
	case spec.TypeNumber:
		return "Double"
	case spec.TypeBoolean:
		return "Boolean"
	case spec.TypeArray:
		if s.Items == nil {
			return "List<Object>"
		}
		return "List<" + r.apexType(s.Items, item, item+"Item") + ">"
	case spec.TypeObject:
		if s.HasProperties() {
			return r.register(s, hint).Name
		}
		return "Map<String, Object>"
	}
	return "Object"
}

func (r *typeRegistry) register(s *spec.Schema, hint string) *wrapper {
	sig := shapeSignature(s, 0)
	if w, ok := r.bySig[sig]; ok {
		return w
	}
	name := naming.TypeName(hint)
	if naming.IsApexReserved(name) {
		name += "Type"
	}
	w := &wrapper{Name: naming.Unique(name, r.taken), Description: s.Description}
	r.bySig[sig] = w
	r.byName[w.Name] = w
	r.ordered = append(r.ordered, w)

	fieldNames := map[string]struct{}{}
	for _, prop := range s.PropertyNames() {
		child := s.Properties[prop]
		f := field{
			JSONName:    prop,
			Name:        naming.Unique(naming.FieldName(prop), fieldNames),
			Required:    s.IsRequired(prop),
			Description: child.Description,
		}
		f.Type = r.apexType(child, prop, naming.SingularTypeName(prop))
		f.Wrapper = r.elementWrapper(f.Type)
		w.Fields = append(w.Fields, f)
	}
	return w
}

// shapeSignature identifies an object shape by its property names and child
// types. Descriptions and examples do not take part.
func shapeSignature(s *spec.Schema, depth int) string {
	if s == nil {
		return "?"
	}
	if s.Cyclic || depth > 64 {
		return "cyclic"
	}
	switch s.Type {
	case spec.TypeArray:
		return "[" + shapeSignature(s.Items, depth+1) + "]"
	case spec.TypeObject:
		if !s.HasProperties() {
			return "map"
		}
		parts := make([]string, 0, len(s.Properties))
		for _, name := range s.PropertyNames() {
			parts = append(parts, name+":"+shapeSignature(s.Properties[name], depth+1))
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return string(s.Type) + "/" + s.Format
}

// wrapperNames returns every generated wrapper name.
func (r *typeRegistry) wrapperNames() map[string]bool {
	out := make(map[string]bool, len(r.ordered))
	for _, w := range r.ordered {
		out[w.Name] = true
	}
	return out
}

// elementWrapper returns the wrapper a type expression carries, either
// directly or as the element of (possibly nested) lists, or "".
func (r *typeRegistry) elementWrapper(t string) string {
	for strings.HasPrefix(t, "List<") && strings.HasSuffix(t, ">") {
		t = t[len("List<") : len(t)-1]
	}
	if _, ok := r.byName[t]; ok {
		return t
	}
	return ""
}

// renameTables returns, per wrapper, the Apex field to JSON name aliases and
// the fields that lead into wrappers which themselves need renaming. Wrappers
// with nothing to rename at any depth are left out of both tables, so their
// payloads go through plain JSON serialization.
func (r *typeRegistry) renameTables() (aliases, nested []wrapperPairs) {
	needs := map[string]bool{}
	var visit func(w *wrapper) bool
	visit = func(w *wrapper) bool {
		if v, ok := needs[w.Name]; ok {
			return v
		}
		needs[w.Name] = false
		v := false
		for _, f := range w.Fields {
			if f.Name != f.JSONName {
				v = true
			}
			if f.Wrapper != "" && visit(r.byName[f.Wrapper]) {
				v = true
			}
		}
		needs[w.Name] = v
		return v
	}
	for _, w := range r.ordered {
		visit(w)
	}

	for _, w := range r.ordered {
		if !needs[w.Name] {
			continue
		}
		var a, n [][2]string
		for _, f := range w.Fields {
			if f.Name != f.JSONName {
				a = append(a, [2]string{f.Name, f.JSONName})
			}
			if f.Wrapper != "" && needs[f.Wrapper] {
				n = append(n, [2]string{f.Name, f.Wrapper})
			}
		}
		if len(a) > 0 {
			aliases = append(aliases, wrapperPairs{Wrapper: w.Name, Pairs: a})
		}
		if len(n) > 0 {
			nested = append(nested, wrapperPairs{Wrapper: w.Name, Pairs: n})
		}
	}
	return aliases, nested
}

// renamedWrapper returns the wrapper a method payload of type t is renamed
// as, or "" when it goes through plain JSON serialization.
func (r *typeRegistry) renamedWrapper(t string) string {
	name := r.elementWrapper(t)
	if name == "" {
		return ""
	}
	if r.renamed == nil {
		r.renamed = map[string]bool{}
		aliases, nested := r.renameTables()
		for _, wp := range append(aliases, nested...) {
			r.renamed[wp.Wrapper] = true
		}
	}
	if r.renamed[name] {
		return name
	}
	return ""
}

type wrapperPairs struct {
	Wrapper string
	Pairs   [][2]string
}

// paramType maps a parameter DataType to the Apex argument type.
func paramType(t spec.DataType) string {
	switch t {
	case spec.TypeInteger:
		return "Integer"
	case spec.TypeNumber:
		return "Double"
	case spec.TypeBoolean:
		return "Boolean"
	case spec.TypeDate:
		return "Date"
	case spec.TypeDateTime:
		return "Datetime"
	}
	return "String"
}
