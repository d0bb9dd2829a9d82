package apexemitter

import (
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

// methodSpec is everything the service, mock and test renderers need to know
// about one endpoint. All three read the same list so their method surfaces
// cannot drift apart.
type methodSpec struct {
	Endpoint *spec.Endpoint
	Name     string
	Params   []param
	// Body is nil for methods without a request body.
	Body       *param
	ReturnType string
	// RawResponse marks endpoints without a JSON response schema; they return
	// the response body as a String.
	RawResponse bool
	BulkName    string
	AsyncName   string
}

type param struct {
	Name        string
	Wire        string
	Type        string
	In          spec.ParamLocation
	Required    bool
	Description string
}

// serviceMembers are identifiers the service class declares itself.
var serviceMembers = []string{
	"newRequest", "send", "encode", "decode", "rename", "dispatch", "flushAsync", "pendingCalls", "apiKey",
	"toString", "equals", "hashCode", "clone", "recordCall", "calls", "shouldFail",
}

// localNames are locals used inside generated method bodies.
var localNames = []string{"path", "query", "request", "response", "results", "bodies", "item"}

// argList renders the formal parameter list.
func (m *methodSpec) argList() string {
	parts := make([]string, 0, len(m.Params)+1)
	for _, p := range m.allParams() {
		parts = append(parts, p.Type+" "+p.Name)
	}
	return strings.Join(parts, ", ")
}

// allParams returns the formal parameters in call order, body last.
func (m *methodSpec) allParams() []param {
	out := append([]param(nil), m.Params...)
	if m.Body != nil {
		out = append(out, *m.Body)
	}
	return out
}

// callArgs renders the argument names in call order.
func (m *methodSpec) callArgs() string {
	ps := m.allParams()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func buildMethods(conn *spec.Connection, reg *typeRegistry, opts GenerationOptions) []*methodSpec {
	taken := map[string]struct{}{}
	for _, n := range serviceMembers {
		naming.Unique(n, taken)
	}

	methods := make([]*methodSpec, 0, len(conn.Endpoints))
	for i := range conn.Endpoints {
		ep := &conn.Endpoints[i]
		m := &methodSpec{Endpoint: ep, Name: naming.Unique(naming.MethodName(ep.Name, opts.NamingConvention), taken)}
		typeBase := naming.TypeName(m.Name)

		argTaken := map[string]struct{}{}
		for _, n := range localNames {
			naming.Unique(n, argTaken)
		}
		if ep.Method.HasBody() && ep.RequestBody != nil {
			naming.Unique("body", argTaken)
		}
		for _, loc := range []spec.ParamLocation{spec.InPath, spec.InQuery, spec.InHeader} {
			for _, p := range ep.Parameters {
				if p.In != loc {
					continue
				}
				m.Params = append(m.Params, param{
					Name:        naming.Unique(naming.ParamName(p.Name), argTaken),
					Wire:        p.Name,
					Type:        paramType(p.Type),
					In:          p.In,
					Required:    p.Required || p.In == spec.InPath,
					Description: p.Description,
				})
			}
		}
		if ep.Method.HasBody() && ep.RequestBody != nil {
			m.Body = &param{
				Name:        "body",
				Type:        reg.apexType(ep.RequestBody, typeBase+"Request", typeBase+"RequestItem"),
				Required:    true,
				Description: ep.RequestBody.Description,
			}
		}
		if ep.ResponseSchema != nil {
			m.ReturnType = reg.apexType(ep.ResponseSchema, typeBase+"Response", typeBase+"Item")
		} else {
			m.ReturnType = "String"
			m.RawResponse = true
		}
		methods = append(methods, m)
	}

	// Variant names are reserved after every base name so a base name never
	// gets a suffix because of a variant.
	for _, m := range methods {
		if opts.UseBulkAPI && m.Body != nil {
			m.BulkName = naming.Unique(m.Name+"Bulk", taken)
		}
		if opts.AsyncProcessing {
			m.AsyncName = naming.Unique(m.Name+"Async", taken)
		}
	}
	return methods
}
