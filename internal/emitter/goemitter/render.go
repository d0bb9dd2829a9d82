// Package goemitter renders a connection as a typed Go HTTP client package.
package goemitter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

const generatedHeader = "Code generated by connectforce. DO NOT EDIT."

// registry assigns one struct per distinct object shape.
type registry struct {
	bySig   map[string]*goStruct
	ordered []*goStruct
	taken   map[string]struct{}
}

type goStruct struct {
	Name   string
	Doc    string
	Schema *spec.Schema
}

// clientMembers are identifiers declared on or next to Client.
var clientMembers = []string{"Client", "New", "APIError", "DefaultBaseURL", "BaseURL", "HTTPClient", "Headers", "Authorize"}

func newRegistry() *registry {
	r := &registry{bySig: map[string]*goStruct{}, taken: map[string]struct{}{}}
	for _, n := range clientMembers {
		naming.Unique(n, r.taken)
	}
	return r
}

func (r *registry) typeOf(s *spec.Schema, hint, item string) *jen.Statement {
	if s == nil || s.Cyclic {
		return jen.Any()
	}
	switch s.Type {
	case spec.TypeString:
		if s.Format == "date-time" {
			return jen.Qual("time", "Time")
		}
		return jen.String()
	case spec.TypeDate:
		return jen.String()
	case spec.TypeDateTime:
		return jen.Qual("time", "Time")
	case spec.TypeInteger:
		if s.Format == "int32" {
			return jen.Int32()
		}
		return jen.Int64()
	case spec.TypeNumber:
		return jen.Float64()
	case spec.TypeBoolean:
		return jen.Bool()
	case spec.TypeArray:
		if s.Items == nil {
			return jen.Index().Any()
		}
		return jen.Index().Add(r.typeOf(s.Items, item, item+"Item"))
	case spec.TypeObject:
		if s.HasProperties() {
			return jen.Id(r.register(s, hint).Name)
		}
		return jen.Map(jen.String()).Any()
	}
	return jen.Any()
}

func (r *registry) register(s *spec.Schema, hint string) *goStruct {
	sig := signature(s, 0)
	if st, ok := r.bySig[sig]; ok {
		return st
	}
	st := &goStruct{Name: naming.Unique(naming.GoExported(hint), r.taken), Doc: s.Description, Schema: s}
	r.bySig[sig] = st
	r.ordered = append(r.ordered, st)
	// Children register now so the struct order follows first use.
	for _, prop := range s.PropertyNames() {
		r.typeOf(s.Properties[prop], prop, naming.SingularTypeName(prop))
	}
	return st
}

func signature(s *spec.Schema, depth int) string {
	if s == nil {
		return "?"
	}
	if s.Cyclic || depth > 64 {
		return "cyclic"
	}
	switch s.Type {
	case spec.TypeArray:
		return "[" + signature(s.Items, depth+1) + "]"
	case spec.TypeObject:
		if !s.HasProperties() {
			return "map"
		}
		parts := make([]string, 0, len(s.Properties))
		for _, name := range s.PropertyNames() {
			parts = append(parts, name+":"+signature(s.Properties[name], depth+1))
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return string(s.Type) + "/" + s.Format
}

type method struct {
	Endpoint *spec.Endpoint
	Name     string
	Params   []methodParam
	Body     *jen.Statement
	Result   *jen.Statement
	// Pointer marks struct results, returned as *T.
	Pointer bool
	Raw     bool
}

type methodParam struct {
	Name     string
	Wire     string
	In       spec.ParamLocation
	Type     *jen.Statement
	Optional bool
}

// localIdents are taken inside method bodies, including the imported package names.
var localIdents = []string{"ctx", "c", "path", "query", "header", "body", "out", "err", "fmt", "url", "http", "strings", "context", "time"}

func goParamType(t spec.DataType) *jen.Statement {
	switch t {
	case spec.TypeInteger:
		return jen.Int64()
	case spec.TypeNumber:
		return jen.Float64()
	case spec.TypeBoolean:
		return jen.Bool()
	}
	return jen.String()
}

func planMethods(conn *spec.Connection, r *registry) []*method {
	taken := map[string]struct{}{}
	for _, n := range clientMembers {
		naming.Unique(n, taken)
	}
	out := make([]*method, 0, len(conn.Endpoints))
	for i := range conn.Endpoints {
		ep := &conn.Endpoints[i]
		m := &method{Endpoint: ep, Name: naming.Unique(naming.GoExported(ep.Name), taken)}
		args := map[string]struct{}{}
		for _, n := range localIdents {
			naming.Unique(n, args)
		}
		for _, loc := range []spec.ParamLocation{spec.InPath, spec.InQuery, spec.InHeader} {
			for _, p := range ep.Parameters {
				if p.In != loc {
					continue
				}
				m.Params = append(m.Params, methodParam{
					Name:     naming.Unique(naming.GoUnexported(p.Name), args),
					Wire:     p.Name,
					In:       p.In,
					Type:     goParamType(p.Type),
					Optional: !p.Required && p.In != spec.InPath,
				})
			}
		}
		if ep.Method.HasBody() && ep.RequestBody != nil {
			m.Body = r.typeOf(ep.RequestBody, m.Name+"Request", m.Name+"RequestItem")
		}
		switch {
		case ep.ResponseSchema == nil:
			m.Raw = true
			m.Result = jen.Index().Byte()
		default:
			m.Result = r.typeOf(ep.ResponseSchema, m.Name+"Response", m.Name+"Item")
			m.Pointer = ep.ResponseSchema.HasProperties() && !ep.ResponseSchema.Cyclic
		}
		out = append(out, m)
	}
	return out
}

// Render returns the client package sources keyed by file name.
func Render(conn *spec.Connection, pkg string) (map[string][]byte, error) {
	r := newRegistry()
	methods := planMethods(conn, r)

	files := map[string]*jen.File{
		"client.go":    renderClient(conn, pkg),
		"types.go":     renderTypes(r, pkg),
		"endpoints.go": renderEndpoints(methods, pkg),
	}
	out := make(map[string][]byte, len(files))
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var buf bytes.Buffer
		if err := files[name].Render(&buf); err != nil {
			return nil, fmt.Errorf("goemitter: render %s: %w", name, err)
		}
		out[name] = buf.Bytes()
	}
	return out, nil
}

func newFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment(generatedHeader)
	return f
}

func renderClient(conn *spec.Connection, pkg string) *jen.File {
	f := newFile(pkg)
	f.PackageComment(fmt.Sprintf("Package %s is a client for the %s API.", pkg, strings.Join(strings.Fields(conn.Name), " ")))

	timeout := conn.Timeout
	if timeout == 0 {
		timeout = spec.DefaultTimeout
	}
	timeout = spec.ClampTimeout(timeout)

	f.Comment("DefaultBaseURL is the server the connection was configured with.")
	f.Const().Id("DefaultBaseURL").Op("=").Lit(conn.BaseURL)

	headers := make([]string, 0, len(conn.Headers))
	for k := range conn.Headers {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	f.Var().Id("defaultHeaders").Op("=").Map(jen.String()).String().ValuesFunc(func(g *jen.Group) {
		for _, k := range headers {
			g.Lit(k).Op(":").Lit(conn.Headers[k])
		}
	})

	f.Comment("Client calls the API. A nil HTTPClient falls back to http.DefaultClient.")
	f.Type().Id("Client").Struct(
		jen.Id("BaseURL").String(),
		jen.Id("HTTPClient").Op("*").Qual("net/http", "Client"),
		jen.Id("Headers").Map(jen.String()).String(),
		jen.Comment("Authorize, when set, runs on every request before it is sent."),
		jen.Id("Authorize").Func().Params(jen.Op("*").Qual("net/http", "Request")),
	)

	f.Comment("New returns a Client with the connection's default headers and timeout.")
	f.Func().Id("New").Params(jen.Id("baseURL").String()).Op("*").Id("Client").Block(
		jen.Id("headers").Op(":=").Make(jen.Map(jen.String()).String(), jen.Len(jen.Id("defaultHeaders"))),
		jen.For(jen.List(jen.Id("k"), jen.Id("v")).Op(":=").Range().Id("defaultHeaders")).Block(
			jen.Id("headers").Index(jen.Id("k")).Op("=").Id("v"),
		),
		jen.Return(jen.Op("&").Id("Client").Values(jen.Dict{
			jen.Id("BaseURL"):    jen.Id("baseURL"),
			jen.Id("HTTPClient"): jen.Op("&").Qual("net/http", "Client").Values(jen.Dict{jen.Id("Timeout"): jen.Lit(timeout).Op("*").Qual("time", "Millisecond")}),
			jen.Id("Headers"):    jen.Id("headers"),
		})),
	)

	f.Comment("APIError is returned for responses outside the 2xx range.")
	f.Type().Id("APIError").Struct(
		jen.Id("StatusCode").Int(),
		jen.Id("Body").String(),
	)
	f.Func().Params(jen.Id("e").Op("*").Id("APIError")).Id("Error").Params().String().Block(
		jen.Return(jen.Qual("fmt", "Sprintf").Call(jen.Lit("unexpected status %d: %s"), jen.Id("e").Dot("StatusCode"), jen.Id("e").Dot("Body"))),
	)

	ifErr := func() *jen.Statement {
		return jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
	}
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("do").Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.List(jen.Id("method"), jen.Id("path")).String(),
		jen.Id("query").Qual("net/url", "Values"),
		jen.Id("header").Qual("net/http", "Header"),
		jen.List(jen.Id("body"), jen.Id("out")).Any(),
	).Error().Block(
		jen.Var().Id("reader").Qual("io", "Reader"),
		jen.If(jen.Id("body").Op("!=").Nil()).Block(
			jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual("encoding/json", "Marshal").Call(jen.Id("body")),
			ifErr(),
			jen.Id("reader").Op("=").Qual("bytes", "NewReader").Call(jen.Id("data")),
		),
		jen.Id("u").Op(":=").Qual("strings", "TrimRight").Call(jen.Id("c").Dot("BaseURL"), jen.Lit("/")).Op("+").Id("path"),
		jen.If(jen.Len(jen.Id("query")).Op(">").Lit(0)).Block(
			jen.Id("u").Op("+=").Lit("?").Op("+").Id("query").Dot("Encode").Call(),
		),
		jen.List(jen.Id("req"), jen.Err()).Op(":=").Qual("net/http", "NewRequestWithContext").Call(jen.Id("ctx"), jen.Id("method"), jen.Id("u"), jen.Id("reader")),
		ifErr(),
		jen.For(jen.List(jen.Id("k"), jen.Id("v")).Op(":=").Range().Id("c").Dot("Headers")).Block(
			jen.Id("req").Dot("Header").Dot("Set").Call(jen.Id("k"), jen.Id("v")),
		),
		jen.For(jen.List(jen.Id("k"), jen.Id("v")).Op(":=").Range().Id("header")).Block(
			jen.Id("req").Dot("Header").Index(jen.Id("k")).Op("=").Id("v"),
		),
		jen.If(jen.Id("c").Dot("Authorize").Op("!=").Nil()).Block(
			jen.Id("c").Dot("Authorize").Call(jen.Id("req")),
		),
		jen.Id("hc").Op(":=").Id("c").Dot("HTTPClient"),
		jen.If(jen.Id("hc").Op("==").Nil()).Block(
			jen.Id("hc").Op("=").Qual("net/http", "DefaultClient"),
		),
		jen.List(jen.Id("resp"), jen.Err()).Op(":=").Id("hc").Dot("Do").Call(jen.Id("req")),
		ifErr(),
		jen.Defer().Id("resp").Dot("Body").Dot("Close").Call(),
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual("io", "ReadAll").Call(jen.Id("resp").Dot("Body")),
		ifErr(),
		jen.If(jen.Id("resp").Dot("StatusCode").Op("<").Lit(200).Op("||").Id("resp").Dot("StatusCode").Op(">").Lit(299)).Block(
			jen.Return(jen.Op("&").Id("APIError").Values(jen.Dict{
				jen.Id("StatusCode"): jen.Id("resp").Dot("StatusCode"),
				jen.Id("Body"):       jen.String().Call(jen.Id("data")),
			})),
		),
		jen.If(jen.List(jen.Id("raw"), jen.Id("ok")).Op(":=").Id("out").Assert(jen.Op("*").Index().Byte()), jen.Id("ok")).Block(
			jen.Op("*").Id("raw").Op("=").Id("data"),
			jen.Return(jen.Nil()),
		),
		jen.If(jen.Id("out").Op("==").Nil().Op("||").Len(jen.Id("data")).Op("==").Lit(0)).Block(
			jen.Return(jen.Nil()),
		),
		jen.Return(jen.Qual("encoding/json", "Unmarshal").Call(jen.Id("data"), jen.Id("out"))),
	)
	return f
}

func renderTypes(r *registry, pkg string) *jen.File {
	f := newFile(pkg)
	for _, st := range r.ordered {
		if st.Doc != "" {
			f.Comment(st.Name + " " + oneLine(st.Doc))
		}
		fieldNames := map[string]struct{}{}
		f.Type().Id(st.Name).StructFunc(func(g *jen.Group) {
			for _, prop := range st.Schema.PropertyNames() {
				child := st.Schema.Properties[prop]
				tag := prop
				if !st.Schema.IsRequired(prop) {
					tag += ",omitempty"
				}
				if child.Description != "" {
					g.Comment(oneLine(child.Description))
				}
				g.Id(naming.Unique(naming.GoExported(prop), fieldNames)).
					Add(r.typeOf(child, prop, naming.SingularTypeName(prop))).
					Tag(map[string]string{"json": tag})
			}
		})
	}
	return f
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func renderEndpoints(methods []*method, pkg string) *jen.File {
	f := newFile(pkg)
	for _, m := range methods {
		ep := m.Endpoint
		f.Comment(fmt.Sprintf("%s calls %s %s.", m.Name, ep.Method, ep.Path))
		if d := oneLine(ep.Description); d != "" {
			f.Comment(d)
		}

		params := []jen.Code{jen.Id("ctx").Qual("context", "Context")}
		for _, p := range m.Params {
			if p.Optional {
				params = append(params, jen.Id(p.Name).Op("*").Add(p.Type))
			} else {
				params = append(params, jen.Id(p.Name).Add(p.Type))
			}
		}
		bodyArg := jen.Nil()
		if m.Body != nil {
			params = append(params, jen.Id("body").Add(m.Body))
			bodyArg = jen.Id("body")
		}

		result := m.Result
		if m.Pointer {
			result = jen.Op("*").Add(m.Result.Clone())
		}

		f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id(m.Name).Params(params...).Params(result, jen.Error()).BlockFunc(func(g *jen.Group) {
			g.Id("path").Op(":=").Lit(ep.Path)
			for _, p := range m.Params {
				if p.In == spec.InPath {
					g.Id("path").Op("=").Qual("strings", "ReplaceAll").Call(
						jen.Id("path"), jen.Lit("{"+p.Wire+"}"),
						jen.Qual("net/url", "PathEscape").Call(jen.Qual("fmt", "Sprint").Call(jen.Id(p.Name))),
					)
				}
			}
			g.Id("query").Op(":=").Qual("net/url", "Values").Values()
			g.Id("header").Op(":=").Qual("net/http", "Header").Values()
			for _, p := range m.Params {
				var target *jen.Statement
				switch p.In {
				case spec.InQuery:
					target = jen.Id("query")
				case spec.InHeader:
					target = jen.Id("header")
				default:
					continue
				}
				if p.Optional {
					g.If(jen.Id(p.Name).Op("!=").Nil()).Block(
						target.Dot("Set").Call(jen.Lit(p.Wire), jen.Qual("fmt", "Sprint").Call(jen.Op("*").Id(p.Name))),
					)
				} else {
					g.Add(target.Dot("Set").Call(jen.Lit(p.Wire), jen.Qual("fmt", "Sprint").Call(jen.Id(p.Name))))
				}
			}
			call := jen.Id("c").Dot("do").Call(
				jen.Id("ctx"), jen.Lit(string(ep.Method)), jen.Id("path"), jen.Id("query"), jen.Id("header"), bodyArg, jen.Op("&").Id("out"),
			)
			g.Var().Id("out").Add(m.Result.Clone())
			if m.Pointer {
				g.If(jen.Err().Op(":=").Add(call), jen.Err().Op("!=").Nil()).Block(
					jen.Return(jen.Nil(), jen.Err()),
				)
				g.Return(jen.Op("&").Id("out"), jen.Nil())
				return
			}
			g.Err().Op(":=").Add(call)
			g.Return(jen.Id("out"), jen.Err())
		})
	}
	return f
}
