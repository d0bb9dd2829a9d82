package apexemitter

import (
	"regexp"
	"strings"
)

var identToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// qualifier returns a function that prefixes wrapper names inside a type
// expression with the service class, for use outside the service class.
func (m *model) qualifier() func(string) string {
	wrappers := m.reg.wrapperNames()
	prefix := m.names.Service + "."
	return func(t string) string {
		return identToken.ReplaceAllStringFunc(t, func(tok string) string {
			if wrappers[tok] {
				return prefix + tok
			}
			return tok
		})
	}
}

// cannedValue is the deterministic value a mock returns for an Apex type.
func cannedValue(t string, qualify func(string) string) string {
	switch t {
	case "String":
		return "'mock'"
	case "Integer":
		return "0"
	case "Long":
		return "0L"
	case "Double":
		return "0.0"
	case "Boolean":
		return "false"
	case "Date":
		return "Date.newInstance(2000, 1, 1)"
	case "Datetime":
		return "Datetime.newInstanceGmt(2000, 1, 1)"
	case "Object", "Map<String, Object>":
		return "new Map<String, Object>()"
	}
	return "new " + qualify(t) + "()"
}

func (m *model) mockReturn(ms *methodSpec, qualify func(string) string) string {
	if ms.RawResponse {
		return "'{}'"
	}
	return cannedValue(ms.ReturnType, qualify)
}

func (m *model) renderMock() string {
	q := m.qualifier()
	svc := m.names.Service
	w := &codeWriter{}
	if m.opts.IncludeComments {
		w.doc("@description In-memory stand-in for "+svc+". Every call is recorded in calls;",
			"with shouldFail set each call throws "+svc+".ServiceException instead of returning canned data.")
	}
	w.line("@IsTest")
	w.open("public with sharing class %s extends %s", m.names.Mock, svc)
	w.line("public Boolean shouldFail;")
	w.line("public List<String> calls = new List<String>();")
	w.line("")
	w.open("public %s()", m.names.Mock)
	w.line("this(false);")
	w.close()
	w.line("")
	w.open("public %s(Boolean shouldFail)", m.names.Mock)
	w.line("this.shouldFail = shouldFail;")
	w.close()

	for _, ms := range m.methods {
		w.line("")
		w.open("public override %s %s(%s)", q(ms.ReturnType), ms.Name, qualifiedArgs(ms.allParams(), q))
		w.line("recordCall(%s);", apexString(ms.Name))
		w.line("return %s;", m.mockReturn(ms, q))
		w.close()
	}
	if m.opts.UseBulkAPI {
		for _, ms := range m.methods {
			if ms.BulkName == "" {
				continue
			}
			ret := q(ms.ReturnType)
			w.line("")
			w.open("public override List<%s> %s(%s)", ret, ms.BulkName, bulkSignature(ms, q))
			w.line("recordCall(%s);", apexString(ms.BulkName))
			w.line("List<%s> results = new List<%s>();", ret, ret)
			w.open("for (%s item : bodies)", q(ms.Body.Type))
			w.line("results.add(%s);", m.mockReturn(ms, q))
			w.close()
			w.line("return results;")
			w.close()
		}
	}
	if m.opts.AsyncProcessing {
		for _, ms := range m.methods {
			w.line("")
			w.open("public override void %s(%s)", ms.AsyncName, qualifiedArgs(ms.allParams(), q))
			w.line("recordCall(%s);", apexString(ms.AsyncName))
			w.close()
		}
		w.line("")
		w.open("public override Id flushAsync()")
		w.line("recordCall('flushAsync');")
		w.line("return null;")
		w.close()
		w.line("")
		w.open("public override Object dispatch(%s.PendingCall call)", svc)
		w.line("recordCall('dispatch');")
		w.line("return null;")
		w.close()
	}

	w.line("")
	w.open("private void recordCall(String method)")
	w.line("calls.add(method);")
	w.open("if (shouldFail)")
	w.line("throw new %s.ServiceException('Mock failure in ' + method);", svc)
	w.close()
	w.close()
	w.close()
	return w.String()
}

func qualifiedArgs(ps []param, q func(string) string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = q(p.Type) + " " + p.Name
	}
	return strings.Join(parts, ", ")
}
