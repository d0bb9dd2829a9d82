package apexemitter

import (
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
)

// sampleArg is the literal a generated test passes for an argument.
func sampleArg(t string, qualify func(string) string) string {
	switch t {
	case "String":
		return "'test'"
	case "Integer":
		return "1"
	case "Long":
		return "1L"
	case "Double":
		return "1.0"
	case "Boolean":
		return "true"
	}
	return cannedValue(t, qualify)
}

// cannedJSON is the callout stub body that decodes into t.
func cannedJSON(ms *methodSpec) string {
	if ms.RawResponse {
		return "{}"
	}
	t := ms.ReturnType
	switch {
	case strings.HasPrefix(t, "List<"):
		return "[]"
	case t == "String":
		return `"mock"`
	case t == "Integer", t == "Long", t == "Double":
		return "0"
	case t == "Boolean":
		return "false"
	case t == "Date":
		return `"2000-01-01"`
	case t == "Datetime":
		return `"2000-01-01T00:00:00Z"`
	}
	return "{}"
}

func sampleCall(ms *methodSpec, q func(string) string) string {
	ps := ms.allParams()
	args := make([]string, len(ps))
	for i, p := range ps {
		args[i] = sampleArg(p.Type, q)
	}
	return strings.Join(args, ", ")
}

func sampleBulkCall(ms *methodSpec, q func(string) string) string {
	args := make([]string, 0, len(ms.Params)+1)
	for _, p := range ms.Params {
		args = append(args, sampleArg(p.Type, q))
	}
	body := q(ms.Body.Type)
	args = append(args, "new List<"+body+">{"+sampleArg(ms.Body.Type, q)+"}")
	return strings.Join(args, ", ")
}

func (m *model) renderTest() string {
	q := m.qualifier()
	svc := m.names.Service
	useMock := m.opts.GenerateMockService
	w := &codeWriter{}
	if m.opts.IncludeComments {
		if useMock {
			w.doc("@description Tests for " + svc + " driven by " + m.names.Mock + ".")
		} else {
			w.doc("@description Tests for " + svc + " driven by an HttpCalloutMock stub.")
		}
	}
	w.line("@IsTest")
	w.open("private class %s", m.names.Test)

	w.line("@IsTest")
	w.open("static void usesNamedCredential()")
	w.line("System.assertEquals(%s, %s.NAMED_CREDENTIAL);", apexString(m.names.Base), svc)
	w.close()

	testNames := map[string]struct{}{}
	naming.Unique("usesNamedCredential", testNames)
	naming.Unique("queuedCallsRunInOrder", testNames)

	newService := func(w *codeWriter, fail bool, ms *methodSpec) {
		if useMock {
			if fail {
				w.line("%s service = new %s(true);", svc, m.names.Mock)
			} else {
				w.line("%s service = new %s();", svc, m.names.Mock)
			}
			return
		}
		if fail {
			w.line("Test.setMock(HttpCalloutMock.class, new CalloutStub(400, %s));", apexString(`{"error":"failure"}`))
		} else {
			w.line("Test.setMock(HttpCalloutMock.class, new CalloutStub(200, %s));", apexString(cannedJSON(ms)))
		}
		w.line("%s service = new %s();", svc, svc)
	}

	for _, ms := range m.methods {
		w.line("")
		w.line("@IsTest")
		w.open("static void %s()", naming.Unique(ms.Name+"ReturnsResult", testNames))
		newService(w, false, ms)
		w.line("Test.startTest();")
		w.line("%s result = service.%s(%s);", q(ms.ReturnType), ms.Name, sampleCall(ms, q))
		w.line("Test.stopTest();")
		w.line("System.assertNotEquals(null, result, %s);", apexString(ms.Name+" should return a result"))
		w.close()

		w.line("")
		w.line("@IsTest")
		w.open("static void %s()", naming.Unique(ms.Name+"SurfacesFailure", testNames))
		newService(w, true, ms)
		w.line("Boolean failed = false;")
		w.line("Test.startTest();")
		w.open("try")
		w.line("service.%s(%s);", ms.Name, sampleCall(ms, q))
		w.indent--
		w.open("} catch (%s.ServiceException e)", svc)
		w.line("failed = true;")
		w.close()
		w.line("Test.stopTest();")
		w.line("System.assert(failed, %s);", apexString(ms.Name+" should throw ServiceException"))
		w.close()

		if m.opts.UseBulkAPI && ms.BulkName != "" {
			w.line("")
			w.line("@IsTest")
			w.open("static void %s()", naming.Unique(ms.BulkName+"ReturnsOnePerBody", testNames))
			newService(w, false, ms)
			w.line("Test.startTest();")
			w.line("List<%s> results = service.%s(%s);", q(ms.ReturnType), ms.BulkName, sampleBulkCall(ms, q))
			w.line("Test.stopTest();")
			w.line("System.assertEquals(1, results.size());")
			w.close()
		}
	}

	if m.opts.AsyncProcessing && len(m.methods) > 0 {
		m.renderAsyncTest(w, q)
	}

	if !useMock {
		w.line("")
		w.open("private class CalloutStub implements HttpCalloutMock")
		w.line("private Integer status;")
		w.line("private String body;")
		w.line("")
		w.open("CalloutStub(Integer status, String body)")
		w.line("this.status = status;")
		w.line("this.body = body;")
		w.close()
		w.line("")
		w.open("public HttpResponse respond(HttpRequest request)")
		w.line("HttpResponse response = new HttpResponse();")
		w.line("response.setStatusCode(status);")
		w.line("response.setBody(body);")
		w.line("return response;")
		w.close()
		w.close()
	}
	w.close()
	return w.String()
}

func (m *model) renderAsyncTest(w *codeWriter, q func(string) string) {
	w.line("")
	w.line("@IsTest")
	w.open("static void queuedCallsRunInOrder()")
	if m.opts.GenerateMockService {
		w.line("%s service = new %s();", m.names.Mock, m.names.Mock)
		expected := make([]string, 0, len(m.methods)+1)
		for _, ms := range m.methods {
			w.line("service.%s(%s);", ms.AsyncName, sampleCall(ms, q))
			expected = append(expected, apexString(ms.AsyncName))
		}
		expected = append(expected, apexString("flushAsync"))
		w.line("Test.startTest();")
		w.line("service.flushAsync();")
		w.line("Test.stopTest();")
		w.line("System.assertEquals(new List<String>{%s}, service.calls);", strings.Join(expected, ", "))
		w.close()
		return
	}
	first := m.methods[0]
	w.line("Test.setMock(HttpCalloutMock.class, new CalloutStub(200, %s));", apexString(cannedJSON(first)))
	w.line("%s service = new %s();", m.names.Service, m.names.Service)
	w.line("service.%s(%s);", first.AsyncName, sampleCall(first, q))
	w.line("Test.startTest();")
	w.line("Id jobId = service.flushAsync();")
	w.line("Test.stopTest();")
	w.line("System.assertNotEquals(null, jobId, 'flushAsync should enqueue a job');")
	w.line("System.assertEquals(null, service.flushAsync(), 'the queue should be empty after a flush');")
	w.close()
}
