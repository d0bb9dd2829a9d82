package apexemitter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

// classNames are the identifiers shared by every artifact of one connection.
type classNames struct {
	// Base names the named credential and the external service.
	Base    string
	Service string
	Test    string
	Mock    string
}

func deriveClassNames(conn *spec.Connection) (classNames, error) {
	base, err := naming.ApexClassName(conn.Name)
	if err != nil {
		return classNames{}, err
	}
	prefix := base
	if trimmed := strings.TrimSuffix(base, serviceSuffix); trimmed != "" {
		prefix = trimmed
	}
	prefix = naming.Truncate(prefix, maxClassPrefix)
	return classNames{
		Base:    base,
		Service: prefix + serviceSuffix,
		Test:    prefix + serviceSuffix + "Test",
		Mock:    prefix + serviceSuffix + "Mock",
	}, nil
}

// model is the rendering input shared by the service, mock and test classes.
type model struct {
	conn    *spec.Connection
	names   classNames
	opts    GenerationOptions
	reg     *typeRegistry
	methods []*methodSpec
}

func newModel(conn *spec.Connection, opts GenerationOptions) (*model, error) {
	names, err := deriveClassNames(conn)
	if err != nil {
		return nil, err
	}
	reg := newTypeRegistry(names.Service, names.Test, names.Mock)
	return &model{
		conn:    conn,
		names:   names,
		opts:    opts,
		reg:     reg,
		methods: buildMethods(conn, reg, opts),
	}, nil
}

func (m *model) advanced() bool {
	return m.opts.ErrorHandling == ErrorHandlingAdvanced
}

func (m *model) apiKey() *spec.APIKeyConfig {
	if m.conn.AuthenticationType != spec.AuthAPIKey {
		return nil
	}
	cfg := spec.APIKeyConfig{HeaderName: "X-API-Key", Location: spec.KeyInHeader}
	if m.conn.AuthConfig != nil && m.conn.AuthConfig.APIKey != nil {
		if h := strings.TrimSpace(m.conn.AuthConfig.APIKey.HeaderName); h != "" {
			cfg.HeaderName = h
		}
		if m.conn.AuthConfig.APIKey.Location == spec.KeyInQuery {
			cfg.Location = spec.KeyInQuery
		}
	}
	return &cfg
}

func (m *model) timeout() int {
	if m.conn.Timeout == 0 {
		return spec.DefaultTimeout
	}
	return spec.ClampTimeout(m.conn.Timeout)
}

func (m *model) renderService() string {
	w := &codeWriter{}
	if m.opts.IncludeComments {
		w.doc(
			"@description Callout client for the "+commentText(m.conn.Name)+" connection.",
			commentText(m.conn.Description),
			"Requests go through the "+m.names.Base+" named credential.",
			"Generated by connectforce; regenerate instead of editing.",
		)
	}
	w.open("public virtual with sharing class %s", m.names.Service)
	m.renderConstants(w)

	for _, ms := range m.methods {
		w.line("")
		m.renderMethod(w, ms)
	}
	if m.opts.UseBulkAPI {
		for _, ms := range m.methods {
			if ms.BulkName == "" {
				continue
			}
			w.line("")
			m.renderBulk(w, ms)
		}
	}
	if m.opts.AsyncProcessing {
		m.renderAsync(w)
	}
	m.renderHelpers(w)
	m.renderException(w)
	if m.opts.AsyncProcessing {
		m.renderAsyncTypes(w)
	}
	for _, wr := range m.reg.ordered {
		w.line("")
		m.renderWrapper(w, wr)
	}
	w.close()
	return w.String()
}

func (m *model) renderConstants(w *codeWriter) {
	w.line("public static final String NAMED_CREDENTIAL = %s;", apexString(m.names.Base))
	w.line("private static final Integer TIMEOUT_MS = %d;", m.timeout())
	if m.advanced() {
		rc := m.conn.RetryConfig
		retryOn := append([]int(nil), rc.RetryOn...)
		sort.Ints(retryOn)
		codes := make([]string, len(retryOn))
		for i, c := range retryOn {
			codes[i] = strconv.Itoa(c)
		}
		maxRetries := rc.MaxRetries
		if maxRetries < 0 {
			maxRetries = 0
		}
		w.line("private static final Integer MAX_RETRIES = %d;", maxRetries)
		if len(codes) == 0 {
			w.line("private static final Set<Integer> RETRY_ON = new Set<Integer>();")
		} else {
			w.line("private static final Set<Integer> RETRY_ON = new Set<Integer>{%s};", strings.Join(codes, ", "))
		}
	}
	writeStringMap(w, "DEFAULT_HEADERS", sortedPairs(m.conn.Headers))
	aliases, nested := m.reg.renameTables()
	writeNestedMap(w, "FIELD_ALIASES", aliases)
	writeNestedMap(w, "NESTED_TYPES", nested)

	if m.apiKey() != nil {
		w.line("")
		w.line("public String apiKey { get; set; }")
	}
	if m.opts.AsyncProcessing {
		w.line("")
		w.line("private List<PendingCall> pendingCalls = new List<PendingCall>();")
	}
}

func sortedPairs(in map[string]string) [][2]string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, in[k]})
	}
	return out
}

func writeStringMap(w *codeWriter, name string, pairs [][2]string) {
	if len(pairs) == 0 {
		w.line("private static final Map<String, String> %s = new Map<String, String>();", name)
		return
	}
	w.line("private static final Map<String, String> %s = new Map<String, String>{", name)
	w.indent++
	for i, p := range pairs {
		sep := ","
		if i == len(pairs)-1 {
			sep = ""
		}
		w.line("%s => %s%s", apexString(p[0]), apexString(p[1]), sep)
	}
	w.indent--
	w.line("};")
}

// writeNestedMap renders a per-wrapper string map. Each inner map sits on one
// line so a wrapper's table reads as a unit.
func writeNestedMap(w *codeWriter, name string, tables []wrapperPairs) {
	const typ = "Map<String, Map<String, String>>"
	if len(tables) == 0 {
		w.line("private static final %s %s = new %s();", typ, name, typ)
		return
	}
	w.line("private static final %s %s = new %s{", typ, name, typ)
	w.indent++
	for i, t := range tables {
		pairs := make([]string, len(t.Pairs))
		for j, p := range t.Pairs {
			pairs[j] = apexString(p[0]) + " => " + apexString(p[1])
		}
		sep := ","
		if i == len(tables)-1 {
			sep = ""
		}
		w.line("%s => new Map<String, String>{%s}%s", apexString(t.Wrapper), strings.Join(pairs, ", "), sep)
	}
	w.indent--
	w.line("};")
}

// wrapperArg is the type name argument passed to encode and decode.
func (m *model) wrapperArg(t string) string {
	if name := m.reg.renamedWrapper(t); name != "" {
		return apexString(name)
	}
	return "null"
}

func (m *model) methodDoc(w *codeWriter, ms *methodSpec) {
	if !m.opts.IncludeComments {
		return
	}
	ep := ms.Endpoint
	lines := []string{"@description " + commentText(firstNonEmpty(ep.Description, naming.Humanize(ep.Name), ep.Name)), string(ep.Method) + " " + commentText(ep.Path)}
	for _, p := range ms.allParams() {
		lines = append(lines, "@param "+p.Name+" "+commentText(firstNonEmpty(p.Description, paramDocFallback(p))))
	}
	if ms.RawResponse {
		lines = append(lines, "@return raw response body")
	} else {
		lines = append(lines, "@return decoded "+ms.ReturnType)
	}
	w.doc(lines...)
}

func paramDocFallback(p param) string {
	if p.In == "" {
		return "request body"
	}
	return fmt.Sprintf("%s parameter %s", p.In, p.Wire)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (m *model) renderMethod(w *codeWriter, ms *methodSpec) {
	m.methodDoc(w, ms)
	w.open("public virtual %s %s(%s)", ms.ReturnType, ms.Name, ms.argList())
	w.line("String path = %s;", apexString(ms.Endpoint.Path))
	for _, p := range ms.Params {
		if p.In == spec.InPath {
			w.line("path = path.replace(%s, EncodingUtil.urlEncode(String.valueOf(%s), 'UTF-8'));", apexString("{"+p.Wire+"}"), p.Name)
		}
	}
	w.line("List<String> query = new List<String>();")
	for _, p := range ms.Params {
		if p.In != spec.InQuery {
			continue
		}
		w.open("if (%s != null)", p.Name)
		w.line("query.add(%s + EncodingUtil.urlEncode(String.valueOf(%s), 'UTF-8'));", apexString(url.QueryEscape(p.Wire)+"="), p.Name)
		w.close()
	}
	w.line("HttpRequest request = newRequest(%s, path, query);", apexString(string(ms.Endpoint.Method)))
	for _, p := range ms.Params {
		if p.In != spec.InHeader {
			continue
		}
		w.open("if (%s != null)", p.Name)
		w.line("request.setHeader(%s, String.valueOf(%s));", apexString(p.Wire), p.Name)
		w.close()
	}
	for _, k := range sortedKeys(ms.Endpoint.Headers) {
		w.line("request.setHeader(%s, %s);", apexString(k), apexString(ms.Endpoint.Headers[k]))
	}
	if ms.Body != nil {
		w.line("request.setBody(encode(%s, %s));", ms.Body.Name, m.wrapperArg(ms.Body.Type))
	}
	w.line("HttpResponse response = send(request);")
	switch {
	case ms.RawResponse:
		w.line("return response.getBody();")
	case ms.ReturnType == "Object":
		w.line("return String.isBlank(response.getBody()) ? null : JSON.deserializeUntyped(response.getBody());")
	default:
		w.line("return (%s) decode(response.getBody(), %s.class, %s);", ms.ReturnType, ms.ReturnType, m.wrapperArg(ms.ReturnType))
	}
	w.close()
}

func sortedKeys(in map[string]string) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// bulkSignature is the formal parameter list of a bulk variant: the
// non-body parameters followed by the list of bodies.
func bulkSignature(ms *methodSpec, qualify func(string) string) string {
	parts := make([]string, 0, len(ms.Params)+1)
	for _, p := range ms.Params {
		parts = append(parts, p.Type+" "+p.Name)
	}
	parts = append(parts, "List<"+qualify(ms.Body.Type)+"> bodies")
	return strings.Join(parts, ", ")
}

func bulkCallArgs(ms *methodSpec, body string) string {
	names := make([]string, 0, len(ms.Params)+1)
	for _, p := range ms.Params {
		names = append(names, p.Name)
	}
	return strings.Join(append(names, body), ", ")
}

func (m *model) renderBulk(w *codeWriter, ms *methodSpec) {
	if m.opts.IncludeComments {
		w.doc("@description Calls "+ms.Name+" once per body, in list order.",
			"Each body is a separate callout and counts against the transaction callout limit.")
	}
	w.open("public virtual List<%s> %s(%s)", ms.ReturnType, ms.BulkName, bulkSignature(ms, identity))
	w.line("List<%s> results = new List<%s>();", ms.ReturnType, ms.ReturnType)
	w.open("for (%s item : bodies)", ms.Body.Type)
	w.line("results.add(%s(%s));", ms.Name, bulkCallArgs(ms, "item"))
	w.close()
	w.line("return results;")
	w.close()
}

func identity(s string) string { return s }

func argsLiteral(ms *methodSpec) string {
	if len(ms.allParams()) == 0 {
		return "new List<Object>()"
	}
	return "new List<Object>{" + ms.callArgs() + "}"
}

func (m *model) renderAsync(w *codeWriter) {
	for _, ms := range m.methods {
		w.line("")
		if m.opts.IncludeComments {
			w.doc("@description Queues "+ms.Name+"; the call runs when flushAsync is invoked.")
		}
		w.open("public virtual void %s(%s)", ms.AsyncName, ms.argList())
		w.line("pendingCalls.add(new PendingCall(%s, %s));", apexString(ms.Name), argsLiteral(ms))
		w.close()
	}

	w.line("")
	if m.opts.IncludeComments {
		w.doc("@description Runs every queued call in a single Queueable job, in the order queued.",
			"@return the job id, or null when nothing is queued")
	}
	w.open("public virtual Id flushAsync()")
	w.open("if (pendingCalls.isEmpty())")
	w.line("return null;")
	w.close()
	w.line("Id jobId = System.enqueueJob(new AsyncJob(this, pendingCalls));")
	w.line("pendingCalls = new List<PendingCall>();")
	w.line("return jobId;")
	w.close()

	w.line("")
	w.open("public virtual Object dispatch(PendingCall call)")
	if len(m.methods) > 0 {
		w.open("switch on call.method")
		for _, ms := range m.methods {
			w.open("when %s", apexString(ms.Name))
			args := make([]string, 0, len(ms.allParams()))
			for i, p := range ms.allParams() {
				args = append(args, fmt.Sprintf("(%s) call.args[%d]", p.Type, i))
			}
			w.line("return %s(%s);", ms.Name, strings.Join(args, ", "))
			w.close()
		}
		w.close()
	}
	w.line("throw new ServiceException('Unknown queued method ' + call.method);")
	w.close()
}

func (m *model) renderHelpers(w *codeWriter) {
	w.line("")
	w.open("protected virtual HttpRequest newRequest(String method, String path, List<String> query)")
	key := m.apiKey()
	if key != nil && key.Location == spec.KeyInQuery {
		w.open("if (apiKey != null)")
		w.line("query.add(%s + EncodingUtil.urlEncode(apiKey, 'UTF-8'));", apexString(url.QueryEscape(key.HeaderName)+"="))
		w.close()
	}
	w.line("String endpoint = 'callout:' + NAMED_CREDENTIAL + path;")
	w.open("if (!query.isEmpty())")
	w.line("endpoint += '?' + String.join(query, '&');")
	w.close()
	w.line("HttpRequest request = new HttpRequest();")
	w.line("request.setEndpoint(endpoint);")
	w.open("if (method == 'PATCH')")
	w.line("request.setMethod('POST');")
	w.line("request.setHeader('X-HTTP-Method-Override', 'PATCH');")
	w.indent--
	w.open("} else")
	w.line("request.setMethod(method);")
	w.close()
	w.line("request.setTimeout(TIMEOUT_MS);")
	w.open("for (String name : DEFAULT_HEADERS.keySet())")
	w.line("request.setHeader(name, DEFAULT_HEADERS.get(name));")
	w.close()
	if key != nil && key.Location == spec.KeyInHeader {
		w.open("if (apiKey != null)")
		w.line("request.setHeader(%s, apiKey);", apexString(key.HeaderName))
		w.close()
	}
	w.line("return request;")
	w.close()

	w.line("")
	w.open("protected virtual HttpResponse send(HttpRequest request)")
	w.line("HttpResponse response = new Http().send(request);")
	if m.advanced() {
		w.line("Integer attempt = 0;")
		w.open("while (RETRY_ON.contains(response.getStatusCode()) && attempt < MAX_RETRIES)")
		w.line("attempt++;")
		w.line("response = new Http().send(request);")
		w.close()
	}
	w.line("Integer status = response.getStatusCode();")
	w.open("if (status < 200 || status > 299)")
	if m.advanced() {
		w.line("ServiceException failure = new ServiceException(request.getMethod() + ' ' + request.getEndpoint() + ' returned ' + status + ' after ' + (attempt + 1) + ' attempt(s)');")
		w.line("failure.statusCode = status;")
		w.line("failure.responseBody = response.getBody();")
		w.line("throw failure;")
	} else {
		w.line("throw new ServiceException(request.getMethod() + ' ' + request.getEndpoint() + ' returned ' + status);")
	}
	w.close()
	w.line("return response;")
	w.close()

	w.line("")
	w.open("protected String encode(Object value, String typeName)")
	w.line("String json = JSON.serialize(value, true);")
	w.open("if (typeName == null)")
	w.line("return json;")
	w.close()
	w.line("return JSON.serialize(rename(JSON.deserializeUntyped(json), typeName, true));")
	w.close()

	w.line("")
	w.open("protected Object decode(String body, System.Type apexType, String typeName)")
	w.open("if (String.isBlank(body))")
	w.line("return null;")
	w.close()
	w.open("if (typeName == null)")
	w.line("return JSON.deserialize(body, apexType);")
	w.close()
	w.line("return JSON.deserialize(JSON.serialize(rename(JSON.deserializeUntyped(body), typeName, false)), apexType);")
	w.close()

	// rename walks an untyped JSON tree and swaps keys between JSON names and
	// Apex field names using the tables of the wrapper at each level only.
	w.line("")
	w.open("private static Object rename(Object node, String typeName, Boolean outbound)")
	w.open("if (node instanceof List<Object>)")
	w.line("List<Object> items = new List<Object>();")
	w.open("for (Object item : (List<Object>) node)")
	w.line("items.add(rename(item, typeName, outbound));")
	w.close()
	w.line("return items;")
	w.close()
	w.open("if (typeName == null || !(node instanceof Map<String, Object>))")
	w.line("return node;")
	w.close()
	w.line("Map<String, String> aliases = FIELD_ALIASES.containsKey(typeName) ? FIELD_ALIASES.get(typeName) : new Map<String, String>();")
	w.line("Map<String, String> nested = NESTED_TYPES.containsKey(typeName) ? NESTED_TYPES.get(typeName) : new Map<String, String>();")
	w.line("Map<String, String> inbound = new Map<String, String>();")
	w.open("for (String fieldName : aliases.keySet())")
	w.line("inbound.put(aliases.get(fieldName), fieldName);")
	w.close()
	w.line("Map<String, Object> source = (Map<String, Object>) node;")
	w.line("Map<String, Object> result = new Map<String, Object>();")
	w.open("for (String key : source.keySet())")
	w.line("String fieldName = key;")
	w.line("String target = key;")
	w.open("if (outbound && aliases.containsKey(key))")
	w.line("target = aliases.get(key);")
	w.indent--
	w.open("} else if (!outbound && inbound.containsKey(key))")
	w.line("fieldName = inbound.get(key);")
	w.line("target = fieldName;")
	w.close()
	w.line("result.put(target, rename(source.get(key), nested.get(fieldName), outbound));")
	w.close()
	w.line("return result;")
	w.close()
}

func (m *model) renderException(w *codeWriter) {
	w.line("")
	if !m.advanced() {
		w.line("public class ServiceException extends Exception {}")
		return
	}
	w.open("public class ServiceException extends Exception")
	w.line("public Integer statusCode;")
	w.line("public String responseBody;")
	w.close()
}

func (m *model) renderAsyncTypes(w *codeWriter) {
	w.line("")
	w.open("public class PendingCall")
	w.line("public String method;")
	w.line("public List<Object> args;")
	w.line("")
	w.open("public PendingCall(String method, List<Object> args)")
	w.line("this.method = method;")
	w.line("this.args = args;")
	w.close()
	w.close()

	w.line("")
	w.open("public class AsyncJob implements Queueable, Database.AllowsCallouts")
	w.line("private %s service;", m.names.Service)
	w.line("private List<PendingCall> calls;")
	w.line("")
	w.open("public AsyncJob(%s service, List<PendingCall> calls)", m.names.Service)
	w.line("this.service = service;")
	w.line("this.calls = calls;")
	w.close()
	w.line("")
	w.open("public void execute(QueueableContext context)")
	w.open("for (PendingCall call : calls)")
	w.line("service.dispatch(call);")
	w.close()
	w.close()
	w.close()
}

func (m *model) renderWrapper(w *codeWriter, wr *wrapper) {
	if m.opts.IncludeComments && wr.Description != "" {
		w.doc("@description " + commentText(wr.Description))
	}
	w.open("public class %s", wr.Name)
	for _, f := range wr.Fields {
		if m.opts.IncludeComments && f.Description != "" {
			w.doc(commentText(f.Description))
		}
		switch {
		case f.Required && f.Name != f.JSONName:
			w.line("public %s %s; // required, JSON name %s", f.Type, f.Name, f.JSONName)
		case f.Required:
			w.line("public %s %s; // required", f.Type, f.Name)
		case f.Name != f.JSONName:
			w.line("public %s %s; // JSON name %s", f.Type, f.Name, f.JSONName)
		default:
			w.line("public %s %s;", f.Type, f.Name)
		}
	}
	w.close()
}
