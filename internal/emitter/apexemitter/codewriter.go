package apexemitter

import (
	"fmt"
	"strings"
)

const indentUnit = "    "

// codeWriter accumulates indented Apex source one line at a time.
type codeWriter struct {
	b      strings.Builder
	indent int
}

func (w *codeWriter) line(format string, args ...any) {
	if format == "" {
		w.b.WriteByte('\n')
		return
	}
	w.b.WriteString(strings.Repeat(indentUnit, w.indent))
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	w.b.WriteString(format)
	w.b.WriteByte('\n')
}

// open writes "<header> {" and indents.
func (w *codeWriter) open(format string, args ...any) {
	w.line(format+" {", args...)
	w.indent++
}

// close dedents and writes "}".
func (w *codeWriter) close() {
	w.indent--
	w.line("}")
}

// doc writes an ApexDoc block. Empty lines in body are dropped.
func (w *codeWriter) doc(lines ...string) {
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return
	}
	w.line("/**")
	for _, l := range kept {
		w.line(" * %s", l)
	}
	w.line(" */")
}

func (w *codeWriter) String() string {
	return w.b.String()
}

var apexEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// apexString renders s as a single-quoted Apex string literal.
func apexString(s string) string {
	return "'" + apexEscaper.Replace(s) + "'"
}

// commentText flattens s into one line safe to place inside a block comment.
func commentText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "*/", "* /")
}
