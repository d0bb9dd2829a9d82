// Package naming derives target-language identifiers from free-form names.
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gobuffalo/flect"
	"github.com/stoewer/go-strcase"
)

// MaxApexIdentifier is the longest class name Apex accepts.
const MaxApexIdentifier = 40

var ErrEmptyIdentifier = errors.New("identifier is empty after sanitization")

// Convention selects the casing of generated method names.
type Convention string

const (
	CamelCase  Convention = "camelCase"
	PascalCase Convention = "PascalCase"
)

// ParseConvention accepts the convention names case-insensitively.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "camelcase", "camel":
		return CamelCase, nil
	case "pascalcase", "pascal":
		return PascalCase, nil
	}
	return "", fmt.Errorf("unknown naming convention %q (use camelCase or PascalCase)", s)
}

// ApexClassName strips every non-alphanumeric character from name, prefixes
// "C" when the result starts with a digit, and truncates to 40 characters.
func ApexClassName(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyIdentifier, name)
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "C" + s
	}
	return Truncate(s, MaxApexIdentifier), nil
}

// Truncate cuts an ASCII identifier to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// words turns any punctuation into the space delimiter strcase splits on.
func words(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(s, " "))
}

// MethodName renders an endpoint name as an Apex method identifier in the
// requested convention. Reserved words get an "_x" suffix.
func MethodName(name string, conv Convention) string {
	w := words(name)
	if w == "" {
		w = "call"
	}
	var s string
	if conv == PascalCase {
		s = strcase.UpperCamelCase(w)
	} else {
		s = strcase.LowerCamelCase(w)
	}
	if s[0] >= '0' && s[0] <= '9' {
		if conv == PascalCase {
			s = "Op" + s
		} else {
			s = "op" + s
		}
	}
	return escapeReserved(s)
}

// TypeName renders s as an UpperCamelCase type name starting with a letter.
func TypeName(s string) string {
	w := words(s)
	if w == "" {
		return "Item"
	}
	t := strcase.UpperCamelCase(w)
	if t[0] >= '0' && t[0] <= '9' {
		t = "T" + t
	}
	return t
}

// SingularTypeName is TypeName of the singular form, used for array items.
func SingularTypeName(s string) string {
	return TypeName(flect.Singularize(words(s)))
}

// Humanize renders an identifier-ish name as words for doc comments.
func Humanize(s string) string {
	w := words(s)
	if w == "" {
		return ""
	}
	return flect.Humanize(w)
}

var apexIdentRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// IsApexIdentifier reports whether s is usable verbatim as an Apex field or
// variable name.
func IsApexIdentifier(s string) bool {
	return apexIdentRe.MatchString(s) &&
		!strings.Contains(s, "__") &&
		!strings.HasSuffix(s, "_") &&
		!IsApexReserved(s) &&
		len(s) <= 255
}

// FieldName renders a JSON property name as an Apex field. The result equals
// the input whenever the input is already a valid identifier.
func FieldName(jsonName string) string {
	if IsApexIdentifier(jsonName) {
		return jsonName
	}
	w := words(jsonName)
	if w == "" {
		return "field"
	}
	s := strcase.LowerCamelCase(w)
	if s[0] >= '0' && s[0] <= '9' {
		s = "f" + s
	}
	return escapeReserved(s)
}

// ParamName renders a parameter name as an Apex argument identifier.
func ParamName(name string) string {
	w := words(name)
	if w == "" {
		return "param"
	}
	s := strcase.LowerCamelCase(w)
	if s[0] >= '0' && s[0] <= '9' {
		s = "p" + s
	}
	return escapeReserved(s)
}

func escapeReserved(s string) string {
	if IsApexReserved(s) {
		return s + "_x"
	}
	return s
}

// IsApexReserved reports whether s is an Apex reserved word. Apex
// identifiers are case-insensitive.
func IsApexReserved(s string) bool {
	_, ok := apexReserved[strings.ToLower(s)]
	return ok
}

var apexReserved = toSet(`abstract activate and any array as asc autonomous begin bigdecimal blob boolean
break bulk by byte case cast catch char class collect commit const continue currency date datetime decimal
default delete desc do double else end enum exception exit export extends false final finally float for from
global goto group having hint if implements import in inner insert instanceof integer interface into join
like limit list long loop map merge new not null nulls number object of on or outer override package parallel
pragma private protected public retrieve return returning rollback savepoint search select set short sort
stat static string super switch synchronized system testmethod then this throw time transaction trigger true
try undelete update upsert using virtual void webservice when where while`)

func toSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

// Unique returns name, or name followed by the smallest integer >= 2 that is
// not yet taken. Comparison is case-insensitive; the result is recorded.
func Unique(name string, taken map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			taken[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", name, i)
	}
}

// GoExported renders s as an exported Go identifier.
func GoExported(s string) string {
	return TypeName(s)
}

// GoUnexported renders s as an unexported Go identifier, avoiding keywords.
func GoUnexported(s string) string {
	w := words(s)
	if w == "" {
		return "v"
	}
	out := strcase.LowerCamelCase(w)
	if out[0] >= '0' && out[0] <= '9' {
		out = "v" + out
	}
	if _, ok := goKeywords[out]; ok {
		out += "_"
	}
	return out
}

var goKeywords = toSet(`break case chan const continue default defer else fallthrough for func go goto if
import interface map package range return select struct switch type var`)
