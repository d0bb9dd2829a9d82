// Package suggest proposes field mappings between two field lists by name
// similarity.
package suggest

import (
	"sort"
	"strings"
	"unicode"
)

// Threshold is the confidence a pair must exceed to be suggested.
const Threshold = 0.5

// Suggestion pairs a source field with its best scoring target field.
type Suggestion struct {
	TargetField string  `json:"targetField"`
	SourceField string  `json:"sourceField"`
	Confidence  float64 `json:"confidence"`
}

var (
	prefixes = []string{"external_", "ext_", "salesforce_", "sf_"}
	suffixes = []string{"__c"}
)

// SuggestFieldMappings returns at most one suggestion per source field,
// sorted by descending confidence. Among equally scored targets the first
// one in targets wins; equal confidences keep source order.
func SuggestFieldMappings(targets, sources []string) []Suggestion {
	normTargets := make([]string, len(targets))
	for i, t := range targets {
		normTargets[i] = Normalize(t)
	}
	out := make([]Suggestion, 0, len(sources))
	for _, src := range sources {
		ns := Normalize(src)
		best, bestScore := -1, 0.0
		for i, nt := range normTargets {
			score := similarity(nt, ns)
			if score > Threshold && score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			out = append(out, Suggestion{TargetField: targets[best], SourceField: src, Confidence: bestScore})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Similarity scores two raw field names in [0, 1].
func Similarity(a, b string) float64 {
	return similarity(Normalize(a), Normalize(b))
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(ra, rb))/float64(longest)
}

// Normalize lowercases name, strips one known prefix and the custom field
// suffix, and drops separators so account_name and AccountName compare equal.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	for _, x := range suffixes {
		s = strings.TrimSuffix(s, x)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Distance is the Levenshtein edit distance with unit costs.
func Distance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
