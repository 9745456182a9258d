// Package extract turns free-form model output into the result collection the
// client renders. It never fails: text it cannot parse comes back as an opaque result.
package extract

import (
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

type Kind string

const (
	// KindStructured means a known collection key was found in the parsed JSON.
	KindStructured Kind = "structured"
	// KindWrapped means JSON parsed but had none of the known keys.
	KindWrapped Kind = "wrapped"
	// KindOpaque means no usable JSON was found; the raw text is the result.
	KindOpaque Kind = "opaque"
)

// FallbackKey names the collection used for wrapped and opaque results.
const FallbackKey = "results"

// ResultKeys are checked in order; the first key present wins.
var ResultKeys = []string{"predictions", "simpleResults", "results", "resultats"}

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?(.*?)```")

type Result struct {
	Kind    Kind
	Key     string
	Results any
	Text    string
}

// Payload returns the value placed in the analyse field of an ok envelope.
func (r Result) Payload() any {
	if r.Kind == KindOpaque {
		return r.Text
	}
	return map[string]any{r.Key: r.Results}
}

// Structured picks the result collection out of model text. Fenced blocks are
// searched first, in order; the whole text is scanned only when none of them
// holds JSON that parses.
func Structured(text string) Result {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if v, ok := firstJSON(m[1]); ok {
			return fromValue(v, text)
		}
	}
	if v, ok := firstJSON(StripCodeFences(text)); ok {
		return fromValue(v, text)
	}

	return Result{
		Kind:    KindOpaque,
		Key:     FallbackKey,
		Results: []any{text},
		Text:    text,
	}
}

// StripCodeFences trims a Markdown fence (```json or ```) from the edges of s.
// Backticks inside the text are kept.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSON returns the first balanced object or array in s that parses.
// A span that fails to parse is skipped with everything nested in it.
func firstJSON(s string) (any, bool) {
	ends := matchSpans(s)
	for open := 0; open < len(s); open++ {
		end := ends[open]
		if end < 0 {
			continue
		}

		var v any
		if err := sonic.UnmarshalString(s[open:end+1], &v); err == nil {
			return v, true
		}
		open = end
	}
	return nil, false
}

func fromValue(v any, text string) Result {
	if obj, ok := v.(map[string]any); ok {
		for _, key := range ResultKeys {
			if items, found := obj[key]; found {
				return Result{Kind: KindStructured, Key: key, Results: items, Text: text}
			}
		}
	}
	return Result{Kind: KindWrapped, Key: FallbackKey, Results: []any{v}, Text: text}
}

// matchSpans maps every opening bracket to the index of its closing bracket in
// one pass, -1 when it has none. String literals are tracked only inside a
// span. A mismatched closer invalidates every opener still waiting.
func matchSpans(s string) []int {
	ends := make([]int, len(s))
	for i := range ends {
		ends[i] = -1
	}

	var (
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = len(stack) > 0
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if closerOf(s[top]) != c {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			ends[top] = i
		}
	}
	return ends
}

func closerOf(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}
