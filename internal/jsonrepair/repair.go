// Package jsonrepair fixes the JSON malformations language models most
// often produce: trailing commas, unescaped interior quotes, and raw
// control characters inside string values.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// scanState is the string-literal tracking state of the repair scanner.
type scanState int

const (
	outsideString scanState = iota
	insideString
	afterEscape
)

// Repair attempts to turn almost-JSON into valid JSON. Input that is
// already valid is returned unchanged; the trailing-comma regex cannot
// run first because it would rewrite `,}` sequences inside string
// values of valid documents.
func Repair(raw string) string {
	if json.Valid([]byte(raw)) {
		return raw
	}

	s := trailingCommaRe.ReplaceAllString(raw, "$1")

	if json.Valid([]byte(s)) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 16)
	state := outsideString

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch state {
		case outsideString:
			b.WriteByte(ch)
			if ch == '"' {
				state = insideString
			}
		case afterEscape:
			b.WriteByte(ch)
			state = insideString
		case insideString:
			switch ch {
			case '\\':
				b.WriteByte(ch)
				state = afterEscape
			case '"':
				if terminatesString(s, i+1) {
					b.WriteByte('"')
					state = outsideString
				} else {
					// Interior unescaped quote.
					b.WriteString(`\"`)
				}
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(ch)
			}
		}
	}

	return b.String()
}

// terminatesString decides whether a quote at position i-1 legitimately
// ends a string value: skip whitespace and check that the next
// significant character is one a JSON grammar allows after a string.
// This lookahead set is a heuristic tuned to real model mistakes; do not
// tighten it.
func terminatesString(s string, i int) bool {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			i++
			continue
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true // end of input
}

// FindMatchingBrace returns the index of the '}' matching the '{' at
// start, or -1 if the braces never balance. String literals and escapes
// are honored so braces inside strings don't count.
func FindMatchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if ch == '{' {
			depth++
		}
		if ch == '}' {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseObject parses raw as a JSON object, falling back to Repair when a
// strict parse fails. The second return is false when no parse succeeded
// or the result was not an object.
func ParseObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, true
	}
	if err := json.Unmarshal([]byte(Repair(raw)), &obj); err == nil {
		return obj, true
	}
	return nil, false
}
