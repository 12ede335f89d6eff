package binder

import (
	"strings"
	"unicode"
)

// lowered are SQL keywords that expr spells in lower case.
var lowered = map[string]string{
	"AND":   "and",
	"OR":    "or",
	"NOT":   "not",
	"IN":    "in",
	"TRUE":  "true",
	"FALSE": "false",
	"NULL":  "nil",
}

// fromSQL rewrites SQL condition syntax into expr syntax: = and <> become
// == and !=, boolean keywords are lowered, IS [NOT] NULL becomes a nil
// comparison and single-quoted literals use backslash escapes. Text already
// in expr syntax passes through unchanged.
func fromSQL(text string) string {
	src := []rune(text)
	var out strings.Builder
	out.Grow(len(text) + 8)

	for i := 0; i < len(src); {
		r := src[i]
		switch {
		case r == '\'':
			i = copySQLString(src, i, &out)
		case r == '"' || r == '`':
			i = copyQuoted(src, i, &out)
		case r == '<' && i+1 < len(src) && src[i+1] == '>':
			out.WriteString("!=")
			i += 2
		case r == '=':
			switch {
			case i+1 < len(src) && src[i+1] == '=':
				out.WriteString("==")
				i += 2
			case i > 0 && strings.ContainsRune("!<>=", src[i-1]):
				out.WriteRune('=')
				i++
			default:
				out.WriteString("==")
				i++
			}
		case isWordStart(r):
			j := wordEnd(src, i)
			word := string(src[i:j])
			if i > 0 && src[i-1] == '.' {
				out.WriteString(word)
				i = j
				continue
			}
			upper := strings.ToUpper(word)
			if upper == "IS" {
				if op, next, ok := nullTest(src, j); ok {
					out.WriteString(op)
					i = next
					continue
				}
			}
			if kw, ok := lowered[upper]; ok {
				out.WriteString(kw)
			} else {
				out.WriteString(word)
			}
			i = j
		default:
			out.WriteRune(r)
			i++
		}
	}
	return out.String()
}

// nullTest matches "[NOT] NULL" after IS, starting at i.
func nullTest(src []rune, i int) (op string, next int, ok bool) {
	op = "== nil"
	start, end := nextWord(src, i)
	word := strings.ToUpper(string(src[start:end]))
	if word == "NOT" {
		op = "!= nil"
		start, end = nextWord(src, end)
		word = strings.ToUpper(string(src[start:end]))
	}
	if word != "NULL" {
		return "", i, false
	}
	return op, end, true
}

func nextWord(src []rune, i int) (int, int) {
	for i < len(src) && unicode.IsSpace(src[i]) {
		i++
	}
	if i < len(src) && isWordStart(src[i]) {
		return i, wordEnd(src, i)
	}
	return i, i
}

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func wordEnd(src []rune, i int) int {
	for i < len(src) && (src[i] == '_' || unicode.IsLetter(src[i]) || unicode.IsDigit(src[i])) {
		i++
	}
	return i
}

// copySQLString copies a single-quoted SQL literal starting at i, turning
// the doubled quote escape into expr's backslash escape.
func copySQLString(src []rune, i int, out *strings.Builder) int {
	out.WriteRune('\'')
	for i++; i < len(src); i++ {
		switch r := src[i]; {
		case r == '\'' && i+1 < len(src) && src[i+1] == '\'':
			out.WriteString(`\'`)
			i++
		case r == '\'':
			out.WriteRune('\'')
			return i + 1
		case r == '\\':
			out.WriteString(`\\`)
		default:
			out.WriteRune(r)
		}
	}
	return i
}

// copyQuoted copies a double-quoted or backquoted literal verbatim.
func copyQuoted(src []rune, i int, out *strings.Builder) int {
	quote := src[i]
	out.WriteRune(quote)
	for i++; i < len(src); i++ {
		out.WriteRune(src[i])
		if src[i] == '\\' && quote == '"' && i+1 < len(src) {
			i++
			out.WriteRune(src[i])
			continue
		}
		if src[i] == quote {
			return i + 1
		}
	}
	return i
}
