package sqlbuild

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
)

// TranslateLike converts an AQL LIKE pattern to a SQL LIKE pattern.
//
//	*  ->  %        \*  ->  *
//	?  ->  _        \?  ->  ?
//	%  ->  \%       \\  ->  \\
//	_  ->  \_
//
// Any other escape, including a trailing backslash, is illegal.
func TranslateLike(pattern string) (string, error) {
	return translateLike(pattern, false)
}

// TranslateLikeJSON is TranslateLike for matching the text of a JSON string:
// the literal parts are JSON escaped and the pattern is enclosed in quotes.
func TranslateLikeJSON(pattern string) (string, error) {
	return translateLike(pattern, true)
}

func translateLike(pattern string, jsonText bool) (string, error) {
	var sb, lit strings.Builder
	if jsonText {
		sb.WriteByte('"')
	}
	flush := func() {
		if lit.Len() == 0 {
			return
		}
		s := lit.String()
		lit.Reset()
		if jsonText {
			s = jsonEscape(s)
		}
		for _, r := range s {
			switch r {
			case '%', '_', '\\':
				sb.WriteByte('\\')
			}
			sb.WriteRune(r)
		}
	}

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			flush()
			sb.WriteByte('%')
		case '?':
			flush()
			sb.WriteByte('_')
		case '\\':
			i++
			if i >= len(runes) {
				return "", aql.NewIllegalError("invalid LIKE pattern: %s", pattern)
			}
			switch next := runes[i]; next {
			case '*', '?', '\\':
				lit.WriteRune(next)
			default:
				return "", aql.NewIllegalError("invalid LIKE pattern: %s", pattern)
			}
		default:
			lit.WriteRune(r)
		}
	}
	flush()
	if jsonText {
		sb.WriteByte('"')
	}
	return sb.String(), nil
}

// jsonEscape returns the body of the JSON string literal of s.
func jsonEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	b := bytes.TrimSpace(buf.Bytes())
	return string(b[1 : len(b)-1])
}
