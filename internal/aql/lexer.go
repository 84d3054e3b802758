package aql

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokArchetypeID
	tokLong
	tokDouble
	tokString
	tokParam
	tokSymbol
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokIdent:
		return "identifier"
	case tokArchetypeID:
		return "archetype id"
	case tokLong, tokDouble:
		return "number"
	case tokString:
		return "string"
	case tokParam:
		return "parameter"
	default:
		return "symbol"
	}
}

type token struct {
	kind tokenKind
	text string // raw text; unescaped value for strings, name for parameters
	pos  int
}

// is reports whether the token is the given keyword or symbol (keywords are
// case-insensitive).
func (t token) is(s string) bool {
	switch t.kind {
	case tokIdent:
		return strings.EqualFold(t.text, s)
	case tokSymbol:
		return t.text == s
	default:
		return false
	}
}

// lex splits the query text into tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			// line comment
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			s, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i = n
		case c == '$':
			j := i + 1
			for j < len(src) && isIdentChar(rune(src[j])) {
				j++
			}
			if j == i+1 {
				return nil, NewParseError(i, "parameter name expected after '$'")
			}
			toks = append(toks, token{kind: tokParam, text: src[i+1 : j], pos: i})
			i = j
		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1]) && allowsSign(toks)):
			t, n := lexNumber(src, i)
			toks = append(toks, t)
			i = n
		case isIdentStart(rune(c)):
			t, n := lexWord(src, i)
			toks = append(toks, t)
			i = n
		default:
			sym, ok := lexSymbol(src, i)
			if !ok {
				return nil, NewParseError(i, "unexpected character %q", c)
			}
			toks = append(toks, token{kind: tokSymbol, text: sym, pos: i})
			i += len(sym)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// allowsSign reports whether a '-' at this point starts a negative number.
func allowsSign(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	last := toks[len(toks)-1]
	if last.kind != tokSymbol {
		return false
	}
	switch last.text {
	case ")", "]", "}":
		return false
	default:
		return true
	}
}

func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\':
			if i+1 >= len(src) {
				return "", 0, NewParseError(i, "unterminated string")
			}
			next := src[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\'', '"', '\\':
				b.WriteByte(next)
			default:
				// keep LIKE escapes like \* intact
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i += 2
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, NewParseError(start, "unterminated string")
}

func lexNumber(src string, start int) (token, int) {
	i := start
	if src[i] == '-' {
		i++
	}
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	kind := tokLong
	if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
		kind = tokDouble
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			kind = tokDouble
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return token{kind: kind, text: src[start:i], pos: start}, i
}

func lexWord(src string, start int) (token, int) {
	i := start
	for i < len(src) && isIdentChar(rune(src[i])) {
		i++
	}
	word := src[start:i]
	if strings.HasPrefix(word, "openEHR") && i < len(src) && src[i] == '-' {
		for i < len(src) && (isIdentChar(rune(src[i])) || src[i] == '-' || src[i] == '.') {
			i++
		}
		return token{kind: tokArchetypeID, text: src[start:i], pos: start}, i
	}
	if isNodeIDPrefix(word) {
		// at0001.1, id1.2
		for i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
			i++
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
		word = src[start:i]
	}
	return token{kind: tokIdent, text: word, pos: start}, i
}

func isNodeIDPrefix(w string) bool {
	if len(w) < 3 || !(strings.HasPrefix(w, "at") || strings.HasPrefix(w, "id")) {
		return false
	}
	for _, r := range w[2:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var symbols = []string{"!=", "<>", ">=", "<=", "=", ">", "<", "(", ")", "[", "]", "{", "}", ",", "/", "*"}

func lexSymbol(src string, i int) (string, bool) {
	for _, s := range symbols {
		if strings.HasPrefix(src[i:], s) {
			return s, true
		}
	}
	return "", false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
