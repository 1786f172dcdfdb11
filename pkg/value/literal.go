package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseError reports a malformed literal
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid literal %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse decodes the literal syntax stored in the settings file: numbers,
// True/False/None, quoted strings, [lists], (tuples) and {mappings}.
func Parse(s string) (Value, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.eof() {
		return None(), p.fail("empty literal")
	}
	v, err := p.value()
	if err != nil {
		return None(), err
	}
	p.skipSpace()
	if !p.eof() {
		return None(), p.fail("unexpected trailing input")
	}
	return v, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) fail(msg string, args ...interface{}) error {
	return &ParseError{Input: p.src, Pos: p.pos, Msg: fmt.Sprintf(msg, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (Value, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '[':
		p.pos++
		items, _, err := p.sequence(']')
		if err != nil {
			return None(), err
		}
		return Value{kind: KindList, items: items}, nil
	case c == '(':
		p.pos++
		items, trailingComma, err := p.sequence(')')
		if err != nil {
			return None(), err
		}
		// "(x)" is a parenthesised expression, not a tuple
		if len(items) == 1 && !trailingComma {
			return items[0], nil
		}
		return Value{kind: KindPair, items: items}, nil
	case c == '{':
		p.pos++
		return p.mapping()
	case c == '\'' || c == '"':
		return p.stringLiteral()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.identifier()
	case c == 0:
		return None(), p.fail("unexpected end of input")
	}
	return None(), p.fail("unexpected character %q", c)
}

// sequence parses comma separated values up to the closing delimiter
func (p *parser) sequence(closing byte) ([]Value, bool, error) {
	items := []Value{}
	trailingComma := false
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return items, trailingComma, nil
		}
		if p.eof() {
			return nil, false, p.fail("missing %q", closing)
		}
		v, err := p.value()
		if err != nil {
			return nil, false, err
		}
		items = append(items, v)
		trailingComma = false
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
		case closing:
		default:
			return nil, false, p.fail("expected ',' or %q", closing)
		}
	}
}

func (p *parser) mapping() (Value, error) {
	entries := make(map[string]Value)
	var set []Value
	first := true
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		if p.eof() {
			return None(), p.fail("missing '}'")
		}
		key, err := p.value()
		if err != nil {
			return None(), err
		}
		p.skipSpace()
		if first && (p.peek() == ',' || p.peek() == '}') {
			// set literal, kept as a list
			set = []Value{key}
		}
		first = false
		if set != nil {
			if len(set) > 0 && !set[len(set)-1].Equal(key) {
				set = append(set, key)
			}
		} else {
			if p.peek() != ':' {
				return None(), p.fail("expected ':'")
			}
			p.pos++
			v, err := p.value()
			if err != nil {
				return None(), err
			}
			k, err := MappingKey(key)
			if err != nil {
				return None(), p.fail("%v", err)
			}
			entries[k] = v
		}
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return None(), p.fail("expected ',' or '}'")
		}
	}
	if set != nil {
		return Value{kind: KindList, items: set}, nil
	}
	return Value{kind: KindMapping, entries: entries}, nil
}

// MappingKey returns the key text a scalar takes when used as a mapping key.
// Containers cannot be keys.
func MappingKey(k Value) (string, error) {
	switch k.kind {
	case KindText:
		return k.text, nil
	case KindNumber, KindBoolean, KindNone:
		return Format(k), nil
	}
	return "", fmt.Errorf("unhashable mapping key of kind %s", k.kind)
}

// stringLiteral parses one or more adjacent string literals
func (p *parser) stringLiteral() (Value, error) {
	var b strings.Builder
	for {
		s, err := p.quoted(false)
		if err != nil {
			return None(), err
		}
		b.WriteString(s)
		save := p.pos
		p.skipSpace()
		c := p.peek()
		if c == '\'' || c == '"' {
			continue
		}
		if isStringPrefix(p.src[p.pos:]) {
			if _, raw, ok := p.prefix(); ok {
				s, err := p.quoted(raw)
				if err != nil {
					return None(), err
				}
				b.WriteString(s)
				continue
			}
		}
		p.pos = save
		return Text(b.String()), nil
	}
}

// prefix consumes a string prefix such as u, b, r or br
func (p *parser) prefix() (string, bool, bool) {
	start := p.pos
	raw := false
	for !p.eof() && strings.IndexByte("uUbBrR", p.peek()) >= 0 {
		if p.peek() == 'r' || p.peek() == 'R' {
			raw = true
		}
		p.pos++
	}
	if p.pos-start > 2 || (p.peek() != '\'' && p.peek() != '"') {
		p.pos = start
		return "", false, false
	}
	return p.src[start:p.pos], raw, true
}

func isStringPrefix(s string) bool {
	for i := 0; i < len(s) && i < 3; i++ {
		c := s[i]
		if c == '\'' || c == '"' {
			return i > 0
		}
		if strings.IndexByte("uUbBrR", c) < 0 {
			return false
		}
	}
	return false
}

func (p *parser) quoted(raw bool) (string, error) {
	quote := p.peek()
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.fail("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", p.fail("newline in string")
		case c == '\\' && raw:
			b.WriteByte(c)
			p.pos++
			if !p.eof() {
				b.WriteByte(p.src[p.pos])
				p.pos++
			}
		case c == '\\':
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	if p.eof() {
		return p.fail("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		return p.hexEscape(b, 4)
	case 'U':
		return p.hexEscape(b, 8)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := int(c - '0')
		for i := 0; i < 2 && !p.eof() && p.peek() >= '0' && p.peek() <= '7'; i++ {
			n = n*8 + int(p.peek()-'0')
			p.pos++
		}
		b.WriteRune(rune(n))
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) hexEscape(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.fail("truncated escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return p.fail("invalid escape digits")
	}
	if n > unicode.MaxRune {
		return p.fail("escape out of range")
	}
	p.pos += digits
	b.WriteRune(rune(n))
	return nil
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
		p.skipSpace()
		if isIdentStart(p.peek()) {
			v, err := p.identifier()
			if err != nil {
				return None(), err
			}
			f, ok := v.Float()
			if !ok || !v.IsFloat() {
				return None(), p.fail("sign applied to non-number")
			}
			if c == '-' {
				f = -f
			}
			return Float(f), nil
		}
	}
	digits := p.pos
	for !p.eof() {
		c := p.peek()
		if (c >= '0' && c <= '9') || c == '.' || c == '_' || c == 'x' || c == 'X' || c == 'o' || c == 'O' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			p.pos++
			continue
		}
		if (c == '+' || c == '-') && p.pos > digits && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E') &&
			!isHexLiteral(p.src[digits:p.pos]) {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], " ", "")
	text = strings.ReplaceAll(text, "\t", "")
	// Python 2 long suffix
	if p.peek() == 'L' || p.peek() == 'l' {
		p.pos++
	}
	if text == "" || text == "-" || text == "+" {
		return None(), p.fail("malformed number")
	}
	clean := strings.ReplaceAll(text, "_", "")
	if n, err := strconv.ParseInt(clean, 0, 64); err == nil {
		return Int(n), nil
	}
	if isHexLiteral(strings.TrimLeft(clean, "+-")) {
		return None(), p.fail("malformed number %q", text)
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return Float(f), nil
		}
		return None(), p.fail("malformed number %q", text)
	}
	return Float(f), nil
}

func isHexLiteral(s string) bool {
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func (p *parser) identifier() (Value, error) {
	start := p.pos
	for !p.eof() && (isIdentStart(p.peek()) || (p.peek() >= '0' && p.peek() <= '9')) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "None":
		return None(), nil
	case "inf":
		return Float(math.Inf(1)), nil
	case "nan":
		return Float(math.NaN()), nil
	}
	if isStringPrefix(p.src[start:]) {
		p.pos = start
		if _, raw, ok := p.prefix(); ok {
			s, err := p.quoted(raw)
			if err != nil {
				return None(), err
			}
			v := Text(s)
			save := p.pos
			p.skipSpace()
			if c := p.peek(); c == '\'' || c == '"' {
				rest, err := p.stringLiteral()
				if err != nil {
					return None(), err
				}
				return Text(s + rest.text), nil
			}
			p.pos = save
			return v, nil
		}
	}
	p.pos = start
	return None(), p.fail("unknown name %q", word)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Format writes v in the canonical literal syntax. Parse(Format(v)) is equal
// to v for every value.
func Format(v Value) string {
	var b strings.Builder
	format(&b, v)
	return b.String()
}

func format(b *strings.Builder, v Value) {
	switch v.kind {
	case KindNone:
		b.WriteString("None")
	case KindText:
		quoteText(b, v.text)
	case KindNumber:
		if v.isFloat {
			b.WriteString(formatFloat(v.float))
		} else {
			b.WriteString(strconv.FormatInt(v.integer, 10))
		}
	case KindBoolean:
		if v.boolean {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case KindList:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, item)
		}
		b.WriteByte(']')
	case KindPair:
		b.WriteByte('(')
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, item)
		}
		if len(v.items) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case KindMapping:
		keys := make([]string, 0, len(v.entries))
		for k := range v.entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			quoteText(b, k)
			b.WriteString(": ")
			format(b, v.entries[k])
		}
		b.WriteByte('}')
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// quoteText quotes like Python's repr: single quotes unless the text holds
// a single quote and no double quote. Bytes that are not valid UTF-8 are
// written as \xNN and read back as the Latin-1 character.
func quoteText(b *strings.Builder, s string) {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}
	b.WriteByte(quote)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(b, `\x%02x`, s[i])
			i++
			continue
		}
		i += size
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\x%02x`, r)
		case !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(b, `\U%08x`, r)
			} else {
				fmt.Fprintf(b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
}
