package toolclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeCallToolResult unwraps the MCP-style content envelope and
// decodes its text field, which the tool server usually encodes as a
// JSON value but which older tools stringify as a Python list/dict
// repr (single quotes, no quoting of numeric literals). decodePayload
// below handles both.
func decodeCallToolResult(raw json.RawMessage) (any, error) {
	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if result.IsError {
		text := "tool reported an error"
		if len(result.Content) > 0 {
			text = result.Content[0].Text
		}
		return nil, fmt.Errorf("%s", text)
	}
	if len(result.Content) == 0 {
		return nil, nil
	}
	return decodePayload(result.Content[0].Text)
}

// decodePayload parses a tool's text payload as JSON first, falling
// back to a permissive Python-literal reader for the small number of
// legacy tools that still emit repr()-style output.
func decodePayload(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}
	return parsePythonLiteral(text)
}

// parsePythonLiteral reads a Python repr() of a list, dict, string,
// number, bool, or None into the equivalent Go value. It supports only
// the shapes the tool server's legacy handlers actually emit: flat or
// nested lists/dicts of strings and numbers with single-quoted strings.
func parsePythonLiteral(s string) (any, error) {
	p := &literalParser{s: s}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w: trailing content after literal", ErrMalformedPayload)
	}
	return v, nil
}

type literalParser struct {
	s   string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *literalParser) parseValue() (any, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '[':
		return p.parseList('[', ']')
	case c == '(':
		return p.parseList('(', ')')
	case c == '{':
		return p.parseDict()
	case c == '\'' || c == '"':
		return p.parseString(c)
	case strings.HasPrefix(p.s[p.pos:], "None"):
		p.pos += 4
		return nil, nil
	case strings.HasPrefix(p.s[p.pos:], "True"):
		p.pos += 4
		return true, nil
	case strings.HasPrefix(p.s[p.pos:], "False"):
		p.pos += 5
		return false, nil
	default:
		return p.parseNumber()
	}
}

func (p *literalParser) parseList(open, close byte) (any, error) {
	if p.peek() != open {
		return nil, fmt.Errorf("expected %q", open)
	}
	p.pos++
	items := []any{}
	p.skipSpace()
	for p.peek() != close {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++ // consume close
	return items, nil
}

func (p *literalParser) parseDict() (any, error) {
	p.pos++ // consume '{'
	m := map[string]any{}
	p.skipSpace()
	for p.peek() != '}' {
		keyVal, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		key, ok := keyVal.(string)
		if !ok {
			key = fmt.Sprintf("%v", keyVal)
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, fmt.Errorf("expected ':' in dict")
		}
		p.pos++
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m[key] = val
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++ // consume '}'
	return m, nil
}

func (p *literalParser) parseString(quote byte) (string, error) {
	p.pos++ // consume opening quote
	var b strings.Builder
	for p.pos < len(p.s) && p.s[p.pos] != quote {
		if p.s[p.pos] == '\\' && p.pos+1 < len(p.s) {
			p.pos++
		}
		b.WriteByte(p.s[p.pos])
		p.pos++
	}
	if p.pos >= len(p.s) {
		return "", fmt.Errorf("unterminated string literal")
	}
	p.pos++ // consume closing quote
	return b.String(), nil
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return nil, fmt.Errorf("unexpected character %q at position %d", p.peek(), p.pos)
	}
	tok := p.s[start:p.pos]
	if n, err := strconv.Atoi(tok); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", tok)
	}
	return f, nil
}
