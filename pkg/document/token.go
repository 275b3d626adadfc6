package document

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Token is a scalar kept in its textual form. Numeric and boolean values are
// parsed by the engine, not by the decoder, so a malformed value reaches the
// reconciler intact.
type Token string

// IntToken renders an integer token.
func IntToken(n int) Token {
	return Token(strconv.Itoa(n))
}

// BoolToken renders a boolean token.
func BoolToken(b bool) Token {
	return Token(strconv.FormatBool(b))
}

// String returns the raw text.
func (t Token) String() string {
	return string(t)
}

// IsEmpty reports whether the token carries no text.
func (t Token) IsEmpty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// Int parses the token as a base-10 integer.
func (t Token) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(t)))
}

// Bool parses the token case-insensitively ("True", "false", "1").
func (t Token) Bool() (bool, error) {
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(string(t))))
}

// MarshalYAML emits ints and bools as native YAML scalars and everything else
// as a string, so exported files read naturally.
func (t Token) MarshalYAML() (interface{}, error) {
	s := string(t)
	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return n, nil
	}
	if s == "true" || s == "false" {
		return s == "true", nil
	}
	return s, nil
}

// UnmarshalYAML accepts any scalar and keeps its source text.
func (t *Token) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return &yaml.TypeError{Errors: []string{"line " + strconv.Itoa(node.Line) + ": expected a scalar value"}}
	}
	if node.Tag == "!!null" {
		*t = ""
		return nil
	}
	*t = Token(node.Value)
	return nil
}
