// Package replace implements literal placeholder substitution over document text.
//
// A Mapping is an insertion-ordered set of token->value pairs. Substitution walks
// the pairs in order and replaces every occurrence of each token in the text
// produced by the previous step, so values inserted early can be rewritten by
// later tokens. The order is part of the observable behavior.
package replace

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
)

// Pair is a single token and its replacement value.
type Pair struct {
	Token string
	Value string
}

// Mapping is an insertion-ordered token->value table.
// The zero value and a nil *Mapping are both empty mappings.
type Mapping struct {
	pairs []Pair
	index map[string]int
}

// NewMapping builds a mapping from pairs in the given order.
// A repeated token updates the earlier entry and keeps its position.
func NewMapping(pairs ...Pair) *Mapping {
	m := &Mapping{}
	for _, p := range pairs {
		m.Set(p.Token, p.Value)
	}
	return m
}

// Set adds token at the end of the mapping, or updates its value in place
// when the token is already present.
func (m *Mapping) Set(token, value string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[token]; ok {
		m.pairs[i].Value = value
		return
	}
	m.index[token] = len(m.pairs)
	m.pairs = append(m.pairs, Pair{Token: token, Value: value})
}

// Get returns the value configured for token.
func (m *Mapping) Get(token string) (string, bool) {
	if m == nil || m.index == nil {
		return "", false
	}
	i, ok := m.index[token]
	if !ok {
		return "", false
	}
	return m.pairs[i].Value, true
}

// Len returns the number of pairs.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns a copy of the pairs in application order.
func (m *Mapping) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Tokens returns the tokens in application order.
func (m *Mapping) Tokens() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p.Token)
	}
	return out
}

// Clone returns an independent copy of the mapping.
func (m *Mapping) Clone() *Mapping {
	return NewMapping(m.Pairs()...)
}

// Merge applies other on top of m: existing tokens are updated in place,
// new tokens are appended in other's order.
func (m *Mapping) Merge(other *Mapping) {
	for _, p := range other.Pairs() {
		m.Set(p.Token, p.Value)
	}
}

// ParsePair parses a TOKEN=VALUE override. Only the first '=' separates the
// token from the value, so values may contain '='.
func ParsePair(raw string) (Pair, error) {
	token, value, ok := strings.Cut(raw, "=")
	if !ok {
		return Pair{}, ferrors.ValidationError("replacement override must have the form TOKEN=VALUE").
			WithContext("override", raw).
			Build()
	}
	return Pair{Token: token, Value: value}, nil
}

// UnmarshalYAML decodes a YAML mapping keeping document order. Aliases are
// followed to their anchored nodes.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = Mapping{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return ferrors.ConfigError("variable replacements must be a mapping").
			WithContext("line", node.Line).
			Build()
	}

	decoded := Mapping{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := resolveAlias(node.Content[i]), resolveAlias(node.Content[i+1])
		if keyNode.Kind != yaml.ScalarNode || valueNode.Kind != yaml.ScalarNode {
			return ferrors.ConfigError("replacement tokens and values must be scalars").
				WithContext("line", keyNode.Line).
				Build()
		}
		if _, dup := decoded.Get(keyNode.Value); dup {
			return ferrors.ConfigError(fmt.Sprintf("duplicate replacement token %q", keyNode.Value)).
				WithContext("line", keyNode.Line).
				Build()
		}
		value := valueNode.Value
		if valueNode.Tag == "!!null" {
			value = ""
		}
		decoded.Set(keyNode.Value, value)
	}
	*m = decoded
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// MarshalYAML encodes the mapping as a YAML mapping in application order.
func (m Mapping) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range m.pairs {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Token},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Value},
		)
	}
	return node, nil
}
