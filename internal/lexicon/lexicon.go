// Package lexicon resolves OSM tag key/value pairs to descriptive phrases.
package lexicon

import (
	"os"
	"strings"

	"github.com/paulmach/osm"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Lexicon maps tag key -> tag value -> phrase.
type Lexicon struct {
	phrases map[string]map[string]string
}

// New builds a lexicon from an in-memory map.
func New(phrases map[string]map[string]string) *Lexicon {
	if phrases == nil {
		phrases = make(map[string]map[string]string)
	}
	return &Lexicon{phrases: phrases}
}

// Load reads the lexicon from a YAML file. prefix is the dotted path of the
// mapping that holds the phrases, e.g. "el.geocoder.search_osm_nominatim.prefix".
func Load(path, prefix string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lexicon: read %s", path)
	}
	lex, err := Parse(data, prefix)
	if err != nil {
		return nil, eris.Wrapf(err, "lexicon: load %s", path)
	}
	return lex, nil
}

// Parse decodes a YAML document and extracts the phrase mapping at prefix.
// Non-scalar phrases are ignored.
func Parse(data []byte, prefix string) (*Lexicon, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "lexicon: parse yaml")
	}
	if len(doc.Content) == 0 {
		return nil, eris.New("lexicon: empty document")
	}

	node := doc.Content[0]
	if prefix != "" {
		for _, part := range strings.Split(prefix, ".") {
			node = child(node, part)
			if node == nil {
				return nil, eris.Errorf("lexicon: prefix %q not found at %q", prefix, part)
			}
		}
	}
	if node.Kind != yaml.MappingNode {
		return nil, eris.Errorf("lexicon: %q is not a mapping", prefix)
	}

	phrases := make(map[string]map[string]string)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, values := node.Content[i].Value, node.Content[i+1]
		if values.Kind != yaml.MappingNode {
			continue
		}
		m := make(map[string]string, len(values.Content)/2)
		for j := 0; j+1 < len(values.Content); j += 2 {
			if v := values.Content[j+1]; v.Kind == yaml.ScalarNode {
				m[values.Content[j].Value] = v.Value
			}
		}
		phrases[key] = m
	}
	return &Lexicon{phrases: phrases}, nil
}

func child(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// Lookup returns the phrase for key=value.
func (l *Lexicon) Lookup(key, value string) (string, bool) {
	p, ok := l.phrases[key][value]
	return p, ok
}

// Phrases returns the phrases of every resolvable tag, in tag order.
func (l *Lexicon) Phrases(tags osm.Tags) []string {
	var out []string
	for _, t := range tags {
		if p, ok := l.Lookup(t.Key, t.Value); ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of phrases.
func (l *Lexicon) Len() int {
	n := 0
	for _, m := range l.phrases {
		n += len(m)
	}
	return n
}
