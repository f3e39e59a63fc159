package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Label is a named taxonomy entry.
type Label struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Subdomains  []Label `yaml:"subdomains,omitempty" json:"subdomains,omitempty"`
}

// Taxonomy is the ordered list of domains and their subdomains.
type Taxonomy struct {
	Domains []Label `yaml:"domains" json:"domains"`
}

// LoadTaxonomy reads a taxonomy file. Two layouts are accepted:
//
//	domains:
//	  - name: Databases
//	    description: ...
//	    subdomains: [{name: Query Execution, description: ...}]
//
// and the flat listing {"Databases": [{"Query Execution": "..."}]} (JSON is valid YAML).
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a taxonomy, preserving the order domains appear in.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Taxonomy{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse taxonomy: expected a mapping at line %d", root.Line)
	}

	if len(root.Content) == 2 && root.Content[0].Value == "domains" {
		var t Taxonomy
		if err := root.Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
		}
		return &t, nil
	}

	t := &Taxonomy{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		domain := Label{Name: root.Content[i].Value}
		subs, err := decodeFlatLabels(root.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse taxonomy domain %q: %w", domain.Name, err)
		}
		domain.Subdomains = subs
		t.Domains = append(t.Domains, domain)
	}
	return t, nil
}

// decodeFlatLabels reads [{Name: Description}, ...].
func decodeFlatLabels(n *yaml.Node) ([]Label, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list at line %d", n.Line)
	}
	var out []Label
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("expected a mapping at line %d", item.Line)
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			out = append(out, Label{Name: item.Content[i].Value, Description: item.Content[i+1].Value})
		}
	}
	return out, nil
}

// Domain returns the named domain. Names compare case-insensitively.
func (t *Taxonomy) Domain(name string) (Label, bool) {
	if t == nil {
		return Label{}, false
	}
	name = strings.TrimSpace(name)
	for _, d := range t.Domains {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Label{}, false
}

// DomainNames lists domains in declaration order.
func (t *Taxonomy) DomainNames() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Domains))
	for _, d := range t.Domains {
		out = append(out, d.Name)
	}
	return out
}
