// Package knowledge loads the service topology used by the correlation
// engine to name upstream dependencies.
package knowledge

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opsloop/triage/internal/config"
)

// Relationship is one dependency edge.
type Relationship struct {
	DependsOn string `yaml:"depends_on"`
}

// Component is one node of the topology.
type Component struct {
	Name          string         `yaml:"name"`
	Type          string         `yaml:"type"`
	Relationships []Relationship `yaml:"relationships"`
}

// Graph is the component topology, indexed by component name.
type Graph struct {
	components map[string]Component
}

type graphFile struct {
	Components []Component `yaml:"components"`
}

// Load reads a topology YAML file.
func Load(path string) (*Graph, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, config.NewConfigError(fmt.Sprintf("failed to load knowledge graph %s: %v", path, err))
	}

	var parsed graphFile
	if err := k.UnmarshalWithConf("", &parsed, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, config.NewConfigError(fmt.Sprintf("failed to parse knowledge graph %s: %v", path, err))
	}
	if len(parsed.Components) == 0 {
		return nil, config.NewConfigError(fmt.Sprintf("knowledge graph %s has no components", path))
	}

	return New(parsed.Components), nil
}

// New builds a graph from components.
func New(components []Component) *Graph {
	byName := make(map[string]Component, len(components))
	for _, c := range components {
		byName[c.Name] = c
	}
	return &Graph{components: byName}
}

// Component returns the named component.
func (g *Graph) Component(name string) (Component, bool) {
	c, ok := g.components[name]
	return c, ok
}

// Dependencies returns the names of the components the named component
// depends on. Unknown components have no dependencies.
func (g *Graph) Dependencies(name string) []string {
	c, ok := g.components[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.Relationships))
	for _, rel := range c.Relationships {
		out = append(out, rel.DependsOn)
	}
	return out
}

// Len returns the number of components.
func (g *Graph) Len() int {
	return len(g.components)
}
