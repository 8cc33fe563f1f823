// Package data loads static definitions that are authored by hand rather
// than through descriptors.
package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RenderOrder decides how a pass sorts its draw calls by view distance.
type RenderOrder string

const (
	FrontToBack RenderOrder = "front_to_back"
	BackToFront RenderOrder = "back_to_front"
)

// RenderPass defines one generic mesh pass.
type RenderPass struct {
	Name           string      `yaml:"name"`
	VertexShader   string      `yaml:"vertex_shader"`
	FragmentShader string      `yaml:"fragment_shader"`
	MaterialPasses []string    `yaml:"material_passes"`
	RenderOrder    RenderOrder `yaml:"render_order"`
}

// RenderPassTable keeps passes in file order with lookup by name.
type RenderPassTable struct {
	passes []RenderPass
	byName map[string]int
}

// LoadRenderPassTable loads render_passes.yaml.
func LoadRenderPassTable(path string) (*RenderPassTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read render passes: %w", err)
	}
	return ParseRenderPassTable(raw)
}

func ParseRenderPassTable(raw []byte) (*RenderPassTable, error) {
	var entries []RenderPass
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse render passes: %w", err)
	}
	t := &RenderPassTable{
		passes: make([]RenderPass, 0, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("render pass %d: missing name", len(t.passes))
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("render pass %q: defined twice", e.Name)
		}
		switch e.RenderOrder {
		case "":
			e.RenderOrder = FrontToBack
		case FrontToBack, BackToFront:
		default:
			return nil, fmt.Errorf("render pass %q: unknown render order %q", e.Name, e.RenderOrder)
		}
		if len(e.MaterialPasses) == 0 {
			e.MaterialPasses = []string{e.Name}
		}
		t.byName[e.Name] = len(t.passes)
		t.passes = append(t.passes, e)
	}
	return t, nil
}

// Get returns the pass with the given name, or nil if none.
func (t *RenderPassTable) Get(name string) *RenderPass {
	i, ok := t.byName[name]
	if !ok {
		return nil
	}
	return &t.passes[i]
}

// All returns the passes in definition order.
func (t *RenderPassTable) All() []RenderPass { return t.passes }

// Count returns the total number of passes loaded.
func (t *RenderPassTable) Count() int { return len(t.passes) }
