package system

import (
	"time"

	"github.com/intrinsic/engine/internal/core/event"
	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/scene"
)

// TransformSystem keeps world transforms current. The traversal order is
// rebuilt only after nodes were created or destroyed. Phase 2 (Update),
// registered after the swarm system.
type TransformSystem struct {
	nodes *scene.NodeManager
	dirty bool
}

func NewTransformSystem(nodes *scene.NodeManager, bus *event.Bus) *TransformSystem {
	s := &TransformSystem{nodes: nodes, dirty: true}
	event.Subscribe(bus, func(e event.Created) {
		if e.Kind == scene.Kind {
			s.dirty = true
		}
	})
	event.Subscribe(bus, func(e event.Destroyed) {
		if e.Kind == scene.Kind {
			s.dirty = true
		}
	})
	return s
}

func (s *TransformSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TransformSystem) Update(_ time.Duration) {
	if s.dirty {
		s.nodes.RebuildTreeAndUpdateTransforms()
		s.dirty = false
		return
	}
	s.nodes.UpdateAll()
}
