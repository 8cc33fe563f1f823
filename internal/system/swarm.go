package system

import (
	"time"

	"github.com/intrinsic/engine/internal/component"
	coresys "github.com/intrinsic/engine/internal/core/system"
)

// SwarmSystem advances every live swarm. Phase 2 (Update).
type SwarmSystem struct {
	swarms *component.SwarmManager
}

func NewSwarmSystem(swarms *component.SwarmManager) *SwarmSystem {
	return &SwarmSystem{swarms: swarms}
}

func (s *SwarmSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SwarmSystem) Update(dt time.Duration) {
	s.swarms.UpdateSwarms(s.swarms.Live(), float32(dt.Seconds()))
}
