package system

import (
	"time"

	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/scripting"
)

// ScriptSystem gives scripts their per-tick hook. Phase 0 (Input).
type ScriptSystem struct {
	console *scripting.Console
}

func NewScriptSystem(console *scripting.Console) *ScriptSystem {
	return &ScriptSystem{console: console}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ScriptSystem) Update(dt time.Duration) {
	s.console.Tick(dt.Seconds())
}
