package system

import (
	"time"

	"github.com/intrinsic/engine/internal/component"
	coresys "github.com/intrinsic/engine/internal/core/system"
)

// CameraSystem refreshes camera matrices and frustum planes after
// transforms settled. Phase 3 (PostUpdate).
type CameraSystem struct {
	cameras *component.CameraManager
}

func NewCameraSystem(cameras *component.CameraManager) *CameraSystem {
	return &CameraSystem{cameras: cameras}
}

func (s *CameraSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CameraSystem) Update(_ time.Duration) {
	s.cameras.UpdateFrustumsAndMatrices(s.cameras.Live())
}
