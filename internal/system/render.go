package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/component"
	"github.com/intrinsic/engine/internal/core/ecs"
	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/render"
)

// RenderSystem runs every render pass for the active camera. Phase 4
// (Output).
type RenderSystem struct {
	passes  []*render.GenericMesh
	cameras *component.CameraManager
	camera  ecs.Ref
	log     *zap.Logger
}

func NewRenderSystem(passes []*render.GenericMesh, cameras *component.CameraManager, log *zap.Logger) *RenderSystem {
	return &RenderSystem{passes: passes, cameras: cameras, log: log}
}

func (s *RenderSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

// SetCamera picks the camera to render from. Without one the first live
// camera is used.
func (s *RenderSystem) SetCamera(cam ecs.Ref) { s.camera = cam }

func (s *RenderSystem) activeCamera() ecs.Ref {
	if s.cameras.Alive(s.camera) {
		return s.camera
	}
	for cam := range s.cameras.All() {
		return cam
	}
	return ecs.InvalidRef
}

func (s *RenderSystem) Update(dt time.Duration) {
	cam := s.activeCamera()
	if !cam.IsValid() {
		return
	}
	for _, p := range s.passes {
		if err := p.Render(float32(dt.Seconds()), cam); err != nil {
			s.log.Warn("render pass failed", zap.String("pass", p.Name()), zap.Error(err))
		}
	}
}

// Destroy releases the resources of every pass.
func (s *RenderSystem) Destroy() {
	for _, p := range s.passes {
		p.Destroy()
	}
}
