// Package component holds the entity-owned kinds built on the ecs core:
// cameras, meshes, lights and swarms.
package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/resource"
	"github.com/intrinsic/engine/internal/scene"
)

const CameraKind = "Camera"

// CameraManager drives one owned frustum per camera from the camera node's
// world transform.
type CameraManager struct {
	*ecs.ComponentManager

	FOV       *ecs.Column[float32] // radians
	NearPlane *ecs.Column[float32]
	FarPlane  *ecs.Column[float32]

	Frustum *ecs.Column[ecs.Ref]
	Forward *ecs.Column[mgl32.Vec3]
	Up      *ecs.Column[mgl32.Vec3]

	nodes    *scene.NodeManager
	frustums *resource.FrustumManager
	aspect   float32
}

func NewCameraManager(capacity int, nodes *scene.NodeManager, frustums *resource.FrustumManager, aspect float32, log *zap.Logger) *CameraManager {
	m := &CameraManager{
		ComponentManager: ecs.NewComponentManager(CameraKind, capacity, log),
		nodes:            nodes,
		frustums:         frustums,
		aspect:           aspect,
	}
	t := m.Table()
	m.FOV = ecs.AddColumn(t, "fov", mgl32.DegToRad(75))
	m.NearPlane = ecs.AddColumn(t, "nearPlane", float32(1))
	m.FarPlane = ecs.AddColumn(t, "farPlane", float32(10000))
	m.Frustum = ecs.AddColumn(t, "frustum", ecs.InvalidRef)
	m.Forward = ecs.AddColumn(t, "forward", mgl32.Vec3{0, 0, 1})
	m.Up = ecs.AddColumn(t, "up", mgl32.Vec3{0, 1, 0})

	ecs.ExposeConverted(m, m.FOV, "fov", ecs.Degrees, ecs.Radians, ecs.Category("Camera"))
	ecs.Expose(m, m.NearPlane, "nearPlane", ecs.Category("Camera"))
	ecs.Expose(m, m.FarPlane, "farPlane", ecs.Category("Camera"))

	m.Owns(m.Frustum, frustums.ResourceManager, "CameraFrustum")
	return m
}

// CreateCamera creates a camera with its frustum and resets it.
func (m *CameraManager) CreateCamera(entity ecs.Ref) (ecs.Ref, error) {
	ref, err := m.Create(entity)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

// UpdateFrustumsAndMatrices recomputes direction vectors, matrices and
// culling planes. Cameras whose entity has no node keep their last state.
func (m *CameraManager) UpdateFrustumsAndMatrices(cameras []ecs.Ref) {
	for _, cam := range cameras {
		if !m.Alive(cam) {
			continue
		}
		node := m.nodes.ForEntity(m.Entity(cam))
		if !node.IsValid() {
			m.Logger().Debug("camera without node", zap.Stringer("ref", cam))
			continue
		}
		pos := m.nodes.WorldPosition(node)
		ori := m.nodes.WorldOrientation(node)
		forward := ori.Rotate(mgl32.Vec3{0, 0, 1})
		up := ori.Rotate(mgl32.Vec3{0, 1, 0})
		m.Forward.Set(cam, forward)
		m.Up.Set(cam, up)

		f := m.Frustum.Get(cam)
		if !m.frustums.Alive(f) {
			m.Logger().Warn("camera frustum gone", zap.Stringer("ref", cam), zap.Stringer("frustum", f))
			continue
		}
		m.frustums.PrevViewMatrix.Set(f, m.frustums.ViewMatrix.Get(f))
		m.frustums.ViewMatrix.Set(f, mgl32.LookAtV(pos, pos.Add(forward), up))
		m.frustums.AspectRatio.Set(f, m.aspect)
		m.frustums.ProjectionMatrix.Set(f, m.ComputeCustomProjMatrix(cam, m.NearPlane.Get(cam), m.FarPlane.Get(cam)))
		m.frustums.UpdateDerived(f)
	}
}

// ComputeCustomProjMatrix builds a perspective projection with the camera's
// field of view and the given clip distances.
func (m *CameraManager) ComputeCustomProjMatrix(cam ecs.Ref, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(m.FOV.Get(cam), m.aspect, near, far)
}

func (m *CameraManager) ViewMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.ViewMatrix)
}

func (m *CameraManager) PrevViewMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.PrevViewMatrix)
}

func (m *CameraManager) InverseViewMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.InvViewMatrix)
}

func (m *CameraManager) ProjectionMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.ProjectionMatrix)
}

func (m *CameraManager) InverseProjectionMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.InvProjectionMatrix)
}

func (m *CameraManager) ViewProjectionMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.ViewProjectionMatrix)
}

func (m *CameraManager) InverseViewProjectionMatrix(cam ecs.Ref) mgl32.Mat4 {
	return m.matrix(cam, m.frustums.InvViewProjectionMatrix)
}

// matrix reads one frustum matrix; a camera whose frustum is not alive yields
// the identity.
func (m *CameraManager) matrix(cam ecs.Ref, col *ecs.Column[mgl32.Mat4]) mgl32.Mat4 {
	if !m.Alive(cam) {
		return mgl32.Ident4()
	}
	f := m.Frustum.Get(cam)
	if !m.frustums.Alive(f) {
		return mgl32.Ident4()
	}
	return col.Get(f)
}

// Position is the camera node's world position.
func (m *CameraManager) Position(cam ecs.Ref) mgl32.Vec3 {
	node := m.nodes.ForEntity(m.Entity(cam))
	if !node.IsValid() {
		return mgl32.Vec3{}
	}
	return m.nodes.WorldPosition(node)
}

// Frustums returns the frustum manager cameras draw from.
func (m *CameraManager) Frustums() *resource.FrustumManager { return m.frustums }
