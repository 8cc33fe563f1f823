// Package resource holds the named resource kinds consumed by cameras and
// render passes.
package resource

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const FrustumKind = "Frustum"

// ProjectionType selects how a frustum's projection matrix is built.
type ProjectionType int32

const (
	ProjectionPerspective ProjectionType = iota
	ProjectionOrthographic
)

// Plane indices into Frustum planes.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
	planeCount
)

// Planes are stored as (normal, distance) with normals pointing inwards.
type Planes [planeCount]mgl32.Vec4

// FrustumManager stores view/projection state for cameras and shadow
// casters. Only the projection type and aspect ratio are serialized; the
// matrices are derived every frame.
type FrustumManager struct {
	*ecs.ResourceManager

	ProjectionType *ecs.Column[int32]
	AspectRatio    *ecs.Column[float32]

	ViewMatrix       *ecs.Column[mgl32.Mat4]
	PrevViewMatrix   *ecs.Column[mgl32.Mat4]
	ProjectionMatrix *ecs.Column[mgl32.Mat4]

	InvViewMatrix           *ecs.Column[mgl32.Mat4]
	InvProjectionMatrix     *ecs.Column[mgl32.Mat4]
	ViewProjectionMatrix    *ecs.Column[mgl32.Mat4]
	InvViewProjectionMatrix *ecs.Column[mgl32.Mat4]

	Planes *ecs.Column[Planes]
}

func NewFrustumManager(capacity int, log *zap.Logger) *FrustumManager {
	m := &FrustumManager{ResourceManager: ecs.NewResourceManager(FrustumKind, capacity, log)}
	t := m.Table()
	m.ProjectionType = ecs.AddColumn(t, "projectionType", int32(ProjectionPerspective))
	m.AspectRatio = ecs.AddColumn(t, "aspectRatio", float32(16.0/9.0))

	ident := mgl32.Ident4()
	m.ViewMatrix = ecs.AddColumn(t, "viewMatrix", ident)
	m.PrevViewMatrix = ecs.AddColumn(t, "prevViewMatrix", ident)
	m.ProjectionMatrix = ecs.AddColumn(t, "projectionMatrix", ident)
	m.InvViewMatrix = ecs.AddColumn(t, "invViewMatrix", ident)
	m.InvProjectionMatrix = ecs.AddColumn(t, "invProjectionMatrix", ident)
	m.ViewProjectionMatrix = ecs.AddColumn(t, "viewProjectionMatrix", ident)
	m.InvViewProjectionMatrix = ecs.AddColumn(t, "invViewProjectionMatrix", ident)
	m.Planes = ecs.AddColumn(t, "planes", Planes{})

	ecs.Expose(m, m.ProjectionType, "projectionType", ecs.Category("Frustum"))
	ecs.Expose(m, m.AspectRatio, "aspectRatio", ecs.Category("Frustum"))
	return m
}

func (m *FrustumManager) Projection(ref ecs.Ref) ProjectionType {
	return ProjectionType(m.ProjectionType.Get(ref))
}

// CreateFrustum creates and resets a frustum.
func (m *FrustumManager) CreateFrustum(name string) (ecs.Ref, error) {
	ref, err := m.Create(name)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

// UpdateDerived recomputes inverses, the combined matrix and the culling
// planes from the view and projection matrices.
func (m *FrustumManager) UpdateDerived(ref ecs.Ref) {
	view := m.ViewMatrix.Get(ref)
	proj := m.ProjectionMatrix.Get(ref)
	vp := proj.Mul4(view)

	m.InvViewMatrix.Set(ref, view.Inv())
	m.InvProjectionMatrix.Set(ref, proj.Inv())
	m.ViewProjectionMatrix.Set(ref, vp)
	m.InvViewProjectionMatrix.Set(ref, vp.Inv())
	m.Planes.Set(ref, ExtractPlanes(vp))
}

// ExtractPlanes derives normalized clip planes from a view-projection
// matrix with OpenGL depth range.
func ExtractPlanes(vp mgl32.Mat4) Planes {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)
	p := Planes{
		PlaneLeft:   r3.Add(r0),
		PlaneRight:  r3.Sub(r0),
		PlaneBottom: r3.Add(r1),
		PlaneTop:    r3.Sub(r1),
		PlaneNear:   r3.Add(r2),
		PlaneFar:    r3.Sub(r2),
	}
	for i := range p {
		n := p[i].Vec3().Len()
		if n > 0 {
			p[i] = p[i].Mul(1 / n)
		}
	}
	return p
}

// ContainsSphere reports whether a sphere intersects the frustum.
func (m *FrustumManager) ContainsSphere(ref ecs.Ref, center mgl32.Vec3, radius float32) bool {
	planes := m.Planes.At(ref)
	for i := range planes {
		p := planes[i]
		if p.Vec3().Dot(center)+p.W() < -radius {
			return false
		}
	}
	return true
}
