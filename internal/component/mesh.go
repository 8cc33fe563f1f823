package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/resource"
)

const (
	MeshKind  = "Mesh"
	LightKind = "Light"
)

// MeshManager binds an entity to a mesh resource by name. The resource is
// resolved in CreateResources so descriptors can be loaded before meshes.
type MeshManager struct {
	*ecs.ComponentManager

	MeshName     *ecs.Column[string]
	MaterialPass *ecs.Column[string]
	MeshData     *ecs.Column[ecs.Ref]

	data *resource.MeshDataManager
}

func NewMeshManager(capacity int, data *resource.MeshDataManager, log *zap.Logger) *MeshManager {
	m := &MeshManager{
		ComponentManager: ecs.NewComponentManager(MeshKind, capacity, log),
		data:             data,
	}
	t := m.Table()
	m.MeshName = ecs.AddColumn(t, "meshName", "cube")
	m.MaterialPass = ecs.AddColumn(t, "materialPass", "GBuffer")
	m.MeshData = ecs.AddColumn(t, "meshData", ecs.InvalidRef)

	ecs.Expose(m, m.MeshName, "meshName", ecs.Category("Mesh"))
	ecs.Expose(m, m.MaterialPass, "materialPass", ecs.Category("Mesh"))

	m.SetResourceHooks(m.resolve, m.release)
	return m
}

func (m *MeshManager) CreateMesh(entity ecs.Ref) (ecs.Ref, error) {
	ref, err := m.Create(entity)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

func (m *MeshManager) resolve(meshes []ecs.Ref) {
	for _, ref := range meshes {
		name := m.MeshName.Get(ref)
		data := m.data.ByName(name)
		if !data.IsValid() {
			m.Logger().Warn("unknown mesh", zap.String("mesh", name), zap.Stringer("ref", ref))
		}
		m.MeshData.Set(ref, data)
	}
}

func (m *MeshManager) release(meshes []ecs.Ref) {
	for _, ref := range meshes {
		m.MeshData.Set(ref, ecs.InvalidRef)
	}
}

// BoundingRadius is the radius of the resolved mesh, or 0 if unresolved.
func (m *MeshManager) BoundingRadius(ref ecs.Ref) float32 {
	data := m.MeshData.Get(ref)
	if !m.data.Alive(data) {
		return 0
	}
	return m.data.BoundingRadius.Get(data)
}

// LightManager stores point lights.
type LightManager struct {
	*ecs.ComponentManager

	Color     *ecs.Column[mgl32.Vec3]
	Radius    *ecs.Column[float32]
	Intensity *ecs.Column[float32]
}

func NewLightManager(capacity int, log *zap.Logger) *LightManager {
	m := &LightManager{ComponentManager: ecs.NewComponentManager(LightKind, capacity, log)}
	t := m.Table()
	m.Color = ecs.AddColumn(t, "color", mgl32.Vec3{1, 1, 1})
	m.Radius = ecs.AddColumn(t, "radius", float32(10))
	m.Intensity = ecs.AddColumn(t, "intensity", float32(1))

	ecs.Expose(m, m.Color, "color", ecs.Category("Light"))
	ecs.Expose(m, m.Radius, "radius", ecs.Category("Light"))
	ecs.Expose(m, m.Intensity, "intensity", ecs.Category("Light"))
	return m
}

func (m *LightManager) CreateLight(entity ecs.Ref) (ecs.Ref, error) {
	ref, err := m.Create(entity)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}
