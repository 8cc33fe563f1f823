package resource

import (
	"math"

	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const MeshDataKind = "MeshData"

// MeshDataManager describes loaded geometry. Vertex buffers live on the GPU
// side; only what culling and draw submission need is kept here.
type MeshDataManager struct {
	*ecs.ResourceManager

	VertexCount    *ecs.Column[int32]
	BoundingRadius *ecs.Column[float32]
}

func NewMeshDataManager(capacity int, log *zap.Logger) *MeshDataManager {
	m := &MeshDataManager{ResourceManager: ecs.NewResourceManager(MeshDataKind, capacity, log)}
	t := m.Table()
	m.VertexCount = ecs.AddColumn(t, "vertexCount", int32(0))
	m.BoundingRadius = ecs.AddColumn(t, "boundingRadius", float32(1))

	ecs.Expose(m, m.VertexCount, "vertexCount", ecs.Category("Mesh"), ecs.ReadOnly())
	ecs.Expose(m, m.BoundingRadius, "boundingRadius", ecs.Category("Mesh"), ecs.ReadOnly())
	return m
}

// CreateBuiltins registers the unit cube every fresh world can reference.
func (m *MeshDataManager) CreateBuiltins() error {
	if m.ByName("cube").IsValid() {
		return nil
	}
	ref, err := m.Create("cube")
	if err != nil {
		return err
	}
	m.ResetToDefault(ref)
	m.SetTransient(ref, true)
	m.VertexCount.Set(ref, 36)
	m.BoundingRadius.Set(ref, float32(math.Sqrt(3)/2))
	return nil
}
