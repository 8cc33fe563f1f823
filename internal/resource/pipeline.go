package resource

import (
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const (
	PipelineKind = "Pipeline"
	DrawCallKind = "DrawCall"
)

// PipelineManager stores shader bindings of render passes.
type PipelineManager struct {
	*ecs.ResourceManager

	VertexShader   *ecs.Column[string]
	FragmentShader *ecs.Column[string]
	MaterialPass   *ecs.Column[string]
}

func NewPipelineManager(capacity int, log *zap.Logger) *PipelineManager {
	m := &PipelineManager{ResourceManager: ecs.NewResourceManager(PipelineKind, capacity, log)}
	t := m.Table()
	m.VertexShader = ecs.AddColumn(t, "vertexShader", "")
	m.FragmentShader = ecs.AddColumn(t, "fragmentShader", "")
	m.MaterialPass = ecs.AddColumn(t, "materialPass", "")

	ecs.Expose(m, m.VertexShader, "vertexShader", ecs.Category("Pipeline"))
	ecs.Expose(m, m.FragmentShader, "fragmentShader", ecs.Category("Pipeline"))
	ecs.Expose(m, m.MaterialPass, "materialPass", ecs.Category("Pipeline"))
	return m
}

// DrawCallManager holds one submission record per (pass, mesh) pair.
type DrawCallManager struct {
	*ecs.ResourceManager

	Pipeline      *ecs.Column[ecs.Ref]
	MeshData      *ecs.Column[ecs.Ref]
	Node          *ecs.Column[ecs.Ref]
	InstanceCount *ecs.Column[int32]
	SortDistance  *ecs.Column[float32]
}

func NewDrawCallManager(capacity int, log *zap.Logger) *DrawCallManager {
	m := &DrawCallManager{ResourceManager: ecs.NewResourceManager(DrawCallKind, capacity, log)}
	t := m.Table()
	m.Pipeline = ecs.AddColumn(t, "pipeline", ecs.InvalidRef)
	m.MeshData = ecs.AddColumn(t, "meshData", ecs.InvalidRef)
	m.Node = ecs.AddColumn(t, "node", ecs.InvalidRef)
	m.InstanceCount = ecs.AddColumn(t, "instanceCount", int32(1))
	m.SortDistance = ecs.AddColumn(t, "sortDistance", float32(0))

	ecs.Expose(m, m.InstanceCount, "instanceCount", ecs.Category("DrawCall"))
	return m
}
