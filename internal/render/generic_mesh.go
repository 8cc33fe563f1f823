// Package render drives draw submission from the component data. GPU work
// itself happens behind Submitter.
package render

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/component"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/data"
	"github.com/intrinsic/engine/internal/resource"
	"github.com/intrinsic/engine/internal/scene"
)

// Submission is one draw call ready for the backend.
type Submission struct {
	Pipeline       ecs.Ref
	DrawCall       ecs.Ref
	MeshData       ecs.Ref
	Entity         ecs.Ref
	World          mgl32.Mat4
	ViewProjection mgl32.Mat4
	Distance       float32
}

// Submitter receives the ordered draw calls of a pass each frame.
type Submitter interface {
	Submit(pass string, items []Submission)
}

// Managers are the stores a pass reads from and allocates in.
type Managers struct {
	Meshes    *component.MeshManager
	Nodes     *scene.NodeManager
	Cameras   *component.CameraManager
	Pipelines *resource.PipelineManager
	DrawCalls *resource.DrawCallManager
}

// Stats counts the work of the last Render call.
type Stats struct {
	Considered int
	Culled     int
	Submitted  int
}

// GenericMesh renders every mesh whose material pass is one of the pass's
// material passes.
type GenericMesh struct {
	m      Managers
	out    Submitter
	log    *zap.Logger
	name   string
	order  data.RenderOrder
	passes map[string]struct{}

	pipeline  ecs.Ref
	drawCalls []ecs.Ref
	items     []Submission
	stats     Stats
}

func NewGenericMesh(m Managers, out Submitter, log *zap.Logger) *GenericMesh {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenericMesh{m: m, out: out, log: log}
}

// Init creates the pass pipeline. Draw calls are allocated lazily while
// rendering and reused across frames.
func (g *GenericMesh) Init(def data.RenderPass) error {
	if g.pipeline.IsValid() {
		return fmt.Errorf("render pass %s: already initialized", g.name)
	}
	p := g.m.Pipelines
	ref, err := p.Create(def.Name)
	if err != nil {
		return fmt.Errorf("render pass %s: create pipeline: %w", def.Name, err)
	}
	p.ResetToDefault(ref)
	p.SetTransient(ref, true)
	p.VertexShader.Set(ref, def.VertexShader)
	p.FragmentShader.Set(ref, def.FragmentShader)
	if len(def.MaterialPasses) > 0 {
		p.MaterialPass.Set(ref, def.MaterialPasses[0])
	}

	g.name = def.Name
	g.order = def.RenderOrder
	g.passes = make(map[string]struct{}, len(def.MaterialPasses))
	for _, mp := range def.MaterialPasses {
		g.passes[mp] = struct{}{}
	}
	g.pipeline = ref
	g.log.Debug("render pass ready", zap.String("pass", def.Name), zap.Strings("materialPasses", def.MaterialPasses))
	return nil
}

func (g *GenericMesh) Name() string      { return g.name }
func (g *GenericMesh) Pipeline() ecs.Ref { return g.pipeline }
func (g *GenericMesh) Stats() Stats      { return g.stats }

// Render culls meshes against the camera frustum and submits the rest in the
// pass's render order.
func (g *GenericMesh) Render(_ float32, camera ecs.Ref) error {
	if !g.pipeline.IsValid() {
		return fmt.Errorf("render pass %s: not initialized", g.name)
	}
	cams := g.m.Cameras
	if !cams.Alive(camera) {
		return fmt.Errorf("render pass %s: camera %s: %w", g.name, camera, ecs.ErrInvalidReference)
	}
	frustum := cams.Frustum.Get(camera)
	frustums := cams.Frustums()
	eye := cams.Position(camera)
	vp := cams.ViewProjectionMatrix(camera)

	g.stats = Stats{}
	g.items = g.items[:0]
	meshes, nodes := g.m.Meshes, g.m.Nodes

	ecs.Each2(meshes.ComponentManager, nodes.ComponentManager, func(entity, mesh, node ecs.Ref) {
		if _, ok := g.passes[meshes.MaterialPass.Get(mesh)]; !ok {
			return
		}
		meshData := meshes.MeshData.Get(mesh)
		if !meshData.IsValid() || nodes.Flags.Get(node)&scene.FlagHidden != 0 {
			return
		}
		g.stats.Considered++

		center := nodes.WorldPosition(node)
		size := nodes.WorldSize(node)
		radius := meshes.BoundingRadius(mesh) * max(size.X(), size.Y(), size.Z())
		if !frustums.ContainsSphere(frustum, center, radius) {
			g.stats.Culled++
			return
		}
		g.items = append(g.items, Submission{
			Pipeline:       g.pipeline,
			MeshData:       meshData,
			Entity:         entity,
			World:          nodes.WorldMatrix(node),
			ViewProjection: vp,
			Distance:       center.Sub(eye).Len(),
		})
	})

	g.sort()
	g.assignDrawCalls()
	g.stats.Submitted = len(g.items)
	if g.out != nil && len(g.items) > 0 {
		g.out.Submit(g.name, g.items)
	}
	return nil
}

func (g *GenericMesh) sort() {
	if g.order == data.BackToFront {
		slices.SortStableFunc(g.items, func(a, b Submission) int { return cmp.Compare(b.Distance, a.Distance) })
		return
	}
	slices.SortStableFunc(g.items, func(a, b Submission) int { return cmp.Compare(a.Distance, b.Distance) })
}

// assignDrawCalls binds each submission to a draw call resource, growing the
// pool when the visible set outgrows it. Submissions beyond the draw call
// capacity are dropped.
func (g *GenericMesh) assignDrawCalls() {
	dc := g.m.DrawCalls
	for len(g.drawCalls) < len(g.items) {
		ref, err := dc.Create(fmt.Sprintf("%s#%d", g.name, len(g.drawCalls)))
		if err != nil {
			g.log.Warn("draw call pool exhausted", zap.String("pass", g.name),
				zap.Int("visible", len(g.items)), zap.Int("pool", len(g.drawCalls)), zap.Error(err))
			g.items = g.items[:len(g.drawCalls)]
			break
		}
		dc.ResetToDefault(ref)
		dc.SetTransient(ref, true)
		dc.Pipeline.Set(ref, g.pipeline)
		g.drawCalls = append(g.drawCalls, ref)
	}
	for i := range g.items {
		it := &g.items[i]
		ref := g.drawCalls[i]
		node := g.m.Nodes.ForEntity(it.Entity)
		dc.MeshData.Set(ref, it.MeshData)
		dc.Node.Set(ref, node)
		dc.SortDistance.Set(ref, it.Distance)
		it.DrawCall = ref
	}
}

// Destroy releases the pipeline and every draw call of the pass.
func (g *GenericMesh) Destroy() {
	for i := len(g.drawCalls) - 1; i >= 0; i-- {
		if err := g.m.DrawCalls.Destroy(g.drawCalls[i]); err != nil {
			g.log.Warn("destroy draw call", zap.String("pass", g.name), zap.Error(err))
		}
	}
	g.drawCalls = nil
	if g.pipeline.IsValid() {
		if err := g.m.Pipelines.Destroy(g.pipeline); err != nil {
			g.log.Warn("destroy pipeline", zap.String("pass", g.name), zap.Error(err))
		}
	}
	g.pipeline = ecs.InvalidRef
	g.items = nil
}

// Recorder is a Submitter that keeps the last submission per pass.
type Recorder struct {
	Frames map[string][]Submission
}

func NewRecorder() *Recorder { return &Recorder{Frames: make(map[string][]Submission)} }

func (r *Recorder) Submit(pass string, items []Submission) {
	r.Frames[pass] = append(r.Frames[pass][:0], items...)
}
