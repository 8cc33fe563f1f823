// Package engine builds the managers from configuration and wires them into
// one world. There are no globals: everything hangs off Engine.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/component"
	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/core/event"
	"github.com/intrinsic/engine/internal/data"
	"github.com/intrinsic/engine/internal/persist"
	"github.com/intrinsic/engine/internal/physics"
	"github.com/intrinsic/engine/internal/render"
	"github.com/intrinsic/engine/internal/resource"
	"github.com/intrinsic/engine/internal/scene"
)

type Engine struct {
	Config *config.Config
	Log    *zap.Logger
	Bus    *event.Bus
	World  *ecs.World
	Scene  *scene.Scene
	Rand   *rand.Rand

	Frustums    *resource.FrustumManager
	PostEffects *resource.PostEffectManager
	MeshData    *resource.MeshDataManager
	Pipelines   *resource.PipelineManager
	DrawCalls   *resource.DrawCallManager

	Nodes   *scene.NodeManager
	Meshes  *component.MeshManager
	Lights  *component.LightManager
	Cameras *component.CameraManager
	Swarms  *component.SwarmManager
}

// New creates every manager with its configured capacity. Components are
// registered parent-first: nodes before the kinds that read them and swarms
// last, so entity teardown removes boids while the scene still exists.
// ground may be nil, in which case a plane at height 0 is used.
func New(cfg *config.Config, ground physics.Raycaster, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if ground == nil {
		ground = physics.GroundPlane{}
	}
	c := cfg.Capacity
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		Config: cfg,
		Log:    log,
		Bus:    event.NewBus(),
		World:  ecs.NewWorld(c.Entity, log.Named("entity")),
		Rand:   rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),

		Frustums:    resource.NewFrustumManager(c.Frustum, log.Named("frustum")),
		PostEffects: resource.NewPostEffectManager(c.PostEffect, log.Named("post_effect")),
		MeshData:    resource.NewMeshDataManager(c.MeshData, log.Named("mesh_data")),
		Pipelines:   resource.NewPipelineManager(c.Pipeline, log.Named("pipeline")),
		DrawCalls:   resource.NewDrawCallManager(c.DrawCall, log.Named("draw_call")),

		Nodes:  scene.NewNodeManager(c.Node, log.Named("node")),
		Lights: component.NewLightManager(c.Light, log.Named("light")),
	}
	e.Meshes = component.NewMeshManager(c.Mesh, e.MeshData, log.Named("mesh"))
	e.Cameras = component.NewCameraManager(c.Camera, e.Nodes, e.Frustums, cfg.Camera.AspectRatio, log.Named("camera"))

	w := e.World
	w.RegisterResource(e.Frustums.ResourceManager)
	w.RegisterResource(e.PostEffects.ResourceManager)
	w.RegisterResource(e.MeshData.ResourceManager)
	w.RegisterResource(e.Pipelines.ResourceManager)
	w.RegisterResource(e.DrawCalls.ResourceManager)
	w.RegisterComponent(e.Nodes.ComponentManager)
	w.RegisterComponent(e.Meshes.ComponentManager)
	w.RegisterComponent(e.Lights.ComponentManager)
	w.RegisterComponent(e.Cameras.ComponentManager)

	forward := event.Forward(e.Bus)
	w.Entities().Observe(forward)
	for _, m := range w.Registry().Resources() {
		m.Observe(forward)
	}
	for _, m := range w.Registry().Components() {
		m.Observe(forward)
	}

	var err error
	if e.Scene, err = scene.New(w, e.Nodes); err != nil {
		return nil, err
	}

	e.Swarms = component.NewSwarmManager(c.Swarm, cfg.Swarm, component.SwarmDeps{
		World:     w,
		Scene:     e.Scene,
		Meshes:    e.Meshes,
		Lights:    e.Lights,
		Raycaster: ground,
		Rand:      e.Rand,
	}, log.Named("swarm"))
	w.RegisterComponent(e.Swarms.ComponentManager)
	e.Swarms.Observe(forward)

	w.SetAssertRefs(cfg.Engine.AssertRefs)

	if err := e.PostEffects.Init(); err != nil {
		return nil, fmt.Errorf("init post effects: %w", err)
	}
	if err := e.MeshData.CreateBuiltins(); err != nil {
		return nil, fmt.Errorf("create builtin meshes: %w", err)
	}
	log.Debug("engine ready", zap.Int64("seed", seed),
		zap.Int("components", len(w.Registry().Components())),
		zap.Int("resources", len(w.Registry().Resources())))
	return e, nil
}

// LoadDescriptors loads every resource kind from the store. Kinds that fail
// are reported but do not stop the others.
func (e *Engine) LoadDescriptors(ctx context.Context, store ecs.DescriptorStore) (int, error) {
	var errs []error
	total := 0
	for _, m := range e.World.Registry().Resources() {
		n, err := m.LoadFrom(ctx, store)
		if err != nil {
			errs = append(errs, err)
		}
		total += n
		event.Emit(e.Bus, event.DescriptorsLoaded{Kind: m.Kind(), Count: n})
	}
	return total, errors.Join(errs...)
}

// SaveDescriptors writes every non-transient resource to the store.
func (e *Engine) SaveDescriptors(ctx context.Context, store ecs.DescriptorStore) (int, error) {
	var errs []error
	total := 0
	for _, m := range e.World.Registry().Resources() {
		n, err := m.SaveTo(ctx, store)
		if err != nil {
			errs = append(errs, err)
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// LoadEntities restores the latest entity snapshot. Loaded top-level nodes
// are attached to the scene root. A missing snapshot loads nothing.
func (e *Engine) LoadEntities(ctx context.Context, snapshots persist.SnapshotStore) (int, error) {
	body, err := snapshots.LatestSnapshot(ctx)
	if errors.Is(err, persist.ErrNoSnapshot) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := e.World.LoadEntities(bytes.NewReader(body))

	root := e.Scene.Root()
	for _, node := range e.Nodes.Live() {
		if node == root || e.Nodes.Parent(node).IsValid() {
			continue
		}
		if aerr := e.Nodes.AttachChild(root, node); aerr != nil {
			e.Log.Warn("attach loaded node", zap.Stringer("node", node), zap.Error(aerr))
		}
	}
	e.Nodes.RebuildTreeAndUpdateTransforms()
	return n, err
}

// NewRenderPasses initializes one generic mesh pass per definition, in
// definition order.
func (e *Engine) NewRenderPasses(table *data.RenderPassTable, out render.Submitter) ([]*render.GenericMesh, error) {
	m := render.Managers{
		Meshes:    e.Meshes,
		Nodes:     e.Nodes,
		Cameras:   e.Cameras,
		Pipelines: e.Pipelines,
		DrawCalls: e.DrawCalls,
	}
	passes := make([]*render.GenericMesh, 0, table.Count())
	for _, def := range table.All() {
		p := render.NewGenericMesh(m, out, e.Log.Named("render"))
		if err := p.Init(def); err != nil {
			for _, done := range passes {
				done.Destroy()
			}
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// Close destroys the scene and with it every entity hanging off the root.
func (e *Engine) Close() error {
	return e.Scene.Close()
}
