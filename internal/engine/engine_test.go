package engine_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/core/event"
	"github.com/intrinsic/engine/internal/data"
	"github.com/intrinsic/engine/internal/engine"
	"github.com/intrinsic/engine/internal/persist"
	"github.com/intrinsic/engine/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Engine.Seed = 42
	cfg.Capacity.Entity = 256
	cfg.Capacity.Node = 256
	cfg.Capacity.Mesh = 256
	cfg.Capacity.Light = 256
	cfg.Swarm.BoidCount = 8
	return cfg
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(testConfig(), nil, nil)
	require.NoError(t, err)
	return e
}

func TestNewWiresEveryKind(t *testing.T) {
	e := newEngine(t)
	reg := e.World.Registry()

	var components, resources []string
	for _, m := range reg.Components() {
		components = append(components, m.Kind())
	}
	for _, m := range reg.Resources() {
		resources = append(resources, m.Kind())
	}
	assert.Equal(t, []string{"Node", "Mesh", "Light", "Camera", "Swarm"}, components)
	assert.Equal(t, []string{"Frustum", "PostEffect", "MeshData", "Pipeline", "DrawCall"}, resources)

	assert.True(t, e.MeshData.ByName("cube").IsValid())
	assert.True(t, e.PostEffects.BlendTarget().IsValid())
	assert.True(t, e.Scene.Root().IsValid())
	assert.Equal(t, 16, e.Cameras.Capacity())
}

func TestLifecycleEventsReachBus(t *testing.T) {
	e := newEngine(t)
	var created []event.Created
	event.Subscribe(e.Bus, func(c event.Created) { created = append(created, c) })

	ent, err := e.World.CreateEntity("cam")
	require.NoError(t, err)
	_, err = e.World.AddComponent(ent, "Camera")
	require.NoError(t, err)

	e.Bus.SwapBuffers()
	e.Bus.DispatchAll()
	kinds := map[string]int{}
	for _, c := range created {
		kinds[c.Kind]++
	}
	assert.Equal(t, 1, kinds["Camera"])
	assert.Equal(t, 1, kinds["Frustum"], "owned frustum")
	assert.GreaterOrEqual(t, kinds["Entity"], 2, "root and camera entity")
}

func TestDescriptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := ecs.NewDirStore(dir)

	e := newEngine(t)
	fog, err := e.PostEffects.CreatePostEffect("fog")
	require.NoError(t, err)
	e.PostEffects.Scattering.Set(fog, 0.75)
	n, err := e.SaveDescriptors(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "builtins and blend target are transient")

	fresh := newEngine(t)
	n, err = fresh.LoadDescriptors(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	loaded := fresh.PostEffects.ByName("fog")
	require.True(t, loaded.IsValid())
	assert.Equal(t, float32(0.75), fresh.PostEffects.Scattering.Get(loaded))
}

func TestEntitySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	snaps := persist.FileSnapshots{Path: filepath.Join(t.TempDir(), "entities.json")}

	e := newEngine(t)
	ent, err := e.World.CreateEntity("lamp")
	require.NoError(t, err)
	node, err := e.Nodes.CreateNode(ent)
	require.NoError(t, err)
	e.Nodes.Position.Set(node, mgl32.Vec3{1, 2, 3})
	light, err := e.Lights.CreateLight(ent)
	require.NoError(t, err)
	e.Lights.Radius.Set(light, 40)

	var buf bytes.Buffer
	n, err := e.World.SaveEntities(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "root is transient")
	require.NoError(t, snaps.WriteSnapshot(ctx, buf.Bytes(), n))

	fresh := newEngine(t)
	n, err = fresh.LoadEntities(ctx, snaps)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Equal(t, 1, fresh.Lights.Len())
	l := fresh.Lights.Live()[0]
	assert.Equal(t, float32(40), fresh.Lights.Radius.Get(l))
	loadedNode := fresh.Nodes.ForEntity(fresh.Lights.Entity(l))
	assert.Equal(t, fresh.Scene.Root(), fresh.Nodes.Parent(loadedNode))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, fresh.Nodes.WorldPosition(loadedNode))

	empty := newEngine(t)
	n, err = empty.LoadEntities(ctx, persist.FileSnapshots{Path: filepath.Join(t.TempDir(), "none.json")})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRenderPassesAndClose(t *testing.T) {
	e := newEngine(t)
	table, err := data.ParseRenderPassTable([]byte("- name: GBuffer\n- name: Forward\n  material_passes: [Translucent]\n"))
	require.NoError(t, err)

	passes, err := e.NewRenderPasses(table, render.NewRecorder())
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, 2, e.Pipelines.Len())

	swarmEntity, err := e.World.CreateEntity("flock")
	require.NoError(t, err)
	_, err = e.Nodes.CreateNode(swarmEntity)
	require.NoError(t, err)
	require.NoError(t, e.Nodes.AttachChild(e.Scene.Root(), e.Nodes.ForEntity(swarmEntity)))
	swarm, err := e.Swarms.CreateSwarm(swarmEntity)
	require.NoError(t, err)
	e.Swarms.CreateResources([]ecs.Ref{swarm})
	assert.Equal(t, 8, e.Meshes.Len())

	require.NoError(t, e.Close())
	assert.Equal(t, 0, e.Meshes.Len())
	assert.Equal(t, 0, e.Swarms.Len())
	assert.Equal(t, 0, e.Nodes.Len())
	assert.Equal(t, 0, e.World.Entities().Len())
}
