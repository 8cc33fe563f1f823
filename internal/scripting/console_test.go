package scripting_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/intrinsic/engine/internal/component"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/resource"
	"github.com/intrinsic/engine/internal/scene"
	"github.com/intrinsic/engine/internal/scripting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	world   *ecs.World
	lights  *component.LightManager
	effects *resource.PostEffectManager
	console *scripting.Console
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		world:   ecs.NewWorld(16, nil),
		lights:  component.NewLightManager(8, nil),
		effects: resource.NewPostEffectManager(8, nil),
	}
	require.NoError(t, e.effects.Init())
	e.world.RegisterComponent(e.lights.ComponentManager)
	e.world.RegisterResource(e.effects.ResourceManager)
	e.console = scripting.NewConsole(e.world, nil)
	t.Cleanup(e.console.Close)
	return e
}

func TestConsoleComponentOps(t *testing.T) {
	e := newEnv(t)
	err := e.console.Exec(`
		local dod = require("dod")
		local lamp = dod.create_entity("lamp")
		local light = dod.create_component("Light", lamp)
		assert(dod.component("Light", lamp) == light)
		assert(dod.get("Light", light, "radius") == 10)

		dod.set("Light", light, "radius", 25)
		dod.set("Light", light, "color", {0.5, 0.25, 1})
		assert(dod.get("Light", light, "radius") == 25)
		assert(dod.get("Light", light, "color")[2] == 0.25)
		assert(dod.count("Light") == 1)

		dod.reset("Light", light)
		assert(dod.get("Light", light, "radius") == 10)
		dod.set("Light", light, "intensity", 3)
		last = light
	`)
	require.NoError(t, err)

	ref := e.lights.Live()[0]
	assert.Equal(t, float32(3), e.lights.Intensity.Get(ref))
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, e.lights.Color.Get(ref))
	assert.Equal(t, "lamp", e.world.Entities().Name(e.lights.Entity(ref)))

	require.NoError(t, e.console.Exec(`
		local dod = require("dod")
		dod.destroy_entity(dod.create_entity("tmp"))
		local lamp = dod.create_entity("other")
		dod.create_component("Light", lamp)
		dod.mark_for_destroy(lamp)
		assert(dod.alive("Entity", lamp))
		assert(not dod.alive("Light", nil))
	`))
	assert.Equal(t, 2, e.lights.Len())
	assert.Equal(t, 1, e.world.FlushDestroyQueue())
	assert.Equal(t, 1, e.lights.Len())
}

func TestConsoleResourceOps(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.console.Exec(`
		local dod = require("dod")
		local fog = dod.create_resource("PostEffect", "fog")
		dod.set("PostEffect", fog, "Scattering", 0.5)
		assert(dod.resource("PostEffect", "fog") == fog)
		assert(dod.resource("PostEffect", "nope") == nil)
		assert(tostring(fog) ~= "")

		dod.set("PostEffect", fog, "name", "mist")
		assert(dod.resource("PostEffect", "mist") == fog)
		dod.destroy_resource("PostEffect", dod.create_resource("PostEffect", "gone"))
	`))

	mist := e.effects.ByName("mist")
	require.True(t, mist.IsValid())
	assert.Equal(t, float32(0.5), e.effects.Scattering.Get(mist))
	assert.False(t, e.effects.ByName("gone").IsValid())
}

func TestConsoleRefusesOwnedResource(t *testing.T) {
	e := newEnv(t)
	nodes := scene.NewNodeManager(8, nil)
	frustums := resource.NewFrustumManager(2, nil)
	cameras := component.NewCameraManager(2, nodes, frustums, 1, nil)
	e.world.RegisterResource(frustums.ResourceManager)
	e.world.RegisterComponent(nodes.ComponentManager)
	e.world.RegisterComponent(cameras.ComponentManager)

	ent, err := e.world.CreateEntity("cam")
	require.NoError(t, err)
	cam, err := cameras.CreateCamera(ent)
	require.NoError(t, err)
	frustum := cameras.Frustum.Get(cam)

	err = e.console.Exec(fmt.Sprintf(`
		local dod = require("dod")
		dod.destroy_resource(%q, dod.resource(%q, %q))
	`, resource.FrustumKind, resource.FrustumKind, frustums.Name(frustum)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ecs.ErrInvalidReference.Error())
	assert.True(t, frustums.Alive(frustum))
	assert.Equal(t, frustum, cameras.Frustum.Get(cam))
}

func TestConsoleErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown kind", `local dod = require("dod"); dod.create_component("Nope", dod.create_entity("x"))`, "unknown kind"},
		{"type mismatch", `local dod = require("dod"); local l = dod.create_component("Light", dod.create_entity("x")); dod.set("Light", l, "radius", "big")`, "type mismatch"},
		{"duplicate name", `local dod = require("dod"); dod.create_resource("PostEffect", "a"); dod.create_resource("PostEffect", "a")`, "duplicate"},
		{"missing property", `local dod = require("dod"); local l = dod.create_component("Light", dod.create_entity("x")); dod.get("Light", l, "nope")`, "no property"},
		{"not a ref", `local dod = require("dod"); dod.destroy_entity(5)`, "userdata expected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.console.Exec(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConsoleLoadDirAndTick(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`x = x * 10`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`x = 1`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.lua"),
		[]byte(`function on_tick(dt) ticks = (ticks or 0) + 1; last_dt = dt end`), 0o644))

	e := newEnv(t)
	require.NoError(t, e.console.LoadDir(dir))
	require.NoError(t, e.console.LoadDir(filepath.Join(dir, "missing")))

	e.console.Tick(0.5)
	e.console.Tick(0.25)
	assert.NoError(t, e.console.Exec(`assert(x == 10); assert(ticks == 2); assert(last_dt == 0.25)`))
}
