package ecs_test

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/intrinsic/engine/internal/core/ecs"
)

// sampleResources is a small resource kind covering every property type.
type sampleResources struct {
	*ecs.ResourceManager
	intensity *ecs.Column[float32]
	color     *ecs.Column[mgl32.Vec3]
	tint      *ecs.Column[mgl32.Vec4]
	offset    *ecs.Column[mgl32.Vec2]
	enabled   *ecs.Column[bool]
	layer     *ecs.Column[int32]
	label     *ecs.Column[string]
	angle     *ecs.Column[float32]
	rotation  *ecs.Column[mgl32.Quat]
}

func newSampleResources(capacity int) *sampleResources {
	m := &sampleResources{ResourceManager: ecs.NewResourceManager("Sample", capacity, nil)}
	t := m.Table()
	m.intensity = ecs.AddColumn(t, "intensity", float32(1))
	m.intensity.SetLerp(ecs.LerpFloat32)
	m.color = ecs.AddColumn(t, "color", mgl32.Vec3{1, 1, 1})
	m.color.SetLerp(ecs.LerpVec3)
	m.tint = ecs.AddColumn(t, "tint", mgl32.Vec4{0, 0, 0, 1})
	m.offset = ecs.AddColumn(t, "offset", mgl32.Vec2{})
	m.enabled = ecs.AddColumn(t, "enabled", true)
	m.layer = ecs.AddColumn(t, "layer", int32(3))
	m.label = ecs.AddColumn(t, "label", "none")
	m.angle = ecs.AddColumn(t, "angle", float32(math.Pi/2))
	m.rotation = ecs.AddColumn(t, "rotation", mgl32.QuatIdent())

	ecs.Expose(m, m.intensity, "intensity", ecs.Category("Lighting"))
	ecs.Expose(m, m.color, "color")
	ecs.Expose(m, m.tint, "tint")
	ecs.Expose(m, m.offset, "offset")
	ecs.Expose(m, m.enabled, "enabled")
	ecs.Expose(m, m.layer, "layer", ecs.ReadOnly())
	ecs.Expose(m, m.label, "label", ecs.Internal())
	ecs.ExposeConverted(m, m.angle, "angle", ecs.Degrees, ecs.Radians)
	ecs.Expose(m, m.rotation, "rotation")
	return m
}

// ownerComponents owns one sample resource per component.
type ownerComponents struct {
	*ecs.ComponentManager
	target *ecs.Column[ecs.Ref]
	speed  *ecs.Column[float32]
}

func newOwnerComponents(capacity int, target *ecs.ResourceManager) *ownerComponents {
	m := &ownerComponents{ComponentManager: ecs.NewComponentManager("Owner", capacity, nil)}
	m.target = ecs.AddColumn(m.Table(), "target", ecs.InvalidRef)
	m.speed = ecs.AddColumn(m.Table(), "speed", float32(2))
	ecs.Expose(m, m.speed, "speed")
	m.Owns(m.target, target, "OwnedSample")
	return m
}

// plainComponents has no dependencies.
type plainComponents struct {
	*ecs.ComponentManager
	weight *ecs.Column[float32]
}

func newPlainComponents(capacity int) *plainComponents {
	m := &plainComponents{ComponentManager: ecs.NewComponentManager("Plain", capacity, nil)}
	m.weight = ecs.AddColumn(m.Table(), "weight", float32(5))
	ecs.Expose(m, m.weight, "weight")
	return m
}
