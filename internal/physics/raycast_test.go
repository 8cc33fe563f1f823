package physics_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/intrinsic/engine/internal/physics"
	"github.com/stretchr/testify/assert"
)

func TestGroundPlaneRaycast(t *testing.T) {
	down := mgl32.Vec3{0, -1, 0}
	tests := []struct {
		name    string
		plane   physics.GroundPlane
		origin  mgl32.Vec3
		dir     mgl32.Vec3
		maxDist float32
		hit     bool
		dist    float32
	}{
		{"straight down", physics.GroundPlane{Height: 0}, mgl32.Vec3{3, 10, 2}, down, 1000, true, 10},
		{"raised plane", physics.GroundPlane{Height: 4}, mgl32.Vec3{0, 10, 0}, down, 1000, true, 6},
		{"too far", physics.GroundPlane{Height: 0}, mgl32.Vec3{0, 2000, 0}, down, 1000, false, 0},
		{"below plane", physics.GroundPlane{Height: 5}, mgl32.Vec3{0, 1, 0}, down, 1000, false, 0},
		{"parallel", physics.GroundPlane{Height: 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, 1000, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := tt.plane.Raycast(physics.Ray{Origin: tt.origin, Dir: tt.dir}, tt.maxDist)
			assert.Equal(t, tt.hit, ok)
			if ok {
				assert.InDelta(t, tt.dist, hit.Distance, 1e-5)
				assert.InDelta(t, tt.plane.Height, hit.Position.Y(), 1e-5)
			}
		})
	}
}

func TestCollidersClosest(t *testing.T) {
	c := physics.Colliders{physics.GroundPlane{Height: 0}, physics.GroundPlane{Height: 5}}

	hit, ok := c.Raycast(physics.Ray{Origin: mgl32.Vec3{0, 10, 0}, Dir: mgl32.Vec3{0, -1, 0}}, 100)
	assert.True(t, ok)
	assert.InDelta(t, 5, hit.Distance, 1e-5)
}
