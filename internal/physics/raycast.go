// Package physics exposes the ray queries gameplay code needs. Solving is
// done elsewhere; this package only answers "what is below me".
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Ray is a half line. Dir is expected to be normalized.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Hit describes the closest intersection of a ray query.
type Hit struct {
	Distance float32
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Raycaster answers ray queries against the static world.
type Raycaster interface {
	Raycast(ray Ray, maxDistance float32) (Hit, bool)
}

// GroundPlane is an infinite horizontal plane at a fixed height.
type GroundPlane struct {
	Height float32
}

func (g GroundPlane) Raycast(ray Ray, maxDistance float32) (Hit, bool) {
	if math.Abs(float64(ray.Dir.Y())) < 1e-6 {
		return Hit{}, false
	}
	t := (g.Height - ray.Origin.Y()) / ray.Dir.Y()
	if t < 0 || t > maxDistance {
		return Hit{}, false
	}
	return Hit{Distance: t, Position: ray.At(t), Normal: mgl32.Vec3{0, 1, 0}}, true
}

// Colliders tests several raycasters and keeps the closest hit.
type Colliders []Raycaster

func (c Colliders) Raycast(ray Ray, maxDistance float32) (Hit, bool) {
	var best Hit
	found := false
	for _, r := range c {
		hit, ok := r.Raycast(ray, maxDistance)
		if ok && (!found || hit.Distance < best.Distance) {
			best, found = hit, true
		}
	}
	return best, found
}
