package component

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/physics"
	"github.com/intrinsic/engine/internal/scene"
)

const (
	SwarmKind = "Swarm"

	epsilon          = 1e-6
	noGroundHeight   = -1e7
	orientationNudge = 0.01
)

// Boid is the simulation state of one swarm member.
type Boid struct {
	Pos mgl32.Vec3
	Vel mgl32.Vec3
}

// SwarmDeps are the collaborators a swarm spawns into and queries.
type SwarmDeps struct {
	World     *ecs.World
	Scene     *scene.Scene
	Meshes    *MeshManager
	Lights    *LightManager
	Raycaster physics.Raycaster // nil means no ground
	Rand      *rand.Rand
}

// SwarmManager simulates flocks of boids. Each boid is a full entity with a
// node, a mesh and a light, spawned in CreateResources.
type SwarmManager struct {
	*ecs.ComponentManager

	BoidMeshName    *ecs.Column[string]
	Boids           *ecs.Column[[]Boid]
	Nodes           *ecs.Column[[]ecs.Ref]
	CenterOfMass    *ecs.Column[mgl32.Vec3]
	AverageVelocity *ecs.Column[mgl32.Vec3]

	cfg   config.SwarmConfig
	deps  SwarmDeps
	nodes *scene.NodeManager
}

func NewSwarmManager(capacity int, cfg config.SwarmConfig, deps SwarmDeps, log *zap.Logger) *SwarmManager {
	m := &SwarmManager{
		ComponentManager: ecs.NewComponentManager(SwarmKind, capacity, log),
		cfg:              cfg,
		deps:             deps,
		nodes:            deps.Scene.Nodes(),
	}
	if m.deps.Rand == nil {
		m.deps.Rand = rand.New(rand.NewPCG(1, 2))
	}
	t := m.Table()
	m.BoidMeshName = ecs.AddColumn(t, "boidMeshName", "cube")
	m.Boids = ecs.AddColumn(t, "boids", []Boid(nil))
	m.Boids.SetReset(func(*[]Boid) {})
	m.Nodes = ecs.AddColumn(t, "nodes", []ecs.Ref(nil))
	m.Nodes.SetReset(func(*[]ecs.Ref) {})
	m.CenterOfMass = ecs.AddColumn(t, "currentCenterOfMass", mgl32.Vec3{})
	m.AverageVelocity = ecs.AddColumn(t, "currentAverageVelocity", mgl32.Vec3{})

	ecs.Expose(m, m.BoidMeshName, "boidMeshName", ecs.Category("Swarm"))

	m.SetResourceHooks(m.createResources, m.destroyResources)
	return m
}

func (m *SwarmManager) CreateSwarm(entity ecs.Ref) (ecs.Ref, error) {
	ref, err := m.Create(entity)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

func (m *SwarmManager) swarmNode(swarm ecs.Ref) ecs.Ref {
	return m.nodes.ForEntity(m.Entity(swarm))
}

// createResources spawns BoidCount boid entities per swarm at the swarm
// node's world position.
func (m *SwarmManager) createResources(swarms []ecs.Ref) {
	var meshes []ecs.Ref
	size := m.cfg.BoidSize
	root := m.deps.Scene.Root()
	// freshly loaded swarm nodes have no world transform yet
	m.nodes.RebuildTreeAndUpdateTransforms()

	for _, swarm := range swarms {
		origin := mgl32.Vec3{}
		if n := m.swarmNode(swarm); n.IsValid() {
			origin = m.nodes.WorldPosition(n)
		}
		boids := m.Boids.At(swarm)
		nodes := m.Nodes.At(swarm)

		for range m.cfg.BoidCount {
			mesh, node, err := m.spawnBoid(swarm, root, size)
			if err != nil {
				m.Logger().Error("spawn boid", zap.Stringer("swarm", swarm), zap.Error(err))
				break
			}
			m.nodes.Position.Set(node, origin)
			*boids = append(*boids, Boid{Pos: origin})
			*nodes = append(*nodes, node)
			meshes = append(meshes, mesh)
		}
		m.CenterOfMass.Set(swarm, origin)
	}

	m.nodes.RebuildTreeAndUpdateTransforms()
	m.deps.Meshes.CreateResources(meshes)
}

func (m *SwarmManager) spawnBoid(swarm, root ecs.Ref, size float32) (mesh, node ecs.Ref, err error) {
	w := m.deps.World
	entity, err := w.CreateEntity("Boid")
	if err != nil {
		return ecs.InvalidRef, ecs.InvalidRef, err
	}
	w.Entities().SetTransient(entity, true)

	node, err = m.nodes.CreateNode(entity)
	if err == nil && root.IsValid() {
		err = m.nodes.AttachChild(root, node)
	}
	if err == nil {
		*m.nodes.Flags.At(node) |= scene.FlagSpawned
		m.nodes.Size.Set(node, mgl32.Vec3{size, size, size})
		mesh, err = m.deps.Meshes.CreateMesh(entity)
	}
	if err == nil {
		m.deps.Meshes.MeshName.Set(mesh, m.BoidMeshName.Get(swarm))
		var light ecs.Ref
		light, err = m.deps.Lights.CreateLight(entity)
		if err == nil {
			r := m.deps.Rand
			m.deps.Lights.Color.Set(light, mgl32.Vec3{r.Float32(), r.Float32(), r.Float32()})
		}
	}
	if err != nil {
		_ = w.DestroyEntity(entity)
		return ecs.InvalidRef, ecs.InvalidRef, err
	}
	return mesh, node, nil
}

// destroyResources removes every boid entity while the scene still exists.
func (m *SwarmManager) destroyResources(swarms []ecs.Ref) {
	rootValid := m.deps.Scene.Root().IsValid()
	for _, swarm := range swarms {
		if rootValid {
			for _, node := range m.Nodes.Get(swarm) {
				if !m.nodes.Alive(node) {
					continue
				}
				if err := m.deps.Scene.DestroyNodeFull(node); err != nil {
					m.Logger().Warn("destroy boid", zap.Error(err))
				}
			}
		}
		m.Boids.Set(swarm, m.Boids.Get(swarm)[:0])
		m.Nodes.Set(swarm, m.Nodes.Get(swarm)[:0])
	}
}

// groundHeight casts a ray straight down from p. The result is the hit
// height plus the configured offset, or a very low value when nothing is
// hit.
func (m *SwarmManager) groundHeight(p mgl32.Vec3) float32 {
	if m.deps.Raycaster == nil {
		return noGroundHeight
	}
	ray := physics.Ray{Origin: p, Dir: mgl32.Vec3{0, -1, 0}}
	hit, ok := m.deps.Raycaster.Raycast(ray, m.cfg.GroundRayLength)
	if !ok {
		return noGroundHeight
	}
	return ray.At(hit.Distance).Y() + m.cfg.GroundOffset
}

// UpdateSwarms advances every boid by dt seconds. Boids later in the slice
// see the already updated state of earlier ones when sampling neighbours.
func (m *SwarmManager) UpdateSwarms(swarms []ecs.Ref, dt float32) {
	cfg := m.cfg
	minDistSqr := cfg.MinDistance * cfg.MinDistance
	r := m.deps.Rand

	for _, swarm := range swarms {
		if !m.Alive(swarm) {
			continue
		}
		boids := m.Boids.Get(swarm)
		nodes := m.Nodes.Get(swarm)
		if len(boids) == 0 {
			continue
		}
		if len(boids) != len(nodes) {
			m.Logger().Error("boid and node count differ", zap.Stringer("swarm", swarm),
				zap.Int("boids", len(boids)), zap.Int("nodes", len(nodes)))
			continue
		}

		center := m.CenterOfMass.Get(swarm)
		avgVel := m.AverageVelocity.Get(swarm)
		target := center
		if n := m.swarmNode(swarm); n.IsValid() {
			target = m.nodes.WorldPosition(n)
		}
		ground := m.groundHeight(center)
		samples := min(cfg.SampleSize, len(boids))

		for i := range boids {
			b := &boids[i]

			// cohesion
			toCenter := center.Sub(b.Pos)
			if d := toCenter.Len(); d > epsilon {
				b.Vel = b.Vel.Add(toCenter.Mul(dt * cfg.Acceleration * cfg.CenterOfMassWeight / d))
			}

			// separation from a random sample of the flock
			for range samples {
				j := r.IntN(len(boids))
				if j == i {
					continue
				}
				diff := boids[j].Pos.Sub(b.Pos)
				distSqr := diff.Dot(diff)
				if distSqr < minDistSqr && distSqr > epsilon {
					b.Vel = b.Vel.Sub(diff.Normalize().Mul(cfg.Acceleration * dt * cfg.SeparationWeight))
				}
			}

			// velocity matching
			b.Vel = b.Vel.Add(avgVel.Sub(b.Vel).Mul(cfg.MatchVelocityWeight * dt))

			// attraction to the swarm's node
			toTarget := target.Sub(b.Pos)
			if d := toTarget.Len(); d > epsilon && d > cfg.MinTargetDistance {
				b.Vel = b.Vel.Add(toTarget.Mul(cfg.Acceleration * dt * cfg.TargetWeight / d))
			}

			if b.Pos[1] < ground {
				b.Vel[1] = 0
				b.Pos[1] = ground
			}

			if l := b.Vel.Len(); l > cfg.MaxVelocity {
				b.Vel = b.Vel.Mul(cfg.MaxVelocity / l)
			}

			b.Pos = b.Pos.Add(b.Vel.Mul(dt))

			node := nodes[i]
			m.nodes.Position.Set(node, b.Pos)
			dir := b.Vel.Add(mgl32.Vec3{orientationNudge, orientationNudge, orientationNudge}).Normalize()
			m.nodes.Orientation.Set(node, mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, dir))
		}
		m.nodes.UpdateTransforms(nodes)

		var sumPos, sumVel mgl32.Vec3
		for i := range boids {
			sumPos = sumPos.Add(boids[i].Pos)
			sumVel = sumVel.Add(boids[i].Vel)
		}
		inv := 1 / float32(len(boids))
		m.CenterOfMass.Set(swarm, sumPos.Mul(inv))
		m.AverageVelocity.Set(swarm, sumVel.Mul(inv))
	}
}
