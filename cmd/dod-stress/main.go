package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/engine"
	"github.com/intrinsic/engine/internal/physics"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	churn := flag.Int("churn", 256, "Entities created and destroyed every frame.")
	swarms := flag.Int("swarms", 4, "Number of swarms to simulate.")
	boids := flag.Int("boids", 200, "Boids per swarm.")
	seed := flag.Int64("seed", 1, "Random seed. 0 seeds from the clock.")
	memProfile := flag.Bool("memprofile", false, "Write an allocation profile to the working directory.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	if *memProfile {
		p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
		defer p.Stop()
	}

	if err := run(*duration, *churn, *swarms, *boids, *seed, *gcPauseMetrics); err != nil {
		log.Fatalf("stress test: %v", err)
	}
}

func run(duration time.Duration, churn, swarmCount, boidCount int, seed int64, gcPause bool) error {
	log.Println("Starting stress test...")

	// 1. Size every kind for the requested load
	cfg := config.Defaults()
	cfg.Engine.Seed = seed
	cfg.Swarm.BoidCount = boidCount
	boidTotal := swarmCount * boidCount
	c := &cfg.Capacity
	c.Swarm = swarmCount
	c.Entity = boidTotal + swarmCount + churn*2 + 64
	c.Node = c.Entity
	c.Mesh = boidTotal + 64
	c.Light = boidTotal + churn*2 + 64

	eng, err := engine.New(cfg, physics.GroundPlane{Height: 0}, zap.NewNop())
	if err != nil {
		return err
	}
	defer eng.Close()

	// 2. Spawn swarms
	log.Printf("Spawning %d swarms of %d boids...\n", swarmCount, boidCount)
	swarmRefs := make([]ecs.Ref, 0, swarmCount)
	for i := range swarmCount {
		ent, err := eng.World.CreateEntity(fmt.Sprintf("Swarm%d", i))
		if err != nil {
			return err
		}
		node, err := eng.Nodes.CreateNode(ent)
		if err != nil {
			return err
		}
		if err := eng.Nodes.AttachChild(eng.Scene.Root(), node); err != nil {
			return err
		}
		eng.Nodes.Position.Set(node, mgl32.Vec3{float32(i) * 50, 20, 0})
		swarm, err := eng.Swarms.CreateSwarm(ent)
		if err != nil {
			return err
		}
		swarmRefs = append(swarmRefs, swarm)
	}
	eng.Nodes.RebuildTreeAndUpdateTransforms()
	eng.Swarms.CreateResources(swarmRefs)
	log.Println("Population complete.")

	// 3. Run the simulation loop
	report := &Report{
		Duration: duration,
		Churn:    churn,
		Swarms:   swarmCount,
		Boids:    boidTotal,
		GCPause:  gcPause,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running simulation for %s...\n", duration)
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var live []ecs.Ref
	startTime := time.Now()
	lastFrame := startTime

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}
		dt := time.Since(lastFrame)
		lastFrame = time.Now()
		frameStart := lastFrame

		churnStart := time.Now()
		for _, e := range live {
			eng.World.MarkForDestruction(e)
		}
		report.Destroyed += int64(eng.World.FlushDestroyQueue())
		live = live[:0]
		for range churn {
			e, err := spawnLight(eng)
			if err != nil {
				return fmt.Errorf("frame %d: %w", report.Frames, err)
			}
			live = append(live, e)
		}
		report.Created += int64(len(live))
		report.ChurnTime.Add(time.Since(churnStart))

		swarmStart := time.Now()
		eng.Swarms.UpdateSwarms(swarmRefs, float32(dt.Seconds()))
		report.SwarmTime.Add(time.Since(swarmStart))

		eng.Nodes.UpdateAll()
		eng.Cameras.UpdateFrustumsAndMatrices(eng.Cameras.Live())

		report.FrameTime.Add(time.Since(frameStart))
		report.Frames++
	}

	report.TotalTime = time.Since(startTime)
	report.LiveEntities = eng.World.Entities().Len()
	report.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	log.Println("Simulation finished.")

	// 4. Report
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println("--- End of Report ---")
	return nil
}

// spawnLight creates a short-lived entity with a node and a light.
func spawnLight(eng *engine.Engine) (ecs.Ref, error) {
	e, err := eng.World.CreateEntity("Spark")
	if err != nil {
		return ecs.InvalidRef, err
	}
	if _, err := eng.Nodes.CreateNode(e); err != nil {
		return ecs.InvalidRef, err
	}
	if _, err := eng.Lights.CreateLight(e); err != nil {
		return ecs.InvalidRef, err
	}
	return e, nil
}
