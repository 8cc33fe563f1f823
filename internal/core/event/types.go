package event

import "github.com/intrinsic/engine/internal/core/ecs"

// Created is emitted after a component, resource or entity slot is allocated.
type Created struct {
	Kind string
	Ref  ecs.Ref
}

// Destroyed is emitted after a slot is released. Ref is already stale.
type Destroyed struct {
	Kind string
	Ref  ecs.Ref
}

// DescriptorsLoaded is emitted once per kind after a bulk load.
type DescriptorsLoaded struct {
	Kind  string
	Count int
}

// DescriptorsSaved is emitted by the persistence system after a save pass.
type DescriptorsSaved struct {
	Kind    string
	Written int
	Skipped int
}

// Forward returns an observer that republishes manager lifecycle
// notifications on the bus.
func Forward(b *Bus) func(ecs.Lifecycle) {
	return func(l ecs.Lifecycle) {
		switch l.Op {
		case ecs.OpCreated:
			Emit(b, Created{Kind: l.Kind, Ref: l.Ref})
		case ecs.OpDestroyed:
			Emit(b, Destroyed{Kind: l.Kind, Ref: l.Ref})
		}
	}
}
