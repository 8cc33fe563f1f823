package scene

import (
	"errors"
	"fmt"

	"github.com/intrinsic/engine/internal/core/ecs"
)

// Scene owns the root node and knows how to tear down whole subtrees.
type Scene struct {
	world *ecs.World
	nodes *NodeManager
	root  ecs.Ref
}

// New creates the root entity and its node. The node manager must already
// be registered with the world.
func New(world *ecs.World, nodes *NodeManager) (*Scene, error) {
	entity, err := world.CreateEntity("Root")
	if err != nil {
		return nil, fmt.Errorf("create root entity: %w", err)
	}
	world.Entities().SetTransient(entity, true)
	root, err := nodes.CreateNode(entity)
	if err != nil {
		return nil, fmt.Errorf("create root node: %w", err)
	}
	return &Scene{world: world, nodes: nodes, root: root}, nil
}

func (s *Scene) Nodes() *NodeManager { return s.nodes }

// Root returns the root node, or InvalidRef after Close.
func (s *Scene) Root() ecs.Ref {
	if !s.nodes.Alive(s.root) {
		return ecs.InvalidRef
	}
	return s.root
}

// DestroyNodeFull destroys the entity owning node and the entities of all
// its descendants, deepest first.
func (s *Scene) DestroyNodeFull(node ecs.Ref) error {
	if !s.nodes.Alive(node) {
		return fmt.Errorf("destroy node %s: %w", node, ecs.ErrInvalidReference)
	}
	var errs []error
	for _, n := range s.nodes.Subtree(node) {
		// an earlier destroy may already have taken this node with it
		if !s.nodes.Alive(n) {
			continue
		}
		entity := s.nodes.Entity(n)
		if err := s.world.DestroyEntity(entity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close destroys the root subtree.
func (s *Scene) Close() error {
	if !s.nodes.Alive(s.root) {
		return nil
	}
	err := s.DestroyNodeFull(s.root)
	s.root = ecs.InvalidRef
	return err
}
