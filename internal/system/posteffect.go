package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/resource"
)

// PostEffectBlendSystem fades the blend target from the current post effect
// to the next one. Phase 3 (PostUpdate).
type PostEffectBlendSystem struct {
	effects  *resource.PostEffectManager
	log      *zap.Logger
	current  ecs.Ref
	next     ecs.Ref
	duration time.Duration
	elapsed  time.Duration
}

func NewPostEffectBlendSystem(effects *resource.PostEffectManager, log *zap.Logger) *PostEffectBlendSystem {
	return &PostEffectBlendSystem{effects: effects, log: log}
}

func (s *PostEffectBlendSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Transition starts blending towards the named effect. A zero duration
// switches at the next update. Retargeting mid-blend continues from the
// blended values on screen.
func (s *PostEffectBlendSystem) Transition(name string, duration time.Duration) error {
	ref := s.effects.ByName(name)
	if !ref.IsValid() {
		return fmt.Errorf("post effect %q: %w", name, ecs.ErrInvalidReference)
	}
	switch {
	case !s.effects.Alive(s.current):
		s.current = ref
	case s.blending():
		snap, err := s.effects.SnapshotBlendTarget()
		if err != nil {
			return fmt.Errorf("post effect %q: %w", name, err)
		}
		s.current = snap
	}
	s.next = ref
	s.duration = duration
	s.elapsed = 0
	return nil
}

func (s *PostEffectBlendSystem) blending() bool {
	return s.current != s.next && s.effects.Alive(s.next) && s.Factor() < 1
}

// Factor is the blend progress towards the next effect in [0,1].
func (s *PostEffectBlendSystem) Factor() float32 {
	if s.duration <= 0 {
		return 1
	}
	return min(float32(s.elapsed)/float32(s.duration), 1)
}

func (s *PostEffectBlendSystem) Update(dt time.Duration) {
	if !s.effects.Alive(s.current) || !s.effects.Alive(s.next) {
		return
	}
	s.elapsed += dt
	f := s.Factor()
	if err := s.effects.BlendPostEffect(s.current, s.next, f); err != nil {
		s.log.Warn("post effect blend", zap.Error(err))
		return
	}
	if f >= 1 {
		s.current = s.next
	}
}
