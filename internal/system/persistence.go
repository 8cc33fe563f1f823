package system

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/core/event"
	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/persist"
)

// PersistenceSystem periodically writes resource descriptors and an entity
// snapshot. Documents whose content hash did not change since the last
// write are skipped, and documents of resources that disappeared are
// deleted. Phase 5 (Persist).
type PersistenceSystem struct {
	world     *ecs.World
	store     *changeStore
	snapshots persist.SnapshotStore
	bus       *event.Bus
	log       *zap.Logger

	snapshotHash [blake2b.Size256]byte
	tickCount    int
	interval     int // save every N ticks
}

func NewPersistenceSystem(world *ecs.World, store ecs.DescriptorStore, snapshots persist.SnapshotStore, bus *event.Bus, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	return &PersistenceSystem{
		world:     world,
		store:     newChangeStore(store),
		snapshots: snapshots,
		bus:       bus,
		log:       log,
		interval:  intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.save(ctx); err != nil {
		s.log.Error("auto-save failed", zap.Error(err))
	}
}

// SaveAll writes everything regardless of content hashes. Called on
// shutdown.
func (s *PersistenceSystem) SaveAll(ctx context.Context) error {
	s.store.forget()
	s.snapshotHash = [blake2b.Size256]byte{}
	return s.save(ctx)
}

func (s *PersistenceSystem) save(ctx context.Context) error {
	var errs []error
	for _, m := range s.world.Registry().Resources() {
		s.store.begin()
		_, err := m.SaveTo(ctx, s.store)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.store.prune(ctx, m.Kind(), s.log)
		}
		written, skipped := s.store.counts()
		if written > 0 {
			s.log.Debug("descriptors saved", zap.String("kind", m.Kind()),
				zap.Int("written", written), zap.Int("skipped", skipped))
		}
		event.Emit(s.bus, event.DescriptorsSaved{Kind: m.Kind(), Written: written, Skipped: skipped})
	}
	if err := s.saveSnapshot(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *PersistenceSystem) saveSnapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	var buf bytes.Buffer
	n, err := s.world.SaveEntities(&buf)
	if err != nil {
		return err
	}
	sum := blake2b.Sum256(buf.Bytes())
	if sum == s.snapshotHash {
		return nil
	}
	if err := s.snapshots.WriteSnapshot(ctx, buf.Bytes(), n); err != nil {
		return err
	}
	s.snapshotHash = sum
	return nil
}

// changeStore forwards saves whose content changed and remembers what was
// written per kind, so that vanished names can be deleted.
type changeStore struct {
	inner  ecs.DescriptorStore
	hashes map[string]map[string][blake2b.Size256]byte // kind -> name -> hash
	seen   map[string]struct{}

	written, skipped int
}

var _ ecs.DescriptorStore = (*changeStore)(nil)

func newChangeStore(inner ecs.DescriptorStore) *changeStore {
	return &changeStore{inner: inner, hashes: make(map[string]map[string][blake2b.Size256]byte)}
}

func (c *changeStore) begin() {
	c.seen = make(map[string]struct{})
	c.written, c.skipped = 0, 0
}

func (c *changeStore) counts() (written, skipped int) { return c.written, c.skipped }

func (c *changeStore) forget() { clear(c.hashes) }

func (c *changeStore) Save(ctx context.Context, kind, name string, doc ecs.Document) error {
	c.seen[name] = struct{}{}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	sum := blake2b.Sum256(body)
	byName := c.hashes[kind]
	if byName == nil {
		byName = make(map[string][blake2b.Size256]byte)
		c.hashes[kind] = byName
	}
	if prev, ok := byName[name]; ok && prev == sum {
		c.skipped++
		return nil
	}
	if err := c.inner.Save(ctx, kind, name, doc); err != nil {
		return err
	}
	byName[name] = sum
	c.written++
	return nil
}

// prune deletes documents written earlier for names that were not saved in
// the current pass.
func (c *changeStore) prune(ctx context.Context, kind string, log *zap.Logger) {
	for name := range c.hashes[kind] {
		if _, ok := c.seen[name]; ok {
			continue
		}
		if err := c.inner.Delete(ctx, kind, name); err != nil {
			log.Warn("delete stale descriptor", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
			continue
		}
		delete(c.hashes[kind], name)
	}
}

func (c *changeStore) Delete(ctx context.Context, kind, name string) error {
	delete(c.hashes[kind], name)
	return c.inner.Delete(ctx, kind, name)
}

func (c *changeStore) LoadAll(ctx context.Context, kind string) ([]ecs.StoredDescriptor, error) {
	return c.inner.LoadAll(ctx, kind)
}
