package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
)

// ErrNoSnapshot is returned when nothing has been written yet.
var ErrNoSnapshot = errors.New("no entity snapshot")

// SnapshotStore holds serialized entity documents, newest wins.
type SnapshotStore interface {
	WriteSnapshot(ctx context.Context, body []byte, entities int) error
	LatestSnapshot(ctx context.Context) ([]byte, error)
}

// SnapshotRepo appends snapshots to entity_snapshots and keeps the newest
// Keep rows.
type SnapshotRepo struct {
	db   *DB
	Keep int
}

var _ SnapshotStore = (*SnapshotRepo)(nil)

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db, Keep: 8}
}

// WriteSnapshot inserts the snapshot and prunes old ones in one transaction.
func (r *SnapshotRepo) WriteSnapshot(ctx context.Context, body []byte, entities int) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO entity_snapshots (entities, body) VALUES ($1, $2)`,
		entities, body,
	); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}
	if r.Keep > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM entity_snapshots WHERE id NOT IN
			 (SELECT id FROM entity_snapshots ORDER BY id DESC LIMIT $1)`,
			r.Keep,
		); err != nil {
			return fmt.Errorf("snapshot prune: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *SnapshotRepo) LatestSnapshot(ctx context.Context) ([]byte, error) {
	var body []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT body FROM entity_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return body, nil
}

// FileSnapshots keeps the latest snapshot in a single file.
type FileSnapshots struct {
	Path string
}

var _ SnapshotStore = FileSnapshots{}

func (f FileSnapshots) WriteSnapshot(_ context.Context, body []byte, _ int) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func (f FileSnapshots) LatestSnapshot(_ context.Context) ([]byte, error) {
	body, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return body, err
}
