package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/intrinsic/engine/internal/core/ecs"
)

// DescriptorRepo keeps resource documents as JSONB rows keyed by kind and
// name.
type DescriptorRepo struct {
	db *DB
}

var _ ecs.DescriptorStore = (*DescriptorRepo)(nil)

func NewDescriptorRepo(db *DB) *DescriptorRepo {
	return &DescriptorRepo{db: db}
}

const upsertDescriptor = `INSERT INTO descriptors (kind, name, doc, updated_at)
	 VALUES ($1, $2, $3, now())
	 ON CONFLICT (kind, name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`

func (r *DescriptorRepo) Save(ctx context.Context, kind, name string, doc ecs.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, name, err)
	}
	if _, err := r.db.Pool.Exec(ctx, upsertDescriptor, kind, name, body); err != nil {
		return fmt.Errorf("save %s/%s: %w", kind, name, err)
	}
	return nil
}

// SaveBatch writes all documents of a kind in one transaction.
func (r *DescriptorRepo) SaveBatch(ctx context.Context, kind string, docs []ecs.StoredDescriptor) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("descriptor batch begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range docs {
		body, err := json.Marshal(d.Doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", kind, d.Name, err)
		}
		if _, err := tx.Exec(ctx, upsertDescriptor, kind, d.Name, body); err != nil {
			return fmt.Errorf("save %s/%s: %w", kind, d.Name, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *DescriptorRepo) Delete(ctx context.Context, kind, name string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM descriptors WHERE kind = $1 AND name = $2`, kind, name)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, name, err)
	}
	return nil
}

// LoadAll returns the documents of a kind ordered by name.
func (r *DescriptorRepo) LoadAll(ctx context.Context, kind string) ([]ecs.StoredDescriptor, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, doc FROM descriptors WHERE kind = $1 ORDER BY name`, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	defer rows.Close()

	var result []ecs.StoredDescriptor
	for rows.Next() {
		var (
			name string
			body []byte
		)
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		var doc ecs.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", kind, name, err)
		}
		result = append(result, ecs.StoredDescriptor{Name: name, Doc: doc})
	}
	return result, rows.Err()
}

// Kinds lists every kind that has at least one stored document.
func (r *DescriptorRepo) Kinds(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT kind FROM descriptors ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("list kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}
