package persist_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSnapshots(t *testing.T) {
	ctx := context.Background()
	store := persist.FileSnapshots{Path: filepath.Join(t.TempDir(), "state", "entities.json")}

	_, err := store.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, persist.ErrNoSnapshot)

	require.NoError(t, store.WriteSnapshot(ctx, []byte(`[{"name":"a"}]`), 1))
	require.NoError(t, store.WriteSnapshot(ctx, []byte(`[{"name":"b"}]`), 1))
	body, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"b"}]`, string(body))
}

// openTestDB connects to INTRINSIC_TEST_DSN or skips.
func openTestDB(t *testing.T) *persist.DB {
	t.Helper()
	dsn := os.Getenv("INTRINSIC_TEST_DSN")
	if dsn == "" {
		t.Skip("INTRINSIC_TEST_DSN not set")
	}
	cfg := config.Defaults().Database
	cfg.DSN = dsn
	db, err := persist.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestDescriptorRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := persist.NewDescriptorRepo(db)
	kind := "TestKind_" + t.Name()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM descriptors WHERE kind = $1`, kind)
	})

	doc := ecs.Document{Properties: ecs.Fragment{
		"Scattering": {Type: ecs.TypeFloat, Value: []byte(`0.25`)},
	}}
	require.NoError(t, repo.Save(ctx, kind, "b", doc))
	require.NoError(t, repo.SaveBatch(ctx, kind, []ecs.StoredDescriptor{{Name: "a", Doc: doc}}))

	got, err := repo.LoadAll(ctx, kind)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.JSONEq(t, `0.25`, string(got[1].Doc.Properties["Scattering"].Value))

	require.NoError(t, repo.Delete(ctx, kind, "a"))
	got, err = repo.LoadAll(ctx, kind)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSnapshotRepoKeepsNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := persist.NewSnapshotRepo(db)
	repo.Keep = 2

	for _, body := range []string{`[1]`, `[2]`, `[3]`} {
		require.NoError(t, repo.WriteSnapshot(ctx, []byte(body), 1))
	}
	body, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[3]`, string(body))

	var n int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT count(*) FROM entity_snapshots`).Scan(&n))
	assert.LessOrEqual(t, n, 2)
}
