package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a fresh store in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "memory.db")
	db, err := Open(context.Background(), Options{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	require.NoError(t, ValidateSchema(context.Background(), db.DB()))

	version, err := GetSchemaVersion(context.Background(), db.DB())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	db, err := Open(ctx, Options{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not re-apply migrations.
	db, err = Open(ctx, Options{Path: dbPath})
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(ctx, db.DB())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	db, err := Open(ctx, Options{Path: dbPath})
	require.NoError(t, err)
	_, err = db.DB().ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_ts) VALUES (?, ?)`,
		SchemaVersion+1, time.Now().UnixMilli())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(ctx, Options{Path: dbPath})
	require.ErrorIs(t, err, ErrSchemaVersionTooNew)
}

func TestAppendAssignsIDs(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	first := &Experience{
		RawText: "open youtube", Signature: "open youtube",
		Timestamp: 1000, Success: true, SessionSeq: 1, SessionKey: "s1",
	}
	id1, err := db.Append(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, id1, first.ID)

	id2, err := db.Append(ctx, &Experience{
		RawText: "open terminal", Signature: "open terminal",
		Timestamp: 2000, Success: true, SessionSeq: 1, SessionKey: "s1",
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)
}

func TestAppendRejectsEmptyText(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	_, err := db.Append(context.Background(), &Experience{RawText: "   ", Signature: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.Append(context.Background(), &Experience{RawText: "hello", Signature: ""})
	assert.ErrorIs(t, err, ErrValidation)
}

func seedExperiences(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	rows := []Experience{
		{RawText: "open youtube", Signature: "open youtube", Timestamp: 1000, Success: true, SessionSeq: 1, SessionKey: "s1"},
		{RawText: "open terminal", Signature: "open terminal", Timestamp: 2000, Success: false, SessionSeq: 1, SessionKey: "s1"},
		{RawText: "open vscode", Signature: "open vscode", Timestamp: 3000, Success: true, SessionSeq: 2, SessionKey: "s2"},
		{RawText: "weather today", Signature: "weather today", Timestamp: 4000, Success: true, SessionSeq: 2, SessionKey: "s2"},
	}
	for i := range rows {
		_, err := db.Append(ctx, &rows[i])
		require.NoError(t, err)
	}
}

func TestQueryNewestFirstByDefault(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	seedExperiences(t, db)

	got, err := db.Query(context.Background(), ExperienceQuery{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "weather today", got[0].Signature)
	assert.Equal(t, "open youtube", got[3].Signature)
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	seedExperiences(t, db)
	ctx := context.Background()

	t.Run("time range", func(t *testing.T) {
		got, err := db.Query(ctx, ExperienceQuery{SinceMs: 2000, UntilMs: 4000})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "open vscode", got[0].Signature)
	})

	t.Run("success flag", func(t *testing.T) {
		success := false
		got, err := db.Query(ctx, ExperienceQuery{Success: &success})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "open terminal", got[0].Signature)
	})

	t.Run("signature prefix", func(t *testing.T) {
		got, err := db.Query(ctx, ExperienceQuery{SignaturePrefix: "open"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("session", func(t *testing.T) {
		got, err := db.Query(ctx, ExperienceQuery{SessionSeq: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit and order", func(t *testing.T) {
		got, err := db.Query(ctx, ExperienceQuery{Limit: 2, OldestFirst: true})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "open youtube", got[0].Signature)
	})
}

func TestQueryIsRestartable(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	seedExperiences(t, db)
	ctx := context.Background()

	first, err := db.Query(ctx, ExperienceQuery{})
	require.NoError(t, err)
	second, err := db.Query(ctx, ExperienceQuery{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLastSession(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	seq, key, lastTs, err := db.LastSession(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Empty(t, key)
	assert.Zero(t, lastTs)

	seedExperiences(t, db)

	seq, key, lastTs, err = db.LastSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	assert.Equal(t, "s2", key)
	assert.Equal(t, int64(4000), lastTs)
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	// Unknown signatures get the neutral default.
	rate, err := db.SuccessRate(ctx, "never seen")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rate)

	for i, ok := range []bool{true, true, false, true} {
		_, err := db.Append(ctx, &Experience{
			RawText: "open mail", Signature: "open mail",
			Timestamp: int64(1000 + i), Success: ok, SessionSeq: 1, SessionKey: "s1",
		})
		require.NoError(t, err)
	}

	rate, err = db.SuccessRate(ctx, "open mail")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, rate, 1e-9)
}

func TestPurgeAll(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	seedExperiences(t, db)

	// Seed derived and preference rows so the purge covers every table.
	_, err := db.DB().ExecContext(ctx, `
		INSERT INTO preferences (key, value, confidence, source, last_reinforced, observations, created_at)
		VALUES ('app_preference:browser', 'chrome', 0.9, 'explicit', 1000, 1, 1000)`)
	require.NoError(t, err)
	_, err = db.DB().ExecContext(ctx, `
		INSERT INTO patterns (kind, signature, support, last_seen, confidence)
		VALUES ('frequency', 'open youtube', 3, 1000, 1.0)`)
	require.NoError(t, err)
	_, err = db.DB().ExecContext(ctx, `
		INSERT INTO command_associations (antecedent, consequent, count, last_seen)
		VALUES ('open vscode', 'open terminal', 4, 1000)`)
	require.NoError(t, err)

	require.NoError(t, db.PurgeAll(ctx))

	got, err := db.Query(ctx, ExperienceQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, table := range []string{"preferences", "patterns", "command_associations"} {
		var n int
		require.NoError(t, db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}
