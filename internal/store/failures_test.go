package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/recall/internal/models"
)

func TestFailureRecord(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFailureStore(db)

	t.Run("first occurrence inserts with count 1", func(t *testing.T) {
		f, err := fs.Record(&models.RecordFailureRequest{
			ErrorPattern: "ECONNREFUSED",
			ErrorMessage: "connect ECONNREFUSED 127.0.0.1:5432",
			SkillName:    "db-migrate",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, f.OccurrenceCount)
		assert.Empty(t, f.Solution)
	})

	t.Run("repeat occurrence merges instead of duplicating", func(t *testing.T) {
		f, err := fs.Record(&models.RecordFailureRequest{
			ErrorPattern: "ECONNREFUSED",
			Solution:     "start postgres before running migrations",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, f.OccurrenceCount)
		assert.Equal(t, "start postgres before running migrations", f.Solution)
		assert.Equal(t, "connect ECONNREFUSED 127.0.0.1:5432", f.ErrorMessage,
			"an empty message on re-record keeps the stored one")
		assert.Equal(t, "db-migrate", f.SkillName)

		var n int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM failures WHERE error_pattern = ?`, "ECONNREFUSED").Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("non-empty fields replace on merge", func(t *testing.T) {
		f, err := fs.Record(&models.RecordFailureRequest{
			ErrorPattern: "ECONNREFUSED",
			Solution:     "check DATABASE_URL first",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, f.OccurrenceCount)
		assert.Equal(t, "check DATABASE_URL first", f.Solution)
	})

	t.Run("unknown pattern reads as absent", func(t *testing.T) {
		f, err := fs.GetByPattern("nope")
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestFailureSearch(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFailureStore(db)

	_, err := fs.Record(&models.RecordFailureRequest{
		ErrorPattern: "nil pointer dereference",
		ErrorMessage: "runtime error: invalid memory address or nil pointer dereference",
		Solution:     "guard the receiver before calling the method",
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = fs.Record(&models.RecordFailureRequest{
			ErrorPattern: "index out of range",
			ErrorMessage: "runtime error: index out of range [3] with length 3",
		})
		require.NoError(t, err)
	}

	t.Run("frequent failures rank before relevant ones", func(t *testing.T) {
		results, err := fs.Search("runtime", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "index out of range", results[0].ErrorPattern)
		assert.Equal(t, 3, results[0].OccurrenceCount)
		assert.Equal(t, "nil pointer dereference", results[1].ErrorPattern)
	})

	t.Run("solutions are searchable", func(t *testing.T) {
		results, err := fs.Search("receiver", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "nil pointer dereference", results[0].ErrorPattern)
	})

	t.Run("index follows merged updates", func(t *testing.T) {
		_, err := fs.Record(&models.RecordFailureRequest{
			ErrorPattern: "index out of range",
			Solution:     "clamp the slice bound",
		})
		require.NoError(t, err)

		results, err := fs.Search("clamp", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "index out of range", results[0].ErrorPattern)
	})
}

func TestFailureList(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFailureStore(db)

	seed := func(pattern, skill string, times int) {
		t.Helper()
		for i := 0; i < times; i++ {
			_, err := fs.Record(&models.RecordFailureRequest{ErrorPattern: pattern, SkillName: skill})
			require.NoError(t, err)
		}
	}
	seed("timeout", "deployer", 5)
	seed("missing env var", "deployer", 2)
	seed("lint failure", "reviewer", 1)

	t.Run("ordered by occurrence count", func(t *testing.T) {
		results, err := fs.List("", 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "timeout", results[0].ErrorPattern)
	})

	t.Run("skill filter", func(t *testing.T) {
		results, err := fs.List("deployer", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, f := range results {
			assert.Equal(t, "deployer", f.SkillName)
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		results, err := fs.List("", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestFailureUpdateSolution(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFailureStore(db)

	f, err := fs.Record(&models.RecordFailureRequest{ErrorPattern: "segfault in cgo"})
	require.NoError(t, err)

	t.Run("sets solution by id", func(t *testing.T) {
		updated, err := fs.UpdateSolution(f.ID, "pin the C library to v2")
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "pin the C library to v2", updated.Solution)
	})

	t.Run("unknown id is absent, not an error", func(t *testing.T) {
		updated, err := fs.UpdateSolution(99999, "whatever")
		require.NoError(t, err)
		assert.Nil(t, updated)
	})
}

func TestFailureStats(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFailureStore(db)

	t.Run("empty store", func(t *testing.T) {
		stats, err := fs.Stats()
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		assert.Nil(t, stats.TopFailure)
		assert.Empty(t, stats.BySkill)
	})

	t.Run("aggregates", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			_, err := fs.Record(&models.RecordFailureRequest{
				ErrorPattern: "flaky test",
				SkillName:    "test-runner",
				Solution:     "retry with a fresh temp dir",
			})
			require.NoError(t, err)
		}
		_, err := fs.Record(&models.RecordFailureRequest{ErrorPattern: "oom killed", SkillName: "builder"})
		require.NoError(t, err)
		_, err = fs.Record(&models.RecordFailureRequest{ErrorPattern: "exit status 2"})
		require.NoError(t, err)

		stats, err := fs.Stats()
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.WithSolution)
		require.NotNil(t, stats.TopFailure)
		assert.Equal(t, "flaky test", stats.TopFailure.ErrorPattern)
		assert.Equal(t, map[string]int{"test-runner": 1, "builder": 1}, stats.BySkill)
	})
}
