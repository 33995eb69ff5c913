package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/recall/internal/models"
)

func TestSkillRegister(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSkillStore(db)

	t.Run("first registration starts at zero uses", func(t *testing.T) {
		sk, err := ss.Register(&models.RegisterSkillRequest{
			Name:    "code-review",
			Version: "1.0.0",
			Source:  "plugin:reviewer",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, sk.UseCount)
		assert.Nil(t, sk.LastUsedAt)
		assert.NotZero(t, sk.InstalledAt)
	})

	t.Run("re-registration preserves counters", func(t *testing.T) {
		// Accumulate one completed usage first.
		id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "code-review"})
		require.NoError(t, err)
		_, err = ss.UsageEnd(&models.UsageEndRequest{UsageID: id, Success: true})
		require.NoError(t, err)

		before, err := ss.Get("code-review")
		require.NoError(t, err)
		require.NotNil(t, before)
		require.Equal(t, 1, before.UseCount)

		sk, err := ss.Register(&models.RegisterSkillRequest{
			Name:    "code-review",
			Version: "2.0.0",
			Source:  "plugin:reviewer-v2",
		})
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", sk.Version)
		assert.Equal(t, "plugin:reviewer-v2", sk.Source)
		assert.Equal(t, 1, sk.UseCount)
		assert.Equal(t, before.InstalledAt, sk.InstalledAt)
		assert.Equal(t, before.LastUsedAt, sk.LastUsedAt)
	})

	t.Run("missing skill reads as absent", func(t *testing.T) {
		sk, err := ss.Get("nope")
		require.NoError(t, err)
		assert.Nil(t, sk)
	})
}

func TestSkillUsageLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSkillStore(db)

	_, err := ss.Register(&models.RegisterSkillRequest{Name: "fixer", Version: "1.0", Source: "plugin:fix"})
	require.NoError(t, err)

	t.Run("start stamps last_used_at and returns an id", func(t *testing.T) {
		id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "fixer", ProjectPath: "/work/api"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		sk, err := ss.Get("fixer")
		require.NoError(t, err)
		require.NotNil(t, sk.LastUsedAt)

		u, err := ss.GetUsage(id)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Nil(t, u.Success, "success is unset until the usage ends")
		assert.Nil(t, u.CompletedAt)
	})

	t.Run("end completes the record and bumps use_count once", func(t *testing.T) {
		id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "fixer"})
		require.NoError(t, err)

		tokens := 420
		u, err := ss.UsageEnd(&models.UsageEndRequest{
			UsageID:    id,
			Success:    true,
			Outcome:    "patched the failing handler",
			TokensUsed: &tokens,
		})
		require.NoError(t, err)
		require.NotNil(t, u)
		require.NotNil(t, u.Success)
		assert.True(t, *u.Success)
		require.NotNil(t, u.CompletedAt)
		require.NotNil(t, u.TokensUsed)
		assert.Equal(t, 420, *u.TokensUsed)

		sk, err := ss.Get("fixer")
		require.NoError(t, err)
		countAfterEnd := sk.UseCount

		// A second end on the same id changes nothing.
		again, err := ss.UsageEnd(&models.UsageEndRequest{UsageID: id, Success: false})
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.True(t, *again.Success, "the completed record is not mutated again")

		sk, err = ss.Get("fixer")
		require.NoError(t, err)
		assert.Equal(t, countAfterEnd, sk.UseCount, "no double increment")
	})

	t.Run("end on a nonexistent id is absent, not an error", func(t *testing.T) {
		u, err := ss.UsageEnd(&models.UsageEndRequest{UsageID: "not-a-real-id", Success: true})
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("usages may reference unregistered skills", func(t *testing.T) {
		id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "ghost"})
		require.NoError(t, err)

		u, err := ss.UsageEnd(&models.UsageEndRequest{UsageID: id, Success: false})
		require.NoError(t, err)
		require.NotNil(t, u)
		require.NotNil(t, u.CompletedAt, "the usage update succeeds with no resolvable skill")
	})
}

func TestSkillRecommend(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSkillStore(db)

	completeUsage := func(skill, projectPath string, success bool) {
		t.Helper()
		id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: skill, ProjectPath: projectPath})
		require.NoError(t, err)
		_, err = ss.UsageEnd(&models.UsageEndRequest{UsageID: id, Success: success})
		require.NoError(t, err)
	}

	for _, name := range []string{"alpha", "beta", "idle"} {
		_, err := ss.Register(&models.RegisterSkillRequest{Name: name, Version: "1.0", Source: "plugin"})
		require.NoError(t, err)
	}

	// alpha: 3 uses, all successful. beta: 10 uses, half successful.
	for i := 0; i < 3; i++ {
		completeUsage("alpha", "/work/go-api", true)
	}
	for i := 0; i < 10; i++ {
		completeUsage("beta", "/work/rails-app", i%2 == 0)
	}

	t.Run("success rate ranks before usage count", func(t *testing.T) {
		recs, err := ss.Recommend("", 5)
		require.NoError(t, err)
		require.Len(t, recs, 2, "skills with no usage are excluded")
		assert.Equal(t, "alpha", recs[0].SkillName)
		assert.InDelta(t, 1.0, recs[0].SuccessRate, 0.001)
		assert.Equal(t, 3, recs[0].UsageCount)
		assert.Equal(t, "beta", recs[1].SkillName)
		assert.InDelta(t, 0.5, recs[1].SuccessRate, 0.001)
	})

	t.Run("usage count breaks success-rate ties", func(t *testing.T) {
		// gamma matches alpha's perfect rate but with more uses.
		_, err := ss.Register(&models.RegisterSkillRequest{Name: "gamma", Version: "1.0", Source: "plugin"})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			completeUsage("gamma", "/work/go-api", true)
		}

		recs, err := ss.Recommend("", 5)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(recs), 2)
		assert.Equal(t, "gamma", recs[0].SkillName)
		assert.Equal(t, "alpha", recs[1].SkillName)
	})

	t.Run("project filter excludes skills without matching usage", func(t *testing.T) {
		recs, err := ss.Recommend("rails", 5)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "beta", recs[0].SkillName)
	})

	t.Run("started-only usages count toward usage_count with zero rate", func(t *testing.T) {
		_, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "idle"})
		require.NoError(t, err)

		recs, err := ss.Recommend("", 10)
		require.NoError(t, err)
		var idle *models.Recommendation
		for i := range recs {
			if recs[i].SkillName == "idle" {
				idle = &recs[i]
			}
		}
		require.NotNil(t, idle)
		assert.Equal(t, 1, idle.UsageCount)
		assert.Zero(t, idle.SuccessRate, "no completed usages means a zero success rate")
	})
}

func TestSkillStats(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSkillStore(db)

	t.Run("empty store", func(t *testing.T) {
		stats, err := ss.Stats()
		require.NoError(t, err)
		assert.Zero(t, stats.TotalSkills)
		assert.Nil(t, stats.MostUsed)
	})

	t.Run("aggregates", func(t *testing.T) {
		for _, name := range []string{"one", "two"} {
			_, err := ss.Register(&models.RegisterSkillRequest{Name: name, Version: "1.0", Source: "plugin"})
			require.NoError(t, err)
		}
		for i := 0; i < 3; i++ {
			id, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "one"})
			require.NoError(t, err)
			_, err = ss.UsageEnd(&models.UsageEndRequest{UsageID: id, Success: i < 2})
			require.NoError(t, err)
		}
		// A started, never-ended usage counts toward totals only.
		_, err := ss.UsageStart(&models.UsageStartRequest{SkillName: "two"})
		require.NoError(t, err)

		stats, err := ss.Stats()
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalSkills)
		assert.Equal(t, 4, stats.TotalUsages)
		assert.Equal(t, 3, stats.CompletedUsages)
		assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
		require.NotNil(t, stats.MostUsed)
		assert.Equal(t, "one", stats.MostUsed.Name)
	})
}
