package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/recall/internal/models"
)

const skillColumns = `name, version, source, project_path, installed_by, installed_at, last_used_at, use_count`

const usageColumns = `id, skill_name, project_path, started_at, completed_at, success, outcome, tokens_used, notes`

// SkillStore tracks installed skills and per-invocation usage records.
type SkillStore struct {
	db *DB
}

func NewSkillStore(db *DB) *SkillStore {
	return &SkillStore{db: db}
}

// Register upserts a skill by name. Re-registering updates version, source,
// project_path and installed_by but preserves use_count, installed_at and
// last_used_at. Returns the authoritative row.
func (s *SkillStore) Register(req *models.RegisterSkillRequest) (*models.Skill, error) {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO skills (name, version, source, project_path, installed_by, installed_at, use_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			source = excluded.source,
			project_path = excluded.project_path,
			installed_by = excluded.installed_by
	`, req.Name, req.Version, req.Source,
		nullIfEmpty(req.ProjectPath), nullIfEmpty(req.InstalledBy), now)
	if err != nil {
		return nil, classify("register skill", err)
	}
	return s.Get(req.Name)
}

// Get fetches a skill by name. Returns (nil, nil) when absent.
func (s *SkillStore) Get(name string) (*models.Skill, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM skills WHERE name = ?`, skillColumns), name)
	sk, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get skill", err)
	}
	return sk, nil
}

// UsageStart creates a started usage record and stamps the skill's
// last_used_at. The skill row may not exist yet; the stamp is then a no-op
// and the usage record still tracks the invocation. Returns the opaque
// usage identifier.
func (s *SkillStore) UsageStart(req *models.UsageStartRequest) (string, error) {
	id := uuid.New().String()
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return "", classify("begin usage start", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO skill_usage (id, skill_name, project_path, started_at)
		VALUES (?, ?, ?, ?)
	`, id, req.SkillName, nullIfEmpty(req.ProjectPath), now)
	if err != nil {
		return "", classify("insert usage", err)
	}

	_, err = tx.Exec(`UPDATE skills SET last_used_at = ? WHERE name = ?`, now, req.SkillName)
	if err != nil {
		return "", classify("stamp last_used_at", err)
	}

	if err := tx.Commit(); err != nil {
		return "", classify("commit usage start", err)
	}
	return id, nil
}

// UsageEnd completes a started usage record and increments the referenced
// skill's use_count by exactly one. The completion UPDATE is guarded by
// completed_at IS NULL, so ending the same id twice (or a nonexistent id)
// never double-increments the counter. Returns the usage row, or (nil, nil)
// when the id is unknown.
func (s *SkillStore) UsageEnd(req *models.UsageEndRequest) (*models.SkillUsage, error) {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, classify("begin usage end", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE skill_usage
		SET completed_at = ?, success = ?, outcome = ?, tokens_used = ?, notes = ?
		WHERE id = ? AND completed_at IS NULL
	`, now, req.Success, nullIfEmpty(req.Outcome), req.TokensUsed, nullIfEmpty(req.Notes), req.UsageID)
	if err != nil {
		return nil, classify("complete usage", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		// No-op when the usage references a skill that was never registered.
		_, err = tx.Exec(`
			UPDATE skills SET use_count = use_count + 1
			WHERE name = (SELECT skill_name FROM skill_usage WHERE id = ?)
		`, req.UsageID)
		if err != nil {
			return nil, classify("increment use_count", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit usage end", err)
	}

	return s.GetUsage(req.UsageID)
}

// GetUsage fetches a usage record by id. Returns (nil, nil) when absent.
func (s *SkillStore) GetUsage(id string) (*models.SkillUsage, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM skill_usage WHERE id = ?`, usageColumns), id)
	u, err := scanUsage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get usage", err)
	}
	return u, nil
}

// Recommend ranks skills by observed success rate (descending), ties broken
// by usage count (descending). Skills with no usages are never recommended.
// When projectType is set, only usages whose project_path contains it count,
// and skills with zero matching usages are excluded.
func (s *SkillStore) Recommend(projectType string, limit int) ([]models.Recommendation, error) {
	// AVG over the completed subset; NULL (no completed usages) coalesces
	// to a 0.0 success rate.
	rows, err := s.db.Query(`
		SELECT s.name, s.version,
		       COALESCE(AVG(CASE WHEN u.completed_at IS NOT NULL THEN u.success END), 0.0) AS success_rate,
		       COUNT(u.id) AS usage_count
		FROM skills s
		JOIN skill_usage u ON u.skill_name = s.name
		WHERE (? = '' OR u.project_path LIKE '%' || ? || '%')
		GROUP BY s.name, s.version
		ORDER BY success_rate DESC, usage_count DESC
		LIMIT ?
	`, projectType, projectType, limit)
	if err != nil {
		return nil, classify("recommend skills", err)
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.SkillName, &r.Version, &r.SuccessRate, &r.UsageCount); err != nil {
			return nil, classify("scan recommendation", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate recommendations", err)
	}
	return recs, nil
}

// Stats reports skill totals, the overall success rate across completed
// usages, and the single most-used skill.
func (s *SkillStore) Stats() (*models.SkillStats, error) {
	stats := &models.SkillStats{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM skills`).Scan(&stats.TotalSkills); err != nil {
		return nil, classify("count skills", err)
	}

	var rate sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(completed_at),
		       AVG(CASE WHEN completed_at IS NOT NULL THEN success END)
		FROM skill_usage
	`).Scan(&stats.TotalUsages, &stats.CompletedUsages, &rate)
	if err != nil {
		return nil, classify("aggregate usages", err)
	}
	if rate.Valid {
		stats.SuccessRate = rate.Float64
	}

	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT %s FROM skills WHERE use_count > 0 ORDER BY use_count DESC LIMIT 1`, skillColumns))
	mostUsed, err := scanSkill(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, classify("most used skill", err)
	}
	if err == nil {
		stats.MostUsed = mostUsed
	}

	return stats, nil
}

func scanSkill(row scanner) (*models.Skill, error) {
	var sk models.Skill
	var projectPath, installedBy sql.NullString
	var lastUsedAt sql.NullInt64
	if err := row.Scan(&sk.Name, &sk.Version, &sk.Source, &projectPath,
		&installedBy, &sk.InstalledAt, &lastUsedAt, &sk.UseCount); err != nil {
		return nil, err
	}
	if projectPath.Valid {
		sk.ProjectPath = projectPath.String
	}
	if installedBy.Valid {
		sk.InstalledBy = installedBy.String
	}
	if lastUsedAt.Valid {
		sk.LastUsedAt = &lastUsedAt.Int64
	}
	return &sk, nil
}

func scanUsage(row scanner) (*models.SkillUsage, error) {
	var u models.SkillUsage
	var projectPath, outcome, notes sql.NullString
	var completedAt sql.NullInt64
	var success sql.NullBool
	var tokensUsed sql.NullInt64
	if err := row.Scan(&u.ID, &u.SkillName, &projectPath, &u.StartedAt,
		&completedAt, &success, &outcome, &tokensUsed, &notes); err != nil {
		return nil, err
	}
	if projectPath.Valid {
		u.ProjectPath = projectPath.String
	}
	if completedAt.Valid {
		u.CompletedAt = &completedAt.Int64
	}
	if success.Valid {
		u.Success = &success.Bool
	}
	if outcome.Valid {
		u.Outcome = outcome.String
	}
	if tokensUsed.Valid {
		t := int(tokensUsed.Int64)
		u.TokensUsed = &t
	}
	if notes.Valid {
		u.Notes = notes.String
	}
	return &u, nil
}

// nullIfEmpty maps "" to NULL for optional TEXT columns.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
