package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/iammorganparry/recall/internal/models"
)

const failureColumns = `id, error_pattern, error_message, solution, skill_name, project_path, occurrence_count, last_seen_at, created_at`

// FailureStore deduplicates recurring error patterns and accumulates
// occurrence counts and solutions.
type FailureStore struct {
	db *DB
}

func NewFailureStore(db *DB) *FailureStore {
	return &FailureStore{db: db}
}

// Record merges a failure by error_pattern. An existing pattern gets its
// occurrence_count incremented and last_seen_at refreshed; error_message,
// solution, skill_name and project_path only replace existing values when
// the supplied value is non-empty. A new pattern inserts with
// occurrence_count=1. The merge runs in one transaction and the result is
// re-fetched by pattern so it reflects the authoritative row.
func (s *FailureStore) Record(req *models.RecordFailureRequest) (*models.Failure, error) {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, classify("begin failure record", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE failures SET
			occurrence_count = occurrence_count + 1,
			last_seen_at = ?,
			error_message = CASE WHEN ? != '' THEN ? ELSE error_message END,
			solution = CASE WHEN ? != '' THEN ? ELSE solution END,
			skill_name = CASE WHEN ? != '' THEN ? ELSE skill_name END,
			project_path = CASE WHEN ? != '' THEN ? ELSE project_path END
		WHERE error_pattern = ?
	`, now,
		req.ErrorMessage, req.ErrorMessage,
		req.Solution, req.Solution,
		req.SkillName, req.SkillName,
		req.ProjectPath, req.ProjectPath,
		req.ErrorPattern)
	if err != nil {
		return nil, classify("merge failure", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		_, err = tx.Exec(`
			INSERT INTO failures (error_pattern, error_message, solution, skill_name, project_path, occurrence_count, last_seen_at, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, req.ErrorPattern, nullIfEmpty(req.ErrorMessage), nullIfEmpty(req.Solution),
			nullIfEmpty(req.SkillName), nullIfEmpty(req.ProjectPath), now, now)
		if err != nil {
			return nil, classify("insert failure", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit failure record", err)
	}

	return s.GetByPattern(req.ErrorPattern)
}

// GetByPattern fetches a failure by its dedup key. Returns (nil, nil) when
// absent.
func (s *FailureStore) GetByPattern(pattern string) (*models.Failure, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM failures WHERE error_pattern = ?`, failureColumns), pattern)
	f, err := scanFailure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get failure", err)
	}
	return f, nil
}

// GetByID fetches a failure by row id. Returns (nil, nil) when absent.
func (s *FailureStore) GetByID(id int64) (*models.Failure, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM failures WHERE id = ?`, failureColumns), id)
	f, err := scanFailure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get failure", err)
	}
	return f, nil
}

// Search performs full-text search over pattern/message/solution. Frequent
// failures surface before merely-relevant ones: occurrence_count ranks
// first, FTS5 relevance second.
func (s *FailureStore) Search(query string, limit int) ([]*models.Failure, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM failures_fts
		JOIN failures f ON f.id = failures_fts.rowid
		WHERE failures_fts MATCH ?
		ORDER BY f.occurrence_count DESC, rank
		LIMIT ?
	`, prefixColumns(failureColumns, "f"))

	rows, err := s.db.Query(q, query, limit)
	if err != nil {
		return nil, classify("search failures", err)
	}
	defer rows.Close()
	return scanFailures(rows)
}

// List returns failures ordered by occurrence_count, then recency, optionally
// filtered to one skill.
func (s *FailureStore) List(skillName string, limit int) ([]*models.Failure, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM failures
		WHERE (? = '' OR skill_name = ?)
		ORDER BY occurrence_count DESC, last_seen_at DESC
		LIMIT ?
	`, failureColumns)

	rows, err := s.db.Query(q, skillName, skillName, limit)
	if err != nil {
		return nil, classify("list failures", err)
	}
	defer rows.Close()
	return scanFailures(rows)
}

// UpdateSolution sets the solution for a specific row by id (not by
// pattern). Returns the updated row, or (nil, nil) when the id is unknown.
func (s *FailureStore) UpdateSolution(id int64, solution string) (*models.Failure, error) {
	res, err := s.db.Exec(`UPDATE failures SET solution = ? WHERE id = ?`, solution, id)
	if err != nil {
		return nil, classify("update solution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// Stats reports the total count, the count with a known solution, the single
// highest-occurrence record, and per-skill failure counts. Skills with no
// failures are absent from the map.
func (s *FailureStore) Stats() (*models.FailureStats, error) {
	stats := &models.FailureStats{BySkill: make(map[string]int)}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(CASE WHEN solution IS NOT NULL AND solution != '' THEN 1 END)
		FROM failures
	`).Scan(&stats.Total, &stats.WithSolution)
	if err != nil {
		return nil, classify("count failures", err)
	}

	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT %s FROM failures ORDER BY occurrence_count DESC LIMIT 1`, failureColumns))
	top, err := scanFailure(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, classify("top failure", err)
	}
	if err == nil {
		stats.TopFailure = top
	}

	rows, err := s.db.Query(`
		SELECT skill_name, COUNT(*)
		FROM failures
		WHERE skill_name IS NOT NULL AND skill_name != ''
		GROUP BY skill_name
	`)
	if err != nil {
		return nil, classify("group failures", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var c int
		if err := rows.Scan(&name, &c); err != nil {
			return nil, classify("scan failure group", err)
		}
		stats.BySkill[name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate failure groups", err)
	}

	return stats, nil
}

func scanFailure(row scanner) (*models.Failure, error) {
	var f models.Failure
	var message, solution, skillName, projectPath sql.NullString
	if err := row.Scan(&f.ID, &f.ErrorPattern, &message, &solution,
		&skillName, &projectPath, &f.OccurrenceCount, &f.LastSeenAt, &f.CreatedAt); err != nil {
		return nil, err
	}
	if message.Valid {
		f.ErrorMessage = message.String
	}
	if solution.Valid {
		f.Solution = solution.String
	}
	if skillName.Valid {
		f.SkillName = skillName.String
	}
	if projectPath.Valid {
		f.ProjectPath = projectPath.String
	}
	return &f, nil
}

func scanFailures(rows *sql.Rows) ([]*models.Failure, error) {
	var result []*models.Failure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, classify("scan failure", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate failures", err)
	}
	return result, nil
}
