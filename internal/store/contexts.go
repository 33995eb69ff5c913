package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iammorganparry/recall/internal/models"
)

const contextColumns = `session_id, key, value, skill_name, expires_at, created_at`

// ContextStore holds short-lived, TTL-bound key/value state scoped to a
// session. Expiry is enforced lazily: every read path purges all expired
// entries first, so no background sweeper exists and stale rows may sit on
// disk until the next read.
type ContextStore struct {
	db *DB
}

func NewContextStore(db *DB) *ContextStore {
	return &ContextStore{db: db}
}

// Set upserts an entry by (session_id, key). The value is stored as JSON so
// arbitrary structured data round-trips through Get. expiresInMinutes, when
// given, fixes an absolute expiry timestamp at write time.
func (s *ContextStore) Set(req *models.SetContextRequest) (*models.ContextEntry, error) {
	raw, err := json.Marshal(req.Value)
	if err != nil {
		return nil, Validationf("context value not serializable: %v", err)
	}

	now := time.Now().Unix()
	var expiresAt *int64
	if req.ExpiresInMinutes != nil {
		t := now + int64(*req.ExpiresInMinutes)*60
		expiresAt = &t
	}

	_, err = s.db.Exec(`
		INSERT INTO context_entries (session_id, key, value, skill_name, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			skill_name = excluded.skill_name,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, req.SessionID, req.Key, string(raw), nullIfEmpty(req.SkillName), expiresAt, now)
	if err != nil {
		return nil, classify("set context", err)
	}

	return &models.ContextEntry{
		SessionID: req.SessionID,
		Key:       req.Key,
		Value:     req.Value,
		SkillName: req.SkillName,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// Get purges expired entries, then looks up one pair. Absent or expired
// returns (nil, nil), not an error.
func (s *ContextStore) Get(sessionID, key string) (*models.ContextEntry, error) {
	if err := s.purgeExpired(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT %s FROM context_entries WHERE session_id = ? AND key = ?`, contextColumns),
		sessionID, key)
	e, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get context", err)
	}
	return e, nil
}

// List purges expired entries, then returns all live entries for the
// session, most recently created first.
func (s *ContextStore) List(sessionID string) ([]*models.ContextEntry, error) {
	if err := s.purgeExpired(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s FROM context_entries WHERE session_id = ? ORDER BY created_at DESC`, contextColumns),
		sessionID)
	if err != nil {
		return nil, classify("list context", err)
	}
	defer rows.Close()

	var result []*models.ContextEntry
	for rows.Next() {
		e, err := scanContext(rows)
		if err != nil {
			return nil, classify("scan context", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate context", err)
	}
	return result, nil
}

// Clear deletes all entries for a session, or every entry when sessionID is
// empty. Returns the count removed.
func (s *ContextStore) Clear(sessionID string) (*models.ClearContextResult, error) {
	var res sql.Result
	var err error
	if sessionID == "" {
		res, err = s.db.Exec(`DELETE FROM context_entries`)
	} else {
		res, err = s.db.Exec(`DELETE FROM context_entries WHERE session_id = ?`, sessionID)
	}
	if err != nil {
		return nil, classify("clear context", err)
	}
	n, _ := res.RowsAffected()
	return &models.ClearContextResult{Cleared: int(n)}, nil
}

// Share copies entries from one session into another, applying the same
// upsert-by-(session_id, key) semantics at the destination. The source
// session keeps its entries. When keys is empty, all live entries are
// copied. Returns the count copied.
func (s *ContextStore) Share(req *models.ShareContextRequest) (*models.ShareContextResult, error) {
	if err := s.purgeExpired(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	q := `
		INSERT INTO context_entries (session_id, key, value, skill_name, expires_at, created_at)
		SELECT ?, key, value, skill_name, expires_at, ?
		FROM context_entries
		WHERE session_id = ?`
	args := []any{req.ToSession, now, req.FromSession}

	if len(req.Keys) > 0 {
		placeholders := make([]string, len(req.Keys))
		for i, k := range req.Keys {
			placeholders[i] = "?"
			args = append(args, k)
		}
		q += fmt.Sprintf(" AND key IN (%s)", strings.Join(placeholders, ","))
	}

	q += `
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			skill_name = excluded.skill_name,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`

	res, err := s.db.Exec(q, args...)
	if err != nil {
		return nil, classify("share context", err)
	}
	n, _ := res.RowsAffected()
	return &models.ShareContextResult{Copied: int(n)}, nil
}

// purgeExpired removes every entry whose expiry has passed, regardless of
// session.
func (s *ContextStore) purgeExpired() error {
	_, err := s.db.Exec(
		`DELETE FROM context_entries WHERE expires_at IS NOT NULL AND expires_at < ?`,
		time.Now().Unix())
	if err != nil {
		return classify("purge expired context", err)
	}
	return nil
}

func scanContext(row scanner) (*models.ContextEntry, error) {
	var e models.ContextEntry
	var raw string
	var skillName sql.NullString
	var expiresAt sql.NullInt64
	if err := row.Scan(&e.SessionID, &e.Key, &raw, &skillName, &expiresAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	if skillName.Valid {
		e.SkillName = skillName.String
	}
	if expiresAt.Valid {
		e.ExpiresAt = &expiresAt.Int64
	}
	// Stored payloads are JSON we wrote ourselves; if one doesn't parse,
	// hand back the raw text instead of failing the read.
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		e.Value = raw
	} else {
		e.Value = v
	}
	return &e, nil
}
