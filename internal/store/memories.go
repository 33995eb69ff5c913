package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iammorganparry/recall/internal/models"
)

// memoryColumns is the canonical column list for all SELECT queries.
// Order must match scanMemory.
const memoryColumns = `key, content, tags, scope, source, created_at, updated_at`

// MemoryStore handles key-addressed knowledge entries on SQLite.
type MemoryStore struct {
	db *DB
}

func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Write upserts a memory by key. A repeat write to an existing key replaces
// content, tags, scope and source and refreshes updated_at; created_at is
// never touched. Returns whether a new row was created.
func (s *MemoryStore) Write(req *models.WriteMemoryRequest) (*models.WriteMemoryResult, error) {
	scope := req.Scope
	if scope == "" {
		scope = models.ScopeGlobal
	}
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}

	var tagsJSON *string
	if len(req.Tags) > 0 {
		b, _ := json.Marshal(req.Tags)
		str := string(b)
		tagsJSON = &str
	}

	// Check existence first so the result can report create vs overwrite;
	// the upsert itself is a single atomic statement either way.
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE key = ?`, req.Key).Scan(&exists)
	if err != nil {
		return nil, classify("check memory key", err)
	}

	now := time.Now().Unix()
	_, err = s.db.Exec(`
		INSERT INTO memories (key, content, tags, scope, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			tags = excluded.tags,
			scope = excluded.scope,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, req.Key, req.Content, tagsJSON, scope, source, now, now)
	if err != nil {
		return nil, classify("write memory", err)
	}

	return &models.WriteMemoryResult{Key: req.Key, Created: exists == 0}, nil
}

// Get fetches a single memory by key. Returns (nil, nil) when absent.
func (s *MemoryStore) Get(key string) (*models.Memory, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM memories WHERE key = ?`, memoryColumns), key)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get memory", err)
	}
	return m, nil
}

// Search performs full-text search over key/content/tags, ranked by FTS5
// relevance. Results are resolved back through the memories table so all
// columns are present. An optional scope restricts results to one scope.
func (s *MemoryStore) Search(query, scope string, limit int) ([]*models.Memory, error) {
	// bm25() rank is negative where more negative = better match, so
	// ascending rank order is best-first.
	q := fmt.Sprintf(`
		SELECT %s
		FROM memories_fts
		JOIN memories m ON m.id = memories_fts.rowid
		WHERE memories_fts MATCH ?
		  AND (? = '' OR m.scope = ?)
		ORDER BY rank
		LIMIT ?
	`, prefixColumns(memoryColumns, "m"))

	rows, err := s.db.Query(q, query, scope, scope, limit)
	if err != nil {
		return nil, classify("search memories", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// List returns memories ordered most-recently-updated first, optionally
// filtered by scope and/or key prefix.
func (s *MemoryStore) List(scope, prefix string, limit int) ([]*models.Memory, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM memories
		WHERE (? = '' OR scope = ?)
		  AND (? = '' OR key LIKE ? || '%%')
		ORDER BY updated_at DESC
		LIMIT ?
	`, memoryColumns)

	rows, err := s.db.Query(q, scope, scope, prefix, prefix, limit)
	if err != nil {
		return nil, classify("list memories", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Delete removes a memory by key. A missing key is not an error; the result
// reports deleted=false.
func (s *MemoryStore) Delete(key string) (*models.DeleteResult, error) {
	res, err := s.db.Exec(`DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return nil, classify("delete memory", err)
	}
	n, _ := res.RowsAffected()
	return &models.DeleteResult{Deleted: n > 0}, nil
}

// Stats returns the total count plus counts grouped by scope and by source.
func (s *MemoryStore) Stats() (*models.MemoryStats, error) {
	stats := &models.MemoryStats{
		ByScope:  make(map[string]int),
		BySource: make(map[string]int),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&stats.Total); err != nil {
		return nil, classify("count memories", err)
	}

	for _, g := range []struct {
		column string
		into   map[string]int
	}{
		{"scope", stats.ByScope},
		{"source", stats.BySource},
	} {
		rows, err := s.db.Query(fmt.Sprintf(
			`SELECT %s, COUNT(*) FROM memories GROUP BY %s`, g.column, g.column))
		if err != nil {
			return nil, classify("group memories", err)
		}
		for rows.Next() {
			var k string
			var c int
			if err := rows.Scan(&k, &c); err != nil {
				rows.Close()
				return nil, classify("scan memory group", err)
			}
			g.into[k] = c
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, classify("iterate memory groups", err)
		}
		rows.Close()
	}

	return stats, nil
}

// prefixColumns qualifies a canonical column list with a table alias for
// queries that join against the FTS index.
func prefixColumns(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*models.Memory, error) {
	var m models.Memory
	var tagsJSON sql.NullString
	if err := row.Scan(&m.Key, &m.Content, &tagsJSON, &m.Scope, &m.Source,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*models.Memory, error) {
	var result []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, classify("scan memory", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate memories", err)
	}
	return result, nil
}
