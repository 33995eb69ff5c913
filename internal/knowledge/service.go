package knowledge

import (
	"log/slog"
	"strings"

	"github.com/iammorganparry/recall/internal/models"
	"github.com/iammorganparry/recall/internal/store"
)

// Default and maximum result limits per operation. Callers may ask for less;
// anything out of range is clamped rather than rejected.
const (
	defaultSearchLimit    = 20
	defaultListLimit      = 100
	defaultFailSearchLim  = 10
	defaultFailListLimit  = 50
	defaultRecommendLimit = 5
	maxLimit              = 500
)

// Service is the facade for all knowledge-store operations. It owns input
// validation and defaulting; the stores own the SQL.
type Service struct {
	memories *store.MemoryStore
	skills   *store.SkillStore
	failures *store.FailureStore
	contexts *store.ContextStore
	logger   *slog.Logger
}

// NewService creates a service over the given stores.
func NewService(
	memories *store.MemoryStore,
	skills *store.SkillStore,
	failures *store.FailureStore,
	contexts *store.ContextStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		memories: memories,
		skills:   skills,
		failures: failures,
		contexts: contexts,
		logger:   logger,
	}
}

// --- Memories ---

// WriteMemory upserts a memory by key. Overwriting an existing key is not
// an error.
func (s *Service) WriteMemory(req *models.WriteMemoryRequest) (*models.WriteMemoryResult, error) {
	if strings.TrimSpace(req.Key) == "" {
		return nil, store.Validationf("memory key is required")
	}
	if req.Content == "" {
		return nil, store.Validationf("memory content is required")
	}
	res, err := s.memories.Write(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("memory written", "key", req.Key, "scope", req.Scope, "created", res.Created)
	return res, nil
}

// ReadMemory fetches a memory by key. Returns (nil, nil) when absent.
func (s *Service) ReadMemory(key string) (*models.Memory, error) {
	if strings.TrimSpace(key) == "" {
		return nil, store.Validationf("memory key is required")
	}
	return s.memories.Get(key)
}

// SearchMemories runs full-text search ranked by relevance.
func (s *Service) SearchMemories(req *models.SearchMemoryRequest) ([]*models.Memory, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, store.Validationf("search query is required")
	}
	return s.memories.Search(req.Query, req.Scope, clampLimit(req.Limit, defaultSearchLimit))
}

// ListMemories returns memories most-recently-updated first.
func (s *Service) ListMemories(req *models.ListMemoryRequest) ([]*models.Memory, error) {
	return s.memories.List(req.Scope, req.Prefix, clampLimit(req.Limit, defaultListLimit))
}

// DeleteMemory removes a memory by key; a missing key reports deleted=false.
func (s *Service) DeleteMemory(key string) (*models.DeleteResult, error) {
	if strings.TrimSpace(key) == "" {
		return nil, store.Validationf("memory key is required")
	}
	res, err := s.memories.Delete(key)
	if err != nil {
		return nil, err
	}
	if res.Deleted {
		s.logger.Debug("memory deleted", "key", key)
	}
	return res, nil
}

// MemoryStats reports totals grouped by scope and source.
func (s *Service) MemoryStats() (*models.MemoryStats, error) {
	return s.memories.Stats()
}

// --- Skills ---

// RegisterSkill upserts a skill by name, preserving usage counters.
func (s *Service) RegisterSkill(req *models.RegisterSkillRequest) (*models.Skill, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, store.Validationf("skill name is required")
	}
	sk, err := s.skills.Register(req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("skill registered", "name", sk.Name, "version", sk.Version)
	return sk, nil
}

// StartUsage opens a usage record and returns its opaque identifier.
func (s *Service) StartUsage(req *models.UsageStartRequest) (string, error) {
	if strings.TrimSpace(req.SkillName) == "" {
		return "", store.Validationf("skill name is required")
	}
	return s.skills.UsageStart(req)
}

// EndUsage completes a usage record. An unknown id returns (nil, nil); a
// repeat end leaves the record and the skill counter untouched.
func (s *Service) EndUsage(req *models.UsageEndRequest) (*models.SkillUsage, error) {
	if strings.TrimSpace(req.UsageID) == "" {
		return nil, store.Validationf("usage id is required")
	}
	return s.skills.UsageEnd(req)
}

// RecommendSkills ranks skills by success rate, then usage count.
func (s *Service) RecommendSkills(req *models.RecommendRequest) ([]models.Recommendation, error) {
	return s.skills.Recommend(req.ProjectType, clampLimit(req.Limit, defaultRecommendLimit))
}

// SkillStats reports totals, overall success rate, and the most-used skill.
func (s *Service) SkillStats() (*models.SkillStats, error) {
	return s.skills.Stats()
}

// --- Failures ---

// RecordFailure merges a failure by error pattern.
func (s *Service) RecordFailure(req *models.RecordFailureRequest) (*models.Failure, error) {
	if strings.TrimSpace(req.ErrorPattern) == "" {
		return nil, store.Validationf("error pattern is required")
	}
	f, err := s.failures.Record(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("failure recorded", "pattern", f.ErrorPattern, "occurrences", f.OccurrenceCount)
	return f, nil
}

// SearchFailures runs full-text search, frequent failures first.
func (s *Service) SearchFailures(query string, limit int) ([]*models.Failure, error) {
	if strings.TrimSpace(query) == "" {
		return nil, store.Validationf("search query is required")
	}
	return s.failures.Search(query, clampLimit(limit, defaultFailSearchLim))
}

// ListFailures returns failures by occurrence count, then recency.
func (s *Service) ListFailures(skillName string, limit int) ([]*models.Failure, error) {
	return s.failures.List(skillName, clampLimit(limit, defaultFailListLimit))
}

// UpdateFailureSolution sets the solution on one row by id. An unknown id
// returns (nil, nil).
func (s *Service) UpdateFailureSolution(id int64, solution string) (*models.Failure, error) {
	if id <= 0 {
		return nil, store.Validationf("failure id is required")
	}
	return s.failures.UpdateSolution(id, solution)
}

// FailureStats reports totals and per-skill failure counts.
func (s *Service) FailureStats() (*models.FailureStats, error) {
	return s.failures.Stats()
}

// --- Context ---

// SetContext upserts a session-scoped entry, optionally with a TTL.
func (s *Service) SetContext(req *models.SetContextRequest) (*models.ContextEntry, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, store.Validationf("session id is required")
	}
	if strings.TrimSpace(req.Key) == "" {
		return nil, store.Validationf("context key is required")
	}
	return s.contexts.Set(req)
}

// GetContext returns one live entry, or (nil, nil) when absent or expired.
func (s *Service) GetContext(sessionID, key string) (*models.ContextEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, store.Validationf("session id is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, store.Validationf("context key is required")
	}
	return s.contexts.Get(sessionID, key)
}

// ListContext returns all live entries for a session, newest first.
func (s *Service) ListContext(sessionID string) ([]*models.ContextEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, store.Validationf("session id is required")
	}
	return s.contexts.List(sessionID)
}

// ClearContext removes all entries for a session, or everything when
// sessionID is empty.
func (s *Service) ClearContext(sessionID string) (*models.ClearContextResult, error) {
	res, err := s.contexts.Clear(sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("context cleared", "session", sessionID, "removed", res.Cleared)
	return res, nil
}

// ShareContext copies entries between sessions without removing them from
// the source.
func (s *Service) ShareContext(req *models.ShareContextRequest) (*models.ShareContextResult, error) {
	if strings.TrimSpace(req.FromSession) == "" || strings.TrimSpace(req.ToSession) == "" {
		return nil, store.Validationf("both from and to sessions are required")
	}
	return s.contexts.Share(req)
}

// Stats bundles all three stats blocks.
func (s *Service) Stats() (*models.Stats, error) {
	mem, err := s.memories.Stats()
	if err != nil {
		return nil, err
	}
	sk, err := s.skills.Stats()
	if err != nil {
		return nil, err
	}
	fl, err := s.failures.Stats()
	if err != nil {
		return nil, err
	}
	return &models.Stats{Memories: *mem, Skills: *sk, Failures: *fl}, nil
}

// clampLimit applies the operation default and caps runaway limits.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
