package models

// ScopeGlobal is the default visibility scope for memories. Project-scoped
// memories use "project:<name>".
const ScopeGlobal = "global"

// SourceManual is the default provenance for memories written without an
// explicit source.
const SourceManual = "manual"

// Memory is a key-addressed free-text knowledge entry.
type Memory struct {
	Key       string   `json:"key"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	Scope     string   `json:"scope"`
	Source    string   `json:"source"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Skill is an installed skill with lifetime usage counters.
type Skill struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Source      string `json:"source"`
	ProjectPath string `json:"projectPath,omitempty"`
	InstalledBy string `json:"installedBy,omitempty"`
	InstalledAt int64  `json:"installedAt"`
	LastUsedAt  *int64 `json:"lastUsedAt,omitempty"`
	UseCount    int    `json:"useCount"`
}

// SkillUsage is one tracked invocation of a skill, from start to completion.
// Success is nil until the usage is ended.
type SkillUsage struct {
	ID          string `json:"id"`
	SkillName   string `json:"skillName"`
	ProjectPath string `json:"projectPath,omitempty"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt *int64 `json:"completedAt,omitempty"`
	Success     *bool  `json:"success,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	TokensUsed  *int   `json:"tokensUsed,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Failure is a deduplicated error pattern with an accumulated occurrence
// count and an optional known solution.
type Failure struct {
	ID              int64  `json:"id"`
	ErrorPattern    string `json:"errorPattern"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	Solution        string `json:"solution,omitempty"`
	SkillName       string `json:"skillName,omitempty"`
	ProjectPath     string `json:"projectPath,omitempty"`
	OccurrenceCount int    `json:"occurrenceCount"`
	LastSeenAt      int64  `json:"lastSeenAt"`
	CreatedAt       int64  `json:"createdAt"`
}

// ContextEntry is short-lived session state. Value is whatever structured
// data the caller stored; it round-trips through JSON.
type ContextEntry struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
	SkillName string `json:"skillName,omitempty"`
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// --- Requests ---

// WriteMemoryRequest is the payload for memory_write.
type WriteMemoryRequest struct {
	Key     string   `json:"key"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Scope   string   `json:"scope,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// SearchMemoryRequest is the payload for memory_search.
type SearchMemoryRequest struct {
	Query string `json:"query"`
	Scope string `json:"scope,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ListMemoryRequest is the payload for memory_list.
type ListMemoryRequest struct {
	Scope  string `json:"scope,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// RegisterSkillRequest is the payload for skill_register.
type RegisterSkillRequest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Source      string `json:"source"`
	ProjectPath string `json:"projectPath,omitempty"`
	InstalledBy string `json:"installedBy,omitempty"`
}

// UsageStartRequest is the payload for skill_usage_start.
type UsageStartRequest struct {
	SkillName   string `json:"skillName"`
	ProjectPath string `json:"projectPath,omitempty"`
}

// UsageEndRequest is the payload for skill_usage_end.
type UsageEndRequest struct {
	UsageID    string `json:"usageId"`
	Success    bool   `json:"success"`
	Outcome    string `json:"outcome,omitempty"`
	TokensUsed *int   `json:"tokensUsed,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// RecommendRequest is the payload for skill_recommend.
type RecommendRequest struct {
	ProjectType string `json:"projectType,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// RecordFailureRequest is the payload for failure_record.
type RecordFailureRequest struct {
	ErrorPattern string `json:"errorPattern"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Solution     string `json:"solution,omitempty"`
	SkillName    string `json:"skillName,omitempty"`
	ProjectPath  string `json:"projectPath,omitempty"`
}

// SetContextRequest is the payload for context_set.
type SetContextRequest struct {
	SessionID        string `json:"sessionId"`
	Key              string `json:"key"`
	Value            any    `json:"value"`
	SkillName        string `json:"skillName,omitempty"`
	ExpiresInMinutes *int   `json:"expiresInMinutes,omitempty"`
}

// ShareContextRequest is the payload for context_share.
type ShareContextRequest struct {
	FromSession string   `json:"fromSession"`
	ToSession   string   `json:"toSession"`
	Keys        []string `json:"keys,omitempty"`
}

// --- Results ---

// WriteMemoryResult is returned from memory_write.
type WriteMemoryResult struct {
	Key     string `json:"key"`
	Created bool   `json:"created"`
}

// DeleteResult reports whether a delete removed anything. Deleting a missing
// key is not an error.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// Recommendation is one ranked entry from skill_recommend.
type Recommendation struct {
	SkillName   string  `json:"skillName"`
	Version     string  `json:"version,omitempty"`
	SuccessRate float64 `json:"successRate"`
	UsageCount  int     `json:"usageCount"`
}

// ClearContextResult reports how many entries a clear removed.
type ClearContextResult struct {
	Cleared int `json:"cleared"`
}

// ShareContextResult reports how many entries a share copied.
type ShareContextResult struct {
	Copied int `json:"copied"`
}

// MemoryStats is returned from memory_stats.
type MemoryStats struct {
	Total    int            `json:"total"`
	ByScope  map[string]int `json:"byScope"`
	BySource map[string]int `json:"bySource"`
}

// SkillStats is returned from skill_stats.
type SkillStats struct {
	TotalSkills     int     `json:"totalSkills"`
	TotalUsages     int     `json:"totalUsages"`
	CompletedUsages int     `json:"completedUsages"`
	SuccessRate     float64 `json:"successRate"`
	MostUsed        *Skill  `json:"mostUsed,omitempty"`
}

// FailureStats is returned from failure_stats.
type FailureStats struct {
	Total        int            `json:"total"`
	WithSolution int            `json:"withSolution"`
	TopFailure   *Failure       `json:"topFailure,omitempty"`
	BySkill      map[string]int `json:"bySkill"`
}

// Stats bundles all three stats blocks for the CLI stats command.
type Stats struct {
	Memories MemoryStats  `json:"memories"`
	Skills   SkillStats   `json:"skills"`
	Failures FailureStats `json:"failures"`
}
