package mcp

// ToolDefinitions returns the MCP tool definitions for the knowledge store.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "memory_write",
			Description: "Store or overwrite a knowledge entry under a stable key. " +
				"Writing an existing key replaces its content and refreshes updated_at.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"key":     {Type: "string", Description: "Stable unique identifier for the entry"},
					"content": {Type: "string", Description: "Free-text body of the entry"},
					"tags": {Type: "array", Description: "Descriptive tags",
						Items: &Items{Type: "string"}},
					"scope": {Type: "string", Description: "Visibility scope: 'global' or 'project:<name>'",
						Default: "global"},
					"source": {Type: "string", Description: "Provenance of the entry", Default: "manual"},
				},
				Required: []string{"key", "content"},
			},
		},
		{
			Name:        "memory_read",
			Description: "Read a single knowledge entry by key.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"key": {Type: "string", Description: "Key of the entry to read"},
				},
				Required: []string{"key"},
			},
		},
		{
			Name: "memory_search",
			Description: "Full-text search over memories, ranked by relevance. " +
				"Supports AND/OR/NOT operators and quoted phrases.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search query"},
					"scope": {Type: "string", Description: "Restrict results to one scope"},
					"limit": {Type: "number", Description: "Maximum results (default 20)", Default: 20},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "memory_list",
			Description: "List memories, most recently updated first, optionally filtered by scope and key prefix.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"scope":  {Type: "string", Description: "Restrict results to one scope"},
					"prefix": {Type: "string", Description: "Match the start of the key"},
					"limit":  {Type: "number", Description: "Maximum results (default 100)", Default: 100},
				},
			},
		},
		{
			Name:        "memory_delete",
			Description: "Delete a knowledge entry by key. Deleting a missing key reports deleted=false.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"key": {Type: "string", Description: "Key of the entry to delete"},
				},
				Required: []string{"key"},
			},
		},
		{
			Name:        "memory_stats",
			Description: "Memory totals grouped by scope and source.",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name: "skill_register",
			Description: "Register an installed skill, or update version/source on re-registration. " +
				"Usage counters survive re-registration.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"name":        {Type: "string", Description: "Unique skill name"},
					"version":     {Type: "string", Description: "Installed version"},
					"source":      {Type: "string", Description: "Provenance, e.g. a plugin identifier"},
					"projectPath": {Type: "string", Description: "Project the skill was installed for"},
					"installedBy": {Type: "string", Description: "Who or what installed the skill"},
				},
				Required: []string{"name"},
			},
		},
		{
			Name:        "skill_usage_start",
			Description: "Open a usage record for a skill invocation. Returns an opaque usage id for skill_usage_end.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"skillName":   {Type: "string", Description: "Name of the skill being invoked"},
					"projectPath": {Type: "string", Description: "Project the invocation ran in"},
				},
				Required: []string{"skillName"},
			},
		},
		{
			Name: "skill_usage_end",
			Description: "Complete a usage record and bump the skill's use count. " +
				"Ending the same id twice has no further effect.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"usageId":    {Type: "string", Description: "Id returned from skill_usage_start"},
					"success":    {Type: "boolean", Description: "Whether the invocation succeeded"},
					"outcome":    {Type: "string", Description: "Free-text outcome"},
					"tokensUsed": {Type: "number", Description: "Tokens consumed by the invocation"},
					"notes":      {Type: "string", Description: "Extra notes"},
				},
				Required: []string{"usageId", "success"},
			},
		},
		{
			Name: "skill_recommend",
			Description: "Rank skills by observed success rate, ties broken by usage count. " +
				"Skills with no recorded usage are never recommended.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"projectType": {Type: "string", Description: "Only count usages whose project path contains this substring"},
					"limit":       {Type: "number", Description: "Maximum results (default 5)", Default: 5},
				},
			},
		},
		{
			Name:        "skill_stats",
			Description: "Skill totals, overall success rate, and the most-used skill.",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name: "failure_record",
			Description: "Record an error pattern. Repeats of the same pattern merge into one record " +
				"with an incremented occurrence count; existing solutions are kept unless a new one is supplied.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"errorPattern": {Type: "string", Description: "Deduplication key for the error"},
					"errorMessage": {Type: "string", Description: "Full error message"},
					"solution":     {Type: "string", Description: "Known fix, if any"},
					"skillName":    {Type: "string", Description: "Skill the failure occurred in"},
					"projectPath":  {Type: "string", Description: "Project the failure occurred in"},
				},
				Required: []string{"errorPattern"},
			},
		},
		{
			Name:        "failure_search",
			Description: "Full-text search over failures. Frequent failures rank before merely-relevant ones.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search query"},
					"limit": {Type: "number", Description: "Maximum results (default 10)", Default: 10},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "failure_list",
			Description: "List failures by occurrence count, optionally filtered to one skill.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"skillName": {Type: "string", Description: "Only failures for this skill"},
					"limit":     {Type: "number", Description: "Maximum results (default 50)", Default: 50},
				},
			},
		},
		{
			Name:        "failure_update",
			Description: "Set the solution on a specific failure record by id.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"id":       {Type: "number", Description: "Failure record id"},
					"solution": {Type: "string", Description: "The fix that resolves this failure"},
				},
				Required: []string{"id", "solution"},
			},
		},
		{
			Name:        "failure_stats",
			Description: "Failure totals, solved count, the most frequent failure, and per-skill counts.",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name: "context_set",
			Description: "Store session-scoped state under a key. Values round-trip as JSON. " +
				"An optional TTL in minutes fixes an absolute expiry at write time.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId":        {Type: "string", Description: "Session the entry belongs to"},
					"key":              {Type: "string", Description: "Entry key, unique per session"},
					"value":            {Type: "object", Description: "Arbitrary structured value"},
					"skillName":        {Type: "string", Description: "Skill attribution"},
					"expiresInMinutes": {Type: "number", Description: "Minutes until the entry expires"},
				},
				Required: []string{"sessionId", "key", "value"},
			},
		},
		{
			Name:        "context_get",
			Description: "Read one session-scoped entry. Expired entries are purged first and read as absent.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session the entry belongs to"},
					"key":       {Type: "string", Description: "Entry key"},
				},
				Required: []string{"sessionId", "key"},
			},
		},
		{
			Name:        "context_list",
			Description: "List all live entries for a session, newest first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session to list"},
				},
				Required: []string{"sessionId"},
			},
		},
		{
			Name:        "context_clear",
			Description: "Delete all entries for a session, or every entry when no session is given.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {Type: "string", Description: "Session to clear; omit to clear everything"},
				},
			},
		},
		{
			Name:        "context_share",
			Description: "Copy entries from one session into another. The source keeps its entries.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"fromSession": {Type: "string", Description: "Session to copy from"},
					"toSession":   {Type: "string", Description: "Session to copy into"},
					"keys": {Type: "array", Description: "Specific keys to copy; omit for all",
						Items: &Items{Type: "string"}},
				},
				Required: []string{"fromSession", "toSession"},
			},
		},
	}
}
