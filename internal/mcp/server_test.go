package mcp

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/recall/internal/knowledge"
	"github.com/iammorganparry/recall/internal/store"
)

// runServer feeds newline-delimited JSON-RPC requests through a server and
// returns one decoded response per output line.
func runServer(t *testing.T, requests ...string) []map[string]any {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := knowledge.NewService(
		store.NewMemoryStore(db),
		store.NewSkillStore(db),
		store.NewFailureStore(db),
		store.NewContextStore(db),
		slog.New(slog.DiscardHandler),
	)

	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	srv := NewServer(svc, in, &out, slog.New(slog.DiscardHandler))
	require.NoError(t, srv.Run())

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "bad response line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

// toolText unwraps the text content of a tools/call response.
func toolText(t *testing.T, resp map[string]any) (string, bool) {
	t.Helper()
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "response has no result: %v", resp)
	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	isError, _ := result["isError"].(bool)
	return block["text"].(string), isError
}

func callReq(id int, tool string, args map[string]any) string {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	}
	data, _ := json.Marshal(req)
	return string(data)
}

func TestServerHandshake(t *testing.T) {
	responses := runServer(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":4,"method":"bogus/method"}`,
	)
	// The initialized notification produces no response.
	require.Len(t, responses, 4)

	init := responses[0]["result"].(map[string]any)
	assert.Equal(t, protocolVersion, init["protocolVersion"])
	info := init["serverInfo"].(map[string]any)
	assert.Equal(t, "recall", info["name"])

	tools := responses[1]["result"].(map[string]any)["tools"].([]any)
	assert.Len(t, tools, 21)

	rpcErr := responses[3]["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestServerToolCalls(t *testing.T) {
	t.Run("write then read a memory", func(t *testing.T) {
		responses := runServer(t,
			callReq(1, "memory_write", map[string]any{"key": "greeting", "content": "say hi first"}),
			callReq(2, "memory_read", map[string]any{"key": "greeting"}),
			callReq(3, "memory_read", map[string]any{"key": "missing"}),
		)
		require.Len(t, responses, 3)

		text, isError := toolText(t, responses[0])
		require.False(t, isError, text)
		var wrote map[string]any
		require.NoError(t, json.Unmarshal([]byte(text), &wrote))
		assert.Equal(t, true, wrote["created"])

		text, isError = toolText(t, responses[1])
		require.False(t, isError, text)
		var mem map[string]any
		require.NoError(t, json.Unmarshal([]byte(text), &mem))
		assert.Equal(t, "say hi first", mem["content"])

		text, isError = toolText(t, responses[2])
		require.False(t, isError, text)
		var absent map[string]any
		require.NoError(t, json.Unmarshal([]byte(text), &absent))
		assert.Equal(t, false, absent["found"])
	})

	t.Run("empty result sets render as arrays", func(t *testing.T) {
		responses := runServer(t,
			callReq(1, "memory_list", map[string]any{}),
		)
		text, isError := toolText(t, responses[0])
		require.False(t, isError, text)
		assert.JSONEq(t, `{"memories":[]}`, text)
	})

	t.Run("validation failures carry the taxonomy kind", func(t *testing.T) {
		responses := runServer(t,
			callReq(1, "memory_write", map[string]any{"content": "no key"}),
		)
		text, isError := toolText(t, responses[0])
		assert.True(t, isError)
		assert.Contains(t, text, "validation_error")
	})

	t.Run("unknown tools are a per-call error", func(t *testing.T) {
		responses := runServer(t,
			callReq(1, "memory_explode", map[string]any{}),
		)
		text, isError := toolText(t, responses[0])
		assert.True(t, isError)
		assert.Contains(t, text, "unknown tool")
	})

	t.Run("malformed json is a parse error, not a crash", func(t *testing.T) {
		responses := runServer(t,
			`{not json`,
			`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		)
		require.Len(t, responses, 2)
		rpcErr := responses[0]["error"].(map[string]any)
		assert.Equal(t, float64(-32700), rpcErr["code"])
		assert.NotNil(t, responses[1]["result"], "the loop keeps serving after a bad line")
	})

	t.Run("usage lifecycle over the wire", func(t *testing.T) {
		responses := runServer(t,
			callReq(1, "skill_register", map[string]any{"name": "tester", "version": "1.0", "source": "plugin"}),
			callReq(2, "skill_usage_start", map[string]any{"skillName": "tester"}),
		)
		text, isError := toolText(t, responses[1])
		require.False(t, isError, text)
		var started map[string]any
		require.NoError(t, json.Unmarshal([]byte(text), &started))
		assert.NotEmpty(t, started["usageId"])
	})
}
