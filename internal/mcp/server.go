package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/iammorganparry/recall/internal/knowledge"
	"github.com/iammorganparry/recall/internal/models"
	"github.com/iammorganparry/recall/internal/store"
)

const protocolVersion = "2024-11-05"

// Server implements an MCP stdio server over the knowledge service. It is
// the full tool-call boundary: one tool per store operation, dispatched
// synchronously, with typed errors reported per call.
type Server struct {
	svc    *knowledge.Service
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewServer creates a new MCP server reading requests from in and writing
// responses to out (normally stdin/stdout).
func NewServer(svc *knowledge.Service, in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	return &Server{svc: svc, in: in, out: out, logger: logger}
}

// Run starts the stdio event loop. Blocks until the input stream is closed.
func (s *Server) Run() error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer for large messages
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, -32700, "parse error: "+err.Error())
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.writeResponse(resp)
		}
	}

	return scanner.Err()
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		// Notification — no response
		return nil
	case "tools/list":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: ToolDefinitions()}}
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "method not found: " + req.Method},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools: &ToolCapabilities{},
			},
			ServerInfo: ServerInfo{
				Name:    "recall",
				Version: "1.0.0",
			},
		},
	}
}

func (s *Server) handleToolsCall(req *Request) *Response {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params")
	}

	var params CallToolParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params: "+err.Error())
	}

	result, isError := s.dispatchTool(params.Name, params.Arguments)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

// dispatchTool runs one tool and renders the result or the typed error.
// Errors carry the taxonomy kind so the orchestration layer can tell a
// caller mistake from a storage failure.
func (s *Server) dispatchTool(name string, args map[string]any) (string, bool) {
	result, err := s.callTool(name, args)
	if err != nil {
		s.logger.Debug("tool call failed", "tool", name, "kind", store.Kind(err), "error", err)
		return fmt.Sprintf("%s: %s", store.Kind(err), err.Error()), true
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("marshal result: %s", err), true
	}
	return string(data), false
}

func (s *Server) callTool(name string, args map[string]any) (any, error) {
	switch name {
	case "memory_write":
		var req models.WriteMemoryRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return s.svc.WriteMemory(&req)

	case "memory_read":
		m, err := s.svc.ReadMemory(argStr(args, "key"))
		if err != nil {
			return nil, err
		}
		if m == nil {
			return absent(), nil
		}
		return m, nil

	case "memory_search":
		var req models.SearchMemoryRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		res, err := s.svc.SearchMemories(&req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"memories": emptyIfNil(res)}, nil

	case "memory_list":
		var req models.ListMemoryRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		res, err := s.svc.ListMemories(&req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"memories": emptyIfNil(res)}, nil

	case "memory_delete":
		return s.svc.DeleteMemory(argStr(args, "key"))

	case "memory_stats":
		return s.svc.MemoryStats()

	case "skill_register":
		var req models.RegisterSkillRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return s.svc.RegisterSkill(&req)

	case "skill_usage_start":
		var req models.UsageStartRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		id, err := s.svc.StartUsage(&req)
		if err != nil {
			return nil, err
		}
		return map[string]string{"usageId": id}, nil

	case "skill_usage_end":
		var req models.UsageEndRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		u, err := s.svc.EndUsage(&req)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return absent(), nil
		}
		return u, nil

	case "skill_recommend":
		var req models.RecommendRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		recs, err := s.svc.RecommendSkills(&req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"recommendations": emptyIfNil(recs)}, nil

	case "skill_stats":
		return s.svc.SkillStats()

	case "failure_record":
		var req models.RecordFailureRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return s.svc.RecordFailure(&req)

	case "failure_search":
		res, err := s.svc.SearchFailures(argStr(args, "query"), argInt(args, "limit"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"failures": emptyIfNil(res)}, nil

	case "failure_list":
		res, err := s.svc.ListFailures(argStr(args, "skillName"), argInt(args, "limit"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"failures": emptyIfNil(res)}, nil

	case "failure_update":
		f, err := s.svc.UpdateFailureSolution(int64(argInt(args, "id")), argStr(args, "solution"))
		if err != nil {
			return nil, err
		}
		if f == nil {
			return absent(), nil
		}
		return f, nil

	case "failure_stats":
		return s.svc.FailureStats()

	case "context_set":
		var req models.SetContextRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return s.svc.SetContext(&req)

	case "context_get":
		e, err := s.svc.GetContext(argStr(args, "sessionId"), argStr(args, "key"))
		if err != nil {
			return nil, err
		}
		if e == nil {
			return absent(), nil
		}
		return e, nil

	case "context_list":
		res, err := s.svc.ListContext(argStr(args, "sessionId"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": emptyIfNil(res)}, nil

	case "context_clear":
		return s.svc.ClearContext(argStr(args, "sessionId"))

	case "context_share":
		var req models.ShareContextRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return s.svc.ShareContext(&req)

	default:
		return nil, store.Validationf("unknown tool: %s", name)
	}
}

// --- Response helpers ---

func (s *Server) writeResponse(resp *Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(s.out, "%s\n", data)
}

func (s *Server) writeError(id any, code int, message string) {
	s.writeResponse(&Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}

func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// --- Argument helpers ---

// decodeArgs maps loose tool arguments onto a typed request struct.
func decodeArgs(args map[string]any, into any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return store.Validationf("invalid arguments: %v", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return store.Validationf("invalid arguments: %v", err)
	}
	return nil
}

func argStr(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// absent is the explicit not-found result; missing rows are never errors.
func absent() map[string]any {
	return map[string]any{"found": false}
}

// emptyIfNil keeps empty result sets rendering as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
