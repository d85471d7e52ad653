// Package a2a exposes the sales service as an Agent2Agent (A2A) agent:
// JSON-RPC 2.0 over HTTP plus an unauthenticated agent card. Every JSON-RPC
// call runs under the identity resolved from its HTTP request.
package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rhuss/sellside/pkg/auth"
	"github.com/rhuss/sellside/pkg/debug"
	"github.com/rhuss/sellside/pkg/sales"
)

// Well-known paths.
const (
	DefaultPath         = "/a2a"
	AgentCardPath       = "/.well-known/agent-card.json"
	LegacyAgentCardPath = "/.well-known/agent.json"
)

// ProtocolVersion is the A2A protocol version advertised in the agent card.
const ProtocolVersion = "0.3.0"

// Config configures the A2A surface.
type Config struct {
	Name        string
	Description string
	Version     string

	// PublicURL is the externally visible base URL advertised in the agent
	// card. When empty it is derived from each request, so every tenant
	// domain advertises itself.
	PublicURL string

	// Path is the JSON-RPC endpoint (default /a2a).
	Path string

	Credentials       auth.CredentialOptions
	MaxTasksPerTenant int
	Logger            *slog.Logger
}

// Server serves the A2A agent.
type Server struct {
	cfg     Config
	svc     sales.Service
	tasks   *TaskStore
	logger  *slog.Logger
	handler http.Handler
}

// New creates the A2A server.
func New(resolver *auth.Resolver, svc sales.Service, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "sellside"
	}
	if cfg.Description == "" {
		cfg.Description = "Publisher sales agent for advertising inventory"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		tasks:  NewTaskStore(cfg.MaxTasksPerTenant),
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+cfg.Path, s.serveRPC)
	mux.HandleFunc("GET "+AgentCardPath, s.serveAgentCard)
	mux.HandleFunc("GET "+LegacyAgentCardPath, s.serveAgentCard)

	authn := auth.Middleware(resolver, cfg.Credentials, s.writeAuthError, []string{AgentCardPath, LegacyAgentCardPath})
	s.handler = authn(mux)
	return s
}

// Handler returns the HTTP handler for the agent card and JSON-RPC endpoint.
func (s *Server) Handler() http.Handler { return s.handler }

// Card returns the agent card as seen by r.
func (s *Server) Card(r *http.Request) AgentCard {
	return AgentCard{
		Name:               s.cfg.Name,
		Description:        s.cfg.Description,
		URL:                s.endpointURL(r),
		Version:            s.cfg.Version,
		ProtocolVersion:    ProtocolVersion,
		PreferredTransport: "JSONRPC",
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"application/json"},
		Skills:             Skills,
		SecuritySchemes: map[string]SecurityScheme{
			"bearer": {Type: "http", Scheme: "bearer", Description: "Principal access token issued by the publisher"},
		},
		Security: []map[string][]string{{"bearer": {}}},
	}
}

func (s *Server) endpointURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/") + s.cfg.Path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + s.cfg.Path
}

func (s *Server) serveAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Card(r)); err != nil {
		s.logger.Debug("writing agent card", "error", err)
	}
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeRPC(w, status, jsonrpc.ID{}, nil, rpcError(jsonrpc.CodeParseError, "unable to read request body"))
		return
	}
	debug.Trace("a2a", "rpc request", "body", debug.Truncate(string(body), 4096))
	if !json.Valid(body) {
		s.writeRPC(w, http.StatusOK, jsonrpc.ID{}, nil, rpcError(jsonrpc.CodeParseError, "parse error"))
		return
	}
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		s.writeRPC(w, http.StatusOK, jsonrpc.ID{}, nil, rpcError(jsonrpc.CodeInvalidRequest, "invalid request"))
		return
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok || !req.ID.IsValid() {
		s.writeRPC(w, http.StatusOK, jsonrpc.ID{}, nil, rpcError(jsonrpc.CodeInvalidRequest, "invalid request"))
		return
	}

	rc, ok := auth.FromContext(r.Context())
	if !ok {
		s.logger.ErrorContext(r.Context(), "a2a call reached dispatch without a bound identity", "method", req.Method)
		s.writeRPC(w, http.StatusInternalServerError, req.ID, nil, rpcError(jsonrpc.CodeInternalError, "internal error"))
		return
	}

	var (
		result any
		rerr   *jsonrpc.Error
	)
	switch req.Method {
	case MethodSendMessage:
		result, rerr = s.sendMessage(r.Context(), rc, req.Params)
	case MethodGetTask:
		result, rerr = s.getTask(rc, req.Params)
	default:
		rerr = rpcError(jsonrpc.CodeMethodNotFound, "method not found: "+req.Method)
	}
	if rerr != nil {
		s.writeRPC(w, http.StatusOK, req.ID, nil, rerr)
		return
	}
	s.writeRPC(w, http.StatusOK, req.ID, result, nil)
}

func (s *Server) sendMessage(ctx context.Context, rc auth.RequestContext, params json.RawMessage) (any, *jsonrpc.Error) {
	var p SendMessageParams
	if err := json.Unmarshal(params, &p); err != nil || len(p.Message.Parts) == 0 {
		return nil, rpcError(jsonrpc.CodeInvalidParams, "params.message with at least one part is required")
	}

	inv, err := route(p.Message)
	if err != nil {
		return nil, rpcError(jsonrpc.CodeInvalidParams, err.Error())
	}
	data, err := run(ctx, s.svc, inv)
	if err != nil {
		s.logger.ErrorContext(ctx, "a2a skill failed",
			append([]any{"skill", inv.Skill, "error", err}, attrsOf(ctx)...)...)
		return nil, rpcError(jsonrpc.CodeInternalError, "internal error")
	}

	msg := p.Message
	msg.Kind = "message"
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.ContextID == "" {
		msg.ContextID = uuid.NewString()
	}

	task := Task{
		Kind:      "task",
		ID:        uuid.NewString(),
		ContextID: msg.ContextID,
		Status:    TaskStatus{State: TaskCompleted, Timestamp: time.Now().UTC()},
		Artifacts: []Artifact{{
			ArtifactID: uuid.NewString(),
			Name:       inv.Skill,
			Parts:      []Part{{Kind: PartData, Data: data}},
		}},
		History: []Message{msg},
	}
	s.tasks.Put(rc.TenantID(), task)
	return task, nil
}

func (s *Server) getTask(rc auth.RequestContext, params json.RawMessage) (any, *jsonrpc.Error) {
	var p GetTaskParams
	if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
		return nil, rpcError(jsonrpc.CodeInvalidParams, "params.id is required")
	}
	task, ok := s.tasks.Get(rc.TenantID(), p.ID)
	if !ok {
		return nil, rpcError(CodeTaskNotFound, "task not found")
	}
	return task, nil
}

// writeAuthError renders an identity failure as a JSON-RPC error with the
// HTTP status of the failure.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *auth.AuthError
	if !errors.As(err, &ae) {
		s.logger.ErrorContext(r.Context(), "resolving a2a caller", "error", err)
		s.writeRPC(w, http.StatusInternalServerError, jsonrpc.ID{}, nil, rpcError(jsonrpc.CodeInternalError, "internal error"))
		return
	}

	status := ae.HTTPStatus()
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="a2a"`)
	}
	rerr := rpcError(CodeAuthFailed, ae.PublicMessage())
	rerr.Data = mustRaw(errorData{Reason: string(ae.Code)})
	s.writeRPC(w, status, jsonrpc.ID{}, nil, rerr)
}

// nullIDResponse is an error response to a request whose id is unknown.
// JSON-RPC requires the id member to be present and null in that case.
type nullIDResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      *string        `json:"id"`
	Error   *jsonrpc.Error `json:"error"`
}

func (s *Server) writeRPC(w http.ResponseWriter, status int, id jsonrpc.ID, result any, rerr *jsonrpc.Error) {
	var (
		body []byte
		err  error
	)
	if !id.IsValid() {
		body, err = json.Marshal(nullIDResponse{JSONRPC: "2.0", Error: rerr})
	} else {
		resp := &jsonrpc.Response{ID: id}
		if rerr != nil {
			resp.Error = rerr
		} else if resp.Result, err = json.Marshal(result); err != nil {
			s.logger.Error("encoding a2a result", "error", err)
			resp.Result = nil
			resp.Error = rpcError(jsonrpc.CodeInternalError, "internal error")
			status = http.StatusInternalServerError
		}
		body, err = jsonrpc.EncodeMessage(resp)
	}
	if err != nil {
		s.logger.Error("encoding a2a response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func rpcError(code int64, msg string) *jsonrpc.Error {
	return &jsonrpc.Error{Code: code, Message: msg}
}

func attrsOf(ctx context.Context) []any {
	var out []any
	for _, a := range auth.LogAttrs(ctx) {
		out = append(out, a)
	}
	return out
}
