// Package mcp exposes the sales service as Model Context Protocol tools over
// streamable HTTP. Each tool call resolves the caller's tenant and principal
// from the HTTP request that carried it and runs under that binding.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/sellside/pkg/auth"
	"github.com/rhuss/sellside/pkg/debug"
	"github.com/rhuss/sellside/pkg/sales"
)

// DefaultAlternateHeader is the AdCP credential header accepted next to
// Authorization.
const DefaultAlternateHeader = "X-Adcp-Auth"

// Config configures the MCP surface.
type Config struct {
	Name        string
	Version     string
	Credentials auth.CredentialOptions
	Logger      *slog.Logger
}

// Server serves the sales tools over MCP.
type Server struct {
	resolver *auth.Resolver
	svc      sales.Service
	creds    auth.CredentialOptions
	logger   *slog.Logger

	server     *mcp.Server
	streamable http.Handler
}

// New creates the MCP server and registers the sales tools.
func New(resolver *auth.Resolver, svc sales.Service, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "sellside"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		resolver: resolver,
		svc:      svc,
		creds:    cfg.Credentials,
		logger:   cfg.Logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
	}
	s.registerTools()

	s.streamable = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{
		Stateless:    true,
		JSONResponse: true,
		Logger:       cfg.Logger,
	})
	return s
}

// Handler returns the HTTP handler for the MCP endpoint.
//
// The SDK hands tool handlers the raw request headers, without the Host and
// without the query string. The handler copies both into the header bag
// before dispatch so that tenant resolution sees every signal.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.Clone(r.Context())
		if r.Host != "" {
			r.Header.Set("Host", r.Host)
		}
		auth.PromoteQueryCredential(r, s.creds)
		s.streamable.ServeHTTP(w, r)
	})
}

// bind resolves the identity of the HTTP request behind a tool call.
func (s *Server) bind(ctx context.Context, req *mcp.CallToolRequest) (context.Context, auth.ReleaseFunc, error) {
	h := http.Header{}
	if req != nil && req.Extra != nil && req.Extra.Header != nil {
		h = req.Extra.Header.Clone()
	}
	token, source := auth.Credential(h, nil, s.creds)
	debug.Log("mcp", "tool call credential", "source", string(source))
	return s.resolver.Resolve(ctx, h, token)
}

// ErrorPayload is the structured content of a failed tool call.
type ErrorPayload struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure and carries a client-safe message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResult converts err into a tool error result. Identity failures keep
// their code. Anything else is reported as an internal error without detail.
func (s *Server) errorResult(ctx context.Context, tool string, err error) (*mcp.CallToolResult, any, error) {
	detail := ErrorDetail{Code: "internal_error", Message: "internal error"}

	var ae *auth.AuthError
	switch {
	case errors.As(err, &ae):
		detail = ErrorDetail{Code: string(ae.Code), Message: ae.PublicMessage()}
	case errors.Is(err, auth.ErrAlreadyBound):
		s.logger.ErrorContext(ctx, "tool call already carries a bound identity", "tool", tool)
	default:
		s.logger.ErrorContext(ctx, "tool call failed", "tool", tool, "error", err)
	}

	res := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: detail.Message}},
	}
	return res, ErrorPayload{Error: detail}, nil
}
