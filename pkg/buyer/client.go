package buyer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/sellside/pkg/transport/a2a"
	sellmcp "github.com/rhuss/sellside/pkg/transport/mcp"
)

// ToolError is a tool call the gateway answered with an error result.
type ToolError struct {
	Tool    string
	Code    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Tool, e.Code, e.Message)
}

// RPCError is a JSON-RPC error returned by the A2A surface.
type RPCError struct {
	Status  int
	Code    int64
	Message string
	Reason  string
}

func (e *RPCError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("a2a error %d (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("a2a error %d: %s", e.Code, e.Message)
}

// Client talks to one gateway as one principal. The MCP session is opened
// on first use. A Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	mu      sync.Mutex
	session *mcp.ClientSession

	nextID atomic.Int64
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: newIdentityTransport(cfg).client()}, nil
}

// mcpSession returns the MCP session, connecting if needed.
func (c *Client) mcpSession(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "sellside-buyer", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:             c.cfg.BaseURL + c.cfg.MCPPath,
		HTTPClient:           c.http,
		MaxRetries:           -1,
		DisableStandaloneSSE: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.cfg.BaseURL+c.cfg.MCPPath, err)
	}
	c.session = session
	return session, nil
}

// Tools lists the tool names the gateway advertises.
func (c *Client) Tools(ctx context.Context) ([]string, error) {
	session, err := c.mcpSession(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		names = append(names, tool.Name)
	}
	return names, nil
}

// CallTool calls an MCP tool and returns its structured result. A tool
// error result is returned as a *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	session, err := c.mcpSession(ctx)
	if err != nil {
		return nil, err
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}

	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", name, err)
	}
	if !res.IsError {
		return raw, nil
	}

	te := &ToolError{Tool: name, Code: "unknown", Message: textOf(res)}
	var payload sellmcp.ErrorPayload
	if json.Unmarshal(raw, &payload) == nil && payload.Error.Code != "" {
		te.Code = payload.Error.Code
		te.Message = payload.Error.Message
	}
	return nil, te
}

func textOf(res *mcp.CallToolResult) string {
	var out string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += tc.Text
		}
	}
	return out
}

// Ask sends a free-text A2A message.
func (c *Client) Ask(ctx context.Context, text string) (*a2a.Task, error) {
	return c.Send(ctx, a2a.Message{
		Role:  "user",
		Parts: []a2a.Part{{Kind: a2a.PartText, Text: text}},
	})
}

// Invoke sends an A2A message that names a skill explicitly.
func (c *Client) Invoke(ctx context.Context, skill string, params map[string]any) (*a2a.Task, error) {
	data := map[string]any{"skill": skill}
	if len(params) > 0 {
		data["parameters"] = params
	}
	return c.Send(ctx, a2a.Message{
		Role:  "user",
		Parts: []a2a.Part{{Kind: a2a.PartData, Data: data}},
	})
}

// Send calls message/send.
func (c *Client) Send(ctx context.Context, msg a2a.Message) (*a2a.Task, error) {
	msg.Kind = "message"
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	var task a2a.Task
	if err := c.rpc(ctx, a2a.MethodSendMessage, a2a.SendMessageParams{Message: msg}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask calls tasks/get.
func (c *Client) GetTask(ctx context.Context, id string) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.rpc(ctx, a2a.MethodGetTask, a2a.GetTaskParams{ID: id}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AgentCard fetches the public agent card.
func (c *Client) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+a2a.AgentCardPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching agent card: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching agent card: status %d", resp.StatusCode)
	}
	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decoding agent card: %w", err)
	}
	return &card, nil
}

// rpcEnvelope is decoded by hand: auth failures carry a null id, which the
// SDK decoder rejects.
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonrpc.Error  `json:"error"`
}

func (c *Client) rpc(ctx context.Context, method string, params, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	id, err := jsonrpc.MakeID(float64(c.nextID.Add(1)))
	if err != nil {
		return err
	}
	body, err := jsonrpc.EncodeMessage(&jsonrpc.Request{ID: id, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.A2APath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}
	var env rpcEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: status %d: decoding response: %w", method, resp.StatusCode, err)
	}
	if env.Error != nil {
		rerr := &RPCError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
		var data struct {
			Reason string `json:"reason"`
		}
		if len(env.Error.Data) > 0 && json.Unmarshal(env.Error.Data, &data) == nil {
			rerr.Reason = data.Reason
		}
		return rerr
	}
	if len(env.Result) == 0 {
		return errors.New(method + ": empty result")
	}
	return json.Unmarshal(env.Result, out)
}

// Close ends the MCP session, if one was opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
