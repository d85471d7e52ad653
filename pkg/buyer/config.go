package buyer

import (
	"fmt"
	"net/http"
	"strings"
)

// Placement names where the client sends its credential.
type Placement string

// Credential placements.
const (
	PlaceBearer    Placement = "bearer"     // Authorization: Bearer <token>
	PlaceAltHeader Placement = "alt-header" // X-Adcp-Auth: <token> (MCP only)
	PlaceQuery     Placement = "query"      // ?access_token=<token>
)

// Config describes how to reach one gateway as one principal.
type Config struct {
	// BaseURL is the gateway origin, e.g. https://sales.example.com.
	BaseURL string

	// Host overrides the Host header, e.g. acme.sales.example.com when
	// BaseURL points at a load balancer address.
	Host string

	// Tenant is sent in the explicit tenant header when set.
	Tenant       string
	TenantHeader string // default: X-Tenant

	Token     string
	Placement Placement // default: bearer

	MCPPath string // default: /mcp
	A2APath string // default: /a2a

	// HTTPClient is the base client. Its Transport is wrapped.
	HTTPClient *http.Client
}

func (c *Config) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TenantHeader == "" {
		c.TenantHeader = "X-Tenant"
	}
	if c.Placement == "" {
		c.Placement = PlaceBearer
	}
	switch c.Placement {
	case PlaceBearer, PlaceAltHeader, PlaceQuery:
	default:
		return fmt.Errorf("unknown credential placement %q", c.Placement)
	}
	if c.MCPPath == "" {
		c.MCPPath = "/mcp"
	}
	if c.A2APath == "" {
		c.A2APath = "/a2a"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return nil
}
