package sales

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rhuss/sellside/pkg/auth"
)

// StandardFormats are the IAB formats every tenant can reference.
var StandardFormats = []Format{
	{FormatID: "display_300x250", Name: "Medium Rectangle", Type: "display", Width: 300, Height: 250},
	{FormatID: "display_728x90", Name: "Leaderboard", Type: "display", Width: 728, Height: 90},
	{FormatID: "display_320x50", Name: "Mobile Banner", Type: "display", Width: 320, Height: 50},
	{FormatID: "video_15s", Name: "Pre-roll 15s", Type: "video"},
	{FormatID: "video_30s", Name: "Pre-roll 30s", Type: "video"},
	{FormatID: "audio_30s", Name: "Audio Spot 30s", Type: "audio"},
}

// TenantCatalog is the sellable inventory of one tenant.
type TenantCatalog struct {
	TenantID      string    `yaml:"tenant_id"`
	PublisherName string    `yaml:"publisher_name"`
	Products      []Product `yaml:"products"`
}

// Catalog is an in-memory Service keyed by tenant.
type Catalog struct {
	mu      sync.RWMutex
	tenants map[string]TenantCatalog
	formats map[string]Format
}

// Ensure Catalog implements Service at compile time.
var _ Service = (*Catalog)(nil)

// NewCatalog creates a catalog with the standard formats and the given
// tenant inventories.
func NewCatalog(tenants ...TenantCatalog) *Catalog {
	c := &Catalog{
		tenants: make(map[string]TenantCatalog),
		formats: make(map[string]Format),
	}
	for _, f := range StandardFormats {
		c.formats[f.FormatID] = f
	}
	for _, t := range tenants {
		c.Put(t)
	}
	return c
}

// Put adds or replaces a tenant's inventory.
func (c *Catalog) Put(t TenantCatalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenants[t.TenantID] = t
}

func (c *Catalog) tenant(ctx context.Context) (TenantCatalog, auth.RequestContext, error) {
	rc, ok := auth.FromContext(ctx)
	if !ok {
		return TenantCatalog{}, auth.RequestContext{}, ErrUnbound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenants[rc.TenantID()], rc, nil
}

// GetProducts returns products whose name or description contains every word
// of brief, case-insensitively.
func (c *Catalog) GetProducts(ctx context.Context, brief string) ([]Product, error) {
	tc, _, err := c.tenant(ctx)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(brief))
	out := make([]Product, 0, len(tc.Products))
	for _, p := range tc.Products {
		text := strings.ToLower(p.Name + " " + p.Description)
		if matchesAll(text, words) {
			p.FormatIDs = slices.Clone(p.FormatIDs)
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

// ListCreativeFormats returns the formats referenced by the tenant's
// products, or the standard formats if the tenant has none.
func (c *Catalog) ListCreativeFormats(ctx context.Context) ([]Format, error) {
	tc, _, err := c.tenant(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Format
	for _, p := range tc.Products {
		for _, id := range p.FormatIDs {
			if f, ok := c.formats[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		out = slices.Clone(StandardFormats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormatID < out[j].FormatID })
	return out, nil
}

// GetAccount returns the bound identity.
func (c *Catalog) GetAccount(ctx context.Context) (Account, error) {
	tc, rc, err := c.tenant(ctx)
	if err != nil {
		return Account{}, err
	}
	return Account{
		TenantID:         rc.TenantID(),
		PublisherName:    tc.PublisherName,
		PrincipalID:      rc.PrincipalID(),
		ResolutionMethod: string(rc.Method()),
	}, nil
}
