// Package sales is the business logic behind both protocol surfaces. Every
// operation reads the caller's identity from the bound request context and
// only ever sees the data of that tenant.
package sales

import (
	"context"
	"errors"
)

// ErrUnbound is returned when an operation runs without a bound identity.
var ErrUnbound = errors.New("no request identity bound")

// Product is a sellable inventory package.
type Product struct {
	ProductID    string   `json:"product_id" yaml:"product_id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	DeliveryType string   `json:"delivery_type" yaml:"delivery_type"`
	FormatIDs    []string `json:"format_ids" yaml:"format_ids"`
	CPM          float64  `json:"cpm" yaml:"cpm"`
	Currency     string   `json:"currency" yaml:"currency"`
}

// Format is a creative format a product accepts.
type Format struct {
	FormatID string `json:"format_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Account describes who the caller is authenticated as.
type Account struct {
	TenantID         string `json:"tenant_id"`
	PublisherName    string `json:"publisher_name,omitempty"`
	PrincipalID      string `json:"principal_id"`
	ResolutionMethod string `json:"resolution_method"`
}

// Service is the tenant-scoped sales API.
type Service interface {
	// GetProducts returns the tenant's products matching brief. An empty
	// brief matches everything.
	GetProducts(ctx context.Context, brief string) ([]Product, error)

	// ListCreativeFormats returns the formats used by the tenant's products.
	ListCreativeFormats(ctx context.Context) ([]Format, error)

	// GetAccount returns the caller's bound identity.
	GetAccount(ctx context.Context) (Account, error)
}
