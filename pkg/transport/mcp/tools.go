package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/sellside/pkg/sales"
)

// Tool names.
const (
	ToolGetProducts         = "get_products"
	ToolListCreativeFormats = "list_creative_formats"
	ToolGetAccount          = "get_account"
)

// ProductsInput are the arguments of get_products.
type ProductsInput struct {
	Brief string `json:"brief,omitempty" jsonschema:"natural language description of the campaign; every word must match"`
}

// ProductsOutput is the result of get_products.
type ProductsOutput struct {
	Products []sales.Product `json:"products"`
}

// FormatsOutput is the result of list_creative_formats.
type FormatsOutput struct {
	Formats []sales.Format `json:"formats"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolGetProducts,
		Description: "Lists the publisher's advertising products, optionally filtered by a campaign brief",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, bound(s, ToolGetProducts, func(ctx context.Context, in ProductsInput) (any, error) {
		products, err := s.svc.GetProducts(ctx, in.Brief)
		if err != nil {
			return nil, err
		}
		return ProductsOutput{Products: products}, nil
	}))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListCreativeFormats,
		Description: "Lists the creative formats accepted by the publisher's products",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, bound(s, ToolListCreativeFormats, func(ctx context.Context, _ struct{}) (any, error) {
		formats, err := s.svc.ListCreativeFormats(ctx)
		if err != nil {
			return nil, err
		}
		return FormatsOutput{Formats: formats}, nil
	}))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolGetAccount,
		Description: "Returns the tenant and principal the caller is authenticated as",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, bound(s, ToolGetAccount, func(ctx context.Context, _ struct{}) (any, error) {
		return s.svc.GetAccount(ctx)
	}))
}

// bound wraps a tool body so it runs under the caller's resolved identity.
// The binding is released when the body returns.
func bound[In any](s *Server, tool string, fn func(context.Context, In) (any, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		bctx, release, err := s.bind(ctx, req)
		if err != nil {
			return s.errorResult(ctx, tool, err)
		}
		defer release()

		out, err := fn(bctx, in)
		if err != nil {
			return s.errorResult(bctx, tool, err)
		}
		return nil, out, nil
	}
}
