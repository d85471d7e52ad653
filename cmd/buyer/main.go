// Command buyer is a smoke-test client for a sellside gateway. It calls the
// gateway the way a buying agent would and prints the JSON result.
//
// Usage:
//
//	buyer -url https://sales.example.com -host acme.sales.example.com -token T tools
//	buyer ... call get_products [brief]
//	buyer ... ask "which formats do you support?"
//	buyer ... invoke get_account
//	buyer ... task <id>
//	buyer ... card
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rhuss/sellside/pkg/buyer"
)

func main() {
	var cfg buyer.Config
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "gateway base URL")
	flag.StringVar(&cfg.Host, "host", "", "Host header override, e.g. acme.sales.example.com")
	flag.StringVar(&cfg.Tenant, "tenant", "", "explicit tenant header value")
	flag.StringVar(&cfg.Token, "token", os.Getenv("SELLSIDE_BUYER_TOKEN"), "access token (default $SELLSIDE_BUYER_TOKEN)")
	placement := flag.String("via", string(buyer.PlaceBearer), "credential placement: bearer, alt-header or query")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: buyer [flags] tools|call|ask|invoke|task|card [args]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.Placement = buyer.Placement(*placement)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	out, err := run(ctx, cfg, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg buyer.Config, args []string) (any, error) {
	c, err := buyer.New(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "tools":
		return c.Tools(ctx)
	case "call":
		if len(rest) == 0 {
			return nil, fmt.Errorf("call needs a tool name")
		}
		var toolArgs map[string]any
		if len(rest) > 1 {
			toolArgs = map[string]any{"brief": strings.Join(rest[1:], " ")}
		}
		raw, err := c.CallTool(ctx, rest[0], toolArgs)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	case "ask":
		if len(rest) == 0 {
			return nil, fmt.Errorf("ask needs a message")
		}
		return c.Ask(ctx, strings.Join(rest, " "))
	case "invoke":
		if len(rest) == 0 {
			return nil, fmt.Errorf("invoke needs a skill name")
		}
		var params map[string]any
		if len(rest) > 1 {
			params = map[string]any{"brief": strings.Join(rest[1:], " ")}
		}
		return c.Invoke(ctx, rest[0], params)
	case "task":
		if len(rest) != 1 {
			return nil, fmt.Errorf("task needs a task id")
		}
		return c.GetTask(ctx, rest[0])
	case "card":
		return c.AgentCard(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}
