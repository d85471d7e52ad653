package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/sellside/pkg/sales"
)

// Skill identifiers, shared with the MCP tool names.
const (
	SkillGetProducts         = "get_products"
	SkillListCreativeFormats = "list_creative_formats"
	SkillGetAccount          = "get_account"
)

// errUnknownSkill is reported as invalid params.
var errUnknownSkill = errors.New("unknown skill")

// Skills is the skill list advertised in the agent card.
var Skills = []AgentSkill{
	{
		ID:          SkillGetProducts,
		Name:        "Get products",
		Description: "Lists the publisher's advertising products, optionally filtered by a campaign brief",
		Tags:        []string{"products", "inventory"},
		Examples:    []string{"Which products do you have?"},
	},
	{
		ID:          SkillListCreativeFormats,
		Name:        "List creative formats",
		Description: "Lists the creative formats accepted by the publisher's products",
		Tags:        []string{"formats", "creatives"},
		Examples:    []string{"Which creative formats do you accept?"},
	},
	{
		ID:          SkillGetAccount,
		Name:        "Get account",
		Description: "Returns the tenant and principal the caller is authenticated as",
		Tags:        []string{"account"},
		Examples:    []string{"Which account am I using?"},
	},
}

// invocation is a routed skill call.
type invocation struct {
	Skill string
	Brief string
}

// route picks the skill for a message. A data part naming a skill wins over
// keyword matching on the text parts.
func route(msg Message) (invocation, error) {
	var text []string
	for _, p := range msg.Parts {
		switch p.Kind {
		case PartData:
			skill, _ := p.Data["skill"].(string)
			if skill == "" {
				continue
			}
			inv := invocation{Skill: skill}
			if params, ok := p.Data["parameters"].(map[string]any); ok {
				inv.Brief, _ = params["brief"].(string)
			}
			switch skill {
			case SkillGetProducts, SkillListCreativeFormats, SkillGetAccount:
				return inv, nil
			default:
				return invocation{}, fmt.Errorf("%w %q", errUnknownSkill, skill)
			}
		case PartText:
			text = append(text, p.Text)
		}
	}

	q := strings.ToLower(strings.Join(text, " "))
	switch {
	case strings.Contains(q, "format"):
		return invocation{Skill: SkillListCreativeFormats}, nil
	case strings.Contains(q, "account") || strings.Contains(q, "who am i"):
		return invocation{Skill: SkillGetAccount}, nil
	default:
		return invocation{Skill: SkillGetProducts}, nil
	}
}

// run executes inv against svc and returns its result as a data artifact
// payload.
func run(ctx context.Context, svc sales.Service, inv invocation) (map[string]any, error) {
	var result any
	switch inv.Skill {
	case SkillGetProducts:
		products, err := svc.GetProducts(ctx, inv.Brief)
		if err != nil {
			return nil, err
		}
		result = map[string]any{"products": products}
	case SkillListCreativeFormats:
		formats, err := svc.ListCreativeFormats(ctx)
		if err != nil {
			return nil, err
		}
		result = map[string]any{"formats": formats}
	case SkillGetAccount:
		acct, err := svc.GetAccount(ctx)
		if err != nil {
			return nil, err
		}
		result = acct
	default:
		return nil, fmt.Errorf("%w %q", errUnknownSkill, inv.Skill)
	}

	// Artifacts carry plain JSON objects.
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", inv.Skill, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", inv.Skill, err)
	}
	return data, nil
}
