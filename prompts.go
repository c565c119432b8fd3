package main

import (
	"context"
	"fmt"

	"siem-mcp/internal/prompts"

	last9mcp "github.com/last9/mcp-go-sdk/mcp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerAllPrompts exposes every template role as an MCP prompt, so an
// external agent can run the same steps with its own model.
func registerAllPrompts(server *last9mcp.Last9MCPServer, lib *prompts.Library) {
	for _, name := range lib.Roles() {
		role, _ := lib.Role(name)
		server.Server.AddPrompt(newPrompt(name, role), makePromptHandler(lib, name, role))
	}
}

func newPrompt(name string, role prompts.Role) *mcp.Prompt {
	args := make([]*mcp.PromptArgument, 0, len(role.Arguments))
	for _, a := range role.Arguments {
		args = append(args, &mcp.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return &mcp.Prompt{
		Name:        name,
		Description: role.Description,
		Arguments:   args,
	}
}

// makePromptHandler renders the active version of a role. Arguments the
// client leaves out render as empty strings.
func makePromptHandler(lib *prompts.Library, name string, role prompts.Role) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var given map[string]string
		if req.Params != nil {
			given = req.Params.Arguments
		}

		data := make(map[string]any, len(role.Arguments))
		for _, a := range role.Arguments {
			v := given[a.Name]
			if a.Required && v == "" {
				return nil, fmt.Errorf("prompt %s: argument %q is required", name, a.Name)
			}
			data[a.Name] = v
		}

		rendered, err := lib.Render(name, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render prompt %s: %w", name, err)
		}

		var messages []*mcp.PromptMessage
		if rendered.System != "" {
			// System instructions travel as an assistant message, MCP prompts have no system role
			messages = append(messages, &mcp.PromptMessage{
				Role:    mcp.Role("assistant"),
				Content: &mcp.TextContent{Text: rendered.System},
			})
		}
		messages = append(messages, &mcp.PromptMessage{
			Role:    mcp.Role("user"),
			Content: &mcp.TextContent{Text: rendered.User},
		})

		return &mcp.GetPromptResult{
			Description: role.Description,
			Messages:    messages,
		}, nil
	}
}
