package agent

import (
	"context"
	"encoding/json"
	"time"

	"siem-mcp/internal/llm"
	"siem-mcp/internal/prompts"
	"siem-mcp/internal/siemerr"
	"siem-mcp/internal/utils"

	"github.com/rs/zerolog"
)

// Set bundles the model-backed steps of a pipeline run.
type Set struct {
	Intent   *IntentResolver
	Builder  *QueryBuilder
	Reporter *Reporter
}

// NewSet wires every step to the same provider and template library.
func NewSet(provider llm.Provider, lib *prompts.Library, logger zerolog.Logger) *Set {
	b := base{provider: provider, prompts: lib, logger: logger}
	return &Set{
		Intent:   &IntentResolver{base: b},
		Builder:  &QueryBuilder{base: b},
		Reporter: &Reporter{base: b},
	}
}

type base struct {
	provider llm.Provider
	prompts  *prompts.Library
	logger   zerolog.Logger
}

func (b base) ask(ctx context.Context, role string, data map[string]any, jsonMode bool) (string, error) {
	rendered, err := b.prompts.Render(role, data)
	if err != nil {
		return "", siemerr.Config("render prompt", err)
	}

	start := time.Now()
	text, err := b.provider.Complete(ctx, llm.Request{
		System: rendered.System,
		Prompt: rendered.User,
		JSON:   jsonMode,
	})
	b.logger.Debug().
		Str("role", role).
		Str("provider", b.provider.Name()).
		Dur("elapsed", time.Since(start)).
		Int("answer_len", len(text)).
		Err(err).
		Msg("model call")
	return text, err
}

// askJSON decodes the first JSON object of the answer into out.
func (b base) askJSON(ctx context.Context, role string, data map[string]any, out any) error {
	text, err := b.ask(ctx, role, data, true)
	if err != nil {
		return err
	}
	raw, err := utils.ExtractJSONObject(utils.StripCodeFence(text))
	if err != nil {
		return siemerr.Model(role+" answer is not JSON", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return siemerr.Model(role+" answer has unexpected shape", err)
	}
	return nil
}
