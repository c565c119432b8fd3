package agent

import (
	"context"
	"strings"

	"siem-mcp/internal/models"
	"siem-mcp/internal/prompts"
	"siem-mcp/internal/siemerr"
)

// Defaults applied when the model leaves parts of the intent out.
const (
	DefaultIntent    = "search"
	DefaultTimeStart = "now-24h"
	DefaultTimeEnd   = "now"
)

// IntentResolver turns a free-text question into a structured Intent.
type IntentResolver struct {
	base
}

// Resolve asks the model to parse question. OriginalQuery always carries the
// question verbatim, whatever the model echoed.
func (r *IntentResolver) Resolve(ctx context.Context, question string) (models.Intent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Intent{}, siemerr.Config("question cannot be empty", nil)
	}

	var intent models.Intent
	if err := r.askJSON(ctx, prompts.RoleIntent, map[string]any{"question": question}, &intent); err != nil {
		return models.Intent{}, err
	}

	intent.OriginalQuery = question
	if intent.Intent == "" {
		intent.Intent = DefaultIntent
	}
	if intent.TimeRange.Start == "" {
		intent.TimeRange.Start = DefaultTimeStart
	}
	if intent.TimeRange.End == "" {
		intent.TimeRange.End = DefaultTimeEnd
	}
	return intent, nil
}
