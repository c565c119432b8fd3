package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

type anthropicProvider struct {
	client anthropic.Client
	cfg    Config
}

func (p *anthropicProvider) Name() string { return ProviderAnthropic }

// Complete sends one user message. Anthropic has no JSON mode, so callers
// rely on the prompt and on lenient parsing of the answer.
func (p *anthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(strings.TrimSpace(p.cfg.Model)),
		MaxTokens:   maxTokens(p.cfg, req),
		Temperature: anthropic.Float(p.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return finish(p.Name(), "", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		}
	}
	return finish(p.Name(), text.String(), nil)
}
