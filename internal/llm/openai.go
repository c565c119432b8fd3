package llm

import (
	"context"
	"strings"

	openai "github.com/openai/openai-go"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
)

// openAIProvider uses the Responses API.
type openAIProvider struct {
	client openai.Client
	cfg    Config
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(strings.TrimSpace(p.cfg.Model)),
		MaxOutputTokens: openai.Int(maxTokens(p.cfg, req)),
		Temperature:     openai.Float(p.cfg.Temperature),
		Input:           oresponses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
	}
	if strings.TrimSpace(req.System) != "" {
		params.Instructions = openai.String(strings.TrimSpace(req.System))
	}
	if req.JSON {
		obj := oshared.NewResponseFormatJSONObjectParam()
		params.Text = oresponses.ResponseTextConfigParam{
			Format: oresponses.ResponseFormatTextConfigUnionParam{OfJSONObject: &obj},
		}
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return finish(p.Name(), "", err)
	}
	return finish(p.Name(), resp.OutputText(), nil)
}

// chatProvider uses Chat Completions, which OpenAI-compatible gateways
// (Gemini, vLLM, Ollama) implement far more widely than Responses.
type chatProvider struct {
	client openai.Client
	cfg    Config
}

func (p *chatProvider) Name() string { return ProviderOpenAICompatible }

func (p *chatProvider) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(strings.TrimSpace(req.System)))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(strings.TrimSpace(p.cfg.Model)),
		Messages:    messages,
		MaxTokens:   openai.Int(maxTokens(p.cfg, req)),
		Temperature: openai.Float(p.cfg.Temperature),
	})
	if err != nil {
		return finish(p.Name(), "", err)
	}
	if len(resp.Choices) == 0 {
		return finish(p.Name(), "", nil)
	}
	return finish(p.Name(), resp.Choices[0].Message.Content, nil)
}
