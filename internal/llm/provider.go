package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"

	"siem-mcp/internal/siemerr"
)

// Provider types
const (
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderAnthropic        = "anthropic"
)

const defaultMaxTokens = 4096

// Request is a single-turn completion: one system instruction and one user
// message. JSON asks the model for a JSON object where the API supports it.
type Request struct {
	System    string
	Prompt    string
	JSON      bool
	MaxTokens int
}

// Provider completes prompts against a hosted language model.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config selects and configures a provider. Nothing is read from the
// environment.
type Config struct {
	Type        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewProvider builds the adapter for cfg.Type.
func NewProvider(cfg Config) (Provider, error) {
	providerType := strings.ToLower(strings.TrimSpace(cfg.Type))
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)

	if apiKey == "" {
		return nil, siemerr.Config("missing provider api key", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, siemerr.Config("missing provider model", nil)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	switch providerType {
	case ProviderOpenAI, ProviderOpenAICompatible:
		opts := []ooption.RequestOption{ooption.WithAPIKey(apiKey)}
		if baseURL != "" {
			opts = append(opts, ooption.WithBaseURL(baseURL))
		}
		client := openai.NewClient(opts...)
		if providerType == ProviderOpenAICompatible {
			return &chatProvider{client: client, cfg: cfg}, nil
		}
		return &openAIProvider{client: client, cfg: cfg}, nil
	case ProviderAnthropic:
		opts := []aoption.RequestOption{aoption.WithAPIKey(apiKey)}
		if baseURL != "" {
			opts = append(opts, aoption.WithBaseURL(baseURL))
		}
		return &anthropicProvider{client: anthropic.NewClient(opts...), cfg: cfg}, nil
	default:
		return nil, siemerr.Config(fmt.Sprintf("unsupported provider type %q", cfg.Type), nil)
	}
}

func maxTokens(cfg Config, req Request) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	return int64(cfg.MaxTokens)
}

func finish(provider, text string, err error) (string, error) {
	if err != nil {
		return "", siemerr.Transport(provider+" completion failed", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", siemerr.Transport(provider+" completion failed", errors.New("empty response"))
	}
	return text, nil
}
