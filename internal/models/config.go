package models

import "time"

// Config holds the server configuration parameters
type Config struct {
	// Elasticsearch connection settings
	ElasticURL        string        `validate:"required,url"`
	ElasticUsername   string        // Basic auth user
	ElasticPassword   string        // Basic auth password
	ElasticAPIKey     string        // Encoded API key, takes precedence over basic auth
	ElasticTimeout    time.Duration `validate:"gt=0"`
	ElasticHitsTotal  string        `validate:"oneof=auto object scalar"`
	ElasticSchemaPath string        `validate:"required"`
	KibanaURL         string        `validate:"omitempty,url"`

	// Splunk connection settings
	SplunkHost       string
	SplunkPort       int    `validate:"min=1,max=65535"`
	SplunkScheme     string `validate:"oneof=http https"`
	SplunkUsername   string
	SplunkPassword   string
	SplunkToken      string // Bearer token, takes precedence over username/password
	SplunkTimeout    time.Duration `validate:"gt=0"`
	SplunkMaxResults int           `validate:"gt=0"`
	SplunkSchemaPath string        `validate:"required"`
	SplunkWebURL     string        `validate:"omitempty,url"`
	VerifySSL        bool

	// Result persistence
	ResultsDir string `validate:"required"`
	ResultsDB  string // SQLite ledger path, empty disables the ledger

	// Language model settings
	LLMProvider    string `validate:"omitempty,oneof=openai openai_compatible anthropic"`
	LLMBaseURL     string `validate:"omitempty,url"`
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64 `validate:"gte=0,lte=2"`
	LLMMaxTokens   int     `validate:"gte=0"`

	// Example retrieval
	QdrantURL        string `validate:"omitempty,url"`
	QdrantAPIKey     string
	QdrantCollection string
	JinaAPIKey       string
	RetrievalTopK    int `validate:"gte=1"`

	// Rate limiting configuration
	RequestRateLimit float64 `validate:"gt=0"` // Maximum requests per second
	RequestRateBurst int     `validate:"gte=1"` // Maximum burst capacity for requests

	// Server settings
	Transport string `validate:"oneof=stdio http"`
	Host      string
	Port      string
	LogLevel  string
	LogFormat string `validate:"oneof=console json"`
	Debug     bool
}

// LLMEnabled reports whether a language model provider has been configured.
func (c Config) LLMEnabled() bool {
	return c.LLMProvider != "" && c.LLMAPIKey != "" && c.LLMModel != ""
}

// SplunkEnabled reports whether Splunk connection settings are present.
func (c Config) SplunkEnabled() bool {
	return c.SplunkHost != ""
}

// RetrievalEnabled reports whether example retrieval can be used.
func (c Config) RetrievalEnabled() bool {
	return c.QdrantURL != "" && c.QdrantCollection != "" && c.JinaAPIKey != ""
}
