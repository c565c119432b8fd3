package utils

import (
	"os"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SetupElasticURLOrSkip returns TEST_ELASTIC_URL, or skips the test if it is not set.
// Integration tests against a live cluster use it.
func SetupElasticURLOrSkip(t *testing.T) string {
	t.Helper()
	u := os.Getenv("TEST_ELASTIC_URL")
	if u == "" {
		t.Skip("Skipping integration test: TEST_ELASTIC_URL not set")
	}
	return u
}

// GetTextContent extracts TextContent from a CallToolResult, failing the test if not possible.
// Returns the text content string for further processing.
func GetTextContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("expected non-nil result")
	}
	if len(result.Content) == 0 {
		t.Fatalf("expected content in result")
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent type")
	}
	return textContent.Text
}
