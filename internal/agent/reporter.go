package agent

import (
	"context"
	"strings"

	"siem-mcp/internal/prompts"
	"siem-mcp/internal/siemerr"
)

// maxReportData bounds the result text sent to the model.
const maxReportData = 200_000

// Reporter writes Markdown analysis reports for saved result files.
type Reporter struct {
	base
}

// Summarize renders a report for the result file at path, whose contents are
// data, produced by query.
func (r *Reporter) Summarize(ctx context.Context, path string, data []byte, query string) (string, error) {
	if len(data) == 0 {
		return "", siemerr.NotFound("result file is empty", nil)
	}

	text := string(data)
	if len(text) > maxReportData {
		text = text[:maxReportData] + "\n... (truncated)"
	}

	report, err := r.ask(ctx, prompts.RoleSummary, map[string]any{
		"file_path": path,
		"query":     query,
		"data":      text,
	}, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(report), nil
}
