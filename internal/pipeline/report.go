package pipeline

import (
	"context"
	"strings"

	"siem-mcp/internal/siemerr"
)

const summaryRefusal = "Cannot generate summary: "

// SummaryRequest names the result file to summarize. Message explains a
// missing file, e.g. the "no data" message of an empty search.
type SummaryRequest struct {
	SavedFile string `json:"saved_file"`
	Query     string `json:"query"`
	Message   string `json:"message,omitempty"`
}

// Report is the outcome of a summary request.
type Report struct {
	SavedFile string   `json:"saved_file,omitempty"`
	Query     string   `json:"query,omitempty"`
	Markdown  string   `json:"report,omitempty"`
	Stage     string   `json:"stage"`
	Error     *Failure `json:"error,omitempty"`
}

// Summarize writes a Markdown report for a saved result file. Without a file
// it refuses and echoes the query that was attempted. A missing query is
// looked up in the ledger.
func (r *Runner) Summarize(ctx context.Context, req SummaryRequest) Report {
	rep := Report{SavedFile: req.SavedFile, Query: req.Query, Stage: StageSummary}

	if strings.TrimSpace(req.SavedFile) == "" {
		msg := req.Message
		if msg == "" {
			msg = "no saved result file"
		}
		text := summaryRefusal + msg
		if req.Query != "" {
			text += "\nQuery attempted: " + req.Query
		}
		rep.Error = &Failure{Kind: string(siemerr.KindNotFound), Message: text}
		return rep
	}

	if rep.Query == "" && r.opts.Ledger != nil {
		if rec, err := r.opts.Ledger.ByPath(ctx, req.SavedFile); err == nil {
			rep.Query = rec.Query
		}
	}

	data, err := r.opts.Results.Read(req.SavedFile)
	if err != nil {
		rep.Error = newFailure(err)
		rep.Error.Message = summaryRefusal + rep.Error.Message
		return rep
	}

	markdown, err := r.opts.Agents.Reporter.Summarize(ctx, req.SavedFile, data, rep.Query)
	if err != nil {
		rep.Error = newFailure(err)
		return rep
	}
	rep.Markdown = markdown
	rep.Stage = StageComplete
	return rep
}
