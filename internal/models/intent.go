package models

// Backend names a supported search platform
type Backend string

const (
	BackendElastic Backend = "elk"
	BackendSplunk  Backend = "splunk"
)

// IntentTarget is the primary entity the analyst asked about
type IntentTarget struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// TimeRange uses backend-relative expressions such as now-7d
type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IntentCondition is a single field predicate extracted from the question
type IntentCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Intent is the structured form of an analyst question
type Intent struct {
	Intent        string            `json:"intent"`
	Target        IntentTarget      `json:"target"`
	TimeRange     TimeRange         `json:"time_range"`
	Conditions    []IntentCondition `json:"conditions,omitempty"`
	Keywords      []string          `json:"keywords,omitempty"`
	OriginalQuery string            `json:"original_query"`
}

// SearchText joins the parts of an intent that are useful for similarity search.
func (i Intent) SearchText() string {
	text := i.OriginalQuery
	if i.Target.Value != "" {
		text += " " + i.Target.Value
	}
	for _, k := range i.Keywords {
		text += " " + k
	}
	return text
}
