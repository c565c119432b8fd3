package splunk

import (
	"regexp"
	"strings"
)

// rawEventSources are Windows event channels that Splunk stores as raw XML,
// so field filters on them silently match nothing.
var rawEventSources = []string{
	"XmlWinEventLog:Microsoft-Windows-Sysmon/Operational",
	"XmlWinEventLog:Security",
	"XmlWinEventLog:System",
	"XmlWinEventLog:Application",
}

// softFields are rewritten into raw-text wildcard terms on rawEventSources.
var softFields = []string{
	"process_name",
	"cmdline",
	"parent_process",
	"parent_cmdline",
	"dest_ip",
	"dest_port",
	"src_ip",
	"src_port",
	"user",
}

var softFieldPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(softFields))
	for _, f := range softFields {
		q := regexp.QuoteMeta(f)
		m[f] = regexp.MustCompile(`\s+` + q + `="([^"]+)"|\s+` + q + `=(\S+)`)
	}
	return m
}()

const pipeSeparator = " | "

// RepairQuery cleans up SPL produced by a language model before submission:
// escaped quotes and newlines are undone, a leading "search " is added when
// missing, and soft field filters against raw Windows event sources become
// "*value*" full-text terms. Only the first clause per soft field is
// rewritten, so a query that repeats a soft field changes again on a second
// call. Repair once, right before submission.
func RepairQuery(q string) string {
	q = strings.ReplaceAll(q, `\"`, `"`)
	q = strings.ReplaceAll(q, `\n`, " ")
	q = strings.TrimSpace(q)

	if !strings.HasPrefix(q, "search ") {
		q = "search " + q
	}

	if !referencesRawSource(q) {
		return q
	}

	var terms []string
	for _, field := range softFields {
		re := softFieldPatterns[field]
		loc := re.FindStringSubmatchIndex(q)
		if loc == nil {
			continue
		}

		value := submatch(q, loc, 1)
		if value == "" {
			value = submatch(q, loc, 2)
		}
		q = q[:loc[0]] + q[loc[1]:]
		terms = append(terms, `"*`+strings.Trim(value, "*")+`*"`)
	}

	q = strings.TrimSpace(q)
	if len(terms) == 0 {
		return q
	}

	joined := strings.Join(terms, " ")
	if i := strings.Index(q, pipeSeparator); i >= 0 {
		return q[:i] + " " + joined + pipeSeparator + q[i+len(pipeSeparator):]
	}
	return q + " " + joined
}

func referencesRawSource(q string) bool {
	for _, src := range rawEventSources {
		if strings.Contains(q, src) {
			return true
		}
	}
	return false
}

func submatch(s string, loc []int, group int) string {
	start, end := loc[2*group], loc[2*group+1]
	if start < 0 {
		return ""
	}
	return s[start:end]
}
