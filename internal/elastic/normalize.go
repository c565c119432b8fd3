package elastic

import "strings"

const filebeatDataStream = ".ds-filebeat-*"

// NormalizeIndexPattern rewrites a loosely specified, comma-separated index
// hint into patterns the cluster will match. Each piece is handled on its own:
//
//   - anything mentioning filebeat becomes the filebeat data stream wildcard
//   - pieces that already contain a wildcard are kept
//   - everything else gets a "-*" suffix
//
// Empty pieces are dropped. If nothing is left the raw input is returned.
func NormalizeIndexPattern(raw string) string {
	pieces := strings.Split(raw, ",")
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if n := normalizePiece(p); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return raw
	}
	return strings.Join(out, ",")
}

func normalizePiece(piece string) string {
	p := strings.TrimSpace(piece)
	switch {
	case p == "":
		return ""
	case strings.Contains(strings.ToLower(p), "filebeat"):
		return filebeatDataStream
	case strings.Contains(p, "*"):
		return p
	case strings.HasSuffix(p, "-*"):
		return p
	default:
		return p + "-*"
	}
}
