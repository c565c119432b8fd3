package deeplink

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rison encodes v in the compact notation Kibana uses for URL state.
// Values are first passed through encoding/json so structs and numbers
// behave as they would in the query DSL.
func Rison(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "!n"
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "!n"
	}
	var sb strings.Builder
	writeRison(&sb, generic)
	return sb.String()
}

func writeRison(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("!n")
	case bool:
		if t {
			sb.WriteString("!t")
		} else {
			sb.WriteString("!f")
		}
	case float64:
		sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		sb.WriteString(risonString(t))
	case []any:
		sb.WriteString("!(")
		for i, item := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeRison(sb, item)
		}
		sb.WriteByte(')')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('(')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(risonString(k))
			sb.WriteByte(':')
			writeRison(sb, t[k])
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(risonString(fmt.Sprint(t)))
	}
}

func risonString(s string) string {
	if isRisonID(s) {
		return s
	}
	r := strings.NewReplacer("!", "!!", "'", "!'")
	return "'" + r.Replace(s) + "'"
}

// isRisonID reports whether s can be written without quotes.
func isRisonID(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c == '-' || (c >= '0' && c <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '/', c == '~', c == '-', c == '@', c == '$':
		default:
			return false
		}
	}
	return true
}
