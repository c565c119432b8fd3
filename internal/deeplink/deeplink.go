package deeplink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Route constants matching UI routes
const (
	RouteKibanaDiscover = "app/discover#/"
	RouteSplunkSearch   = "en-US/app/search/search"
)

const defaultLookback = "now-7d"

// Builder helps construct deep links into Kibana and Splunk Web.
// An empty base URL disables links for that UI.
type Builder struct {
	kibanaURL    string
	splunkWebURL string
	lookback     string
}

// NewBuilder creates a new deep link builder
func NewBuilder(kibanaURL, splunkWebURL string) *Builder {
	return &Builder{
		kibanaURL:    strings.TrimRight(kibanaURL, "/"),
		splunkWebURL: strings.TrimRight(splunkWebURL, "/"),
		lookback:     defaultLookback,
	}
}

// Discover creates a Kibana Discover link for an index pattern with the
// query DSL attached as a custom filter.
func (b *Builder) Discover(pattern string, query map[string]any) string {
	if b == nil || b.kibanaURL == "" {
		return ""
	}

	g := fmt.Sprintf("(time:(from:%s,to:now))", Rison(b.lookback))
	a := fmt.Sprintf("(index:%s)", Rison(pattern))
	if len(query) > 0 {
		filter := map[string]any{
			"meta":  map[string]any{"type": "custom", "disabled": false, "negate": false, "alias": "siem-mcp"},
			"query": query,
		}
		a = fmt.Sprintf("(filters:!(%s),index:%s)", Rison(filter), Rison(pattern))
	}

	return fmt.Sprintf("%s/%s?_g=%s&_a=%s", b.kibanaURL, RouteKibanaDiscover,
		url.QueryEscape(g), url.QueryEscape(a))
}

// SplunkSearch creates a Splunk Web search link for an SPL string.
func (b *Builder) SplunkSearch(spl string) string {
	if b == nil || b.splunkWebURL == "" {
		return ""
	}
	params := url.Values{}
	params.Set("q", spl)
	if !strings.Contains(spl, "earliest=") {
		params.Set("earliest", strings.TrimPrefix(b.lookback, "now"))
		params.Set("latest", "now")
	}
	return fmt.Sprintf("%s/%s?%s", b.splunkWebURL, RouteSplunkSearch, params.Encode())
}

// ToMeta converts a UI URL to MCP Meta format
func ToMeta(link string) mcp.Meta {
	if link == "" {
		return nil
	}
	return mcp.Meta{
		"reference_url": link,
	}
}
