package deeplink

import (
	"net/url"
	"strings"
	"testing"
)

func TestRison(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "!n"},
		{"bools", []any{true, false}, "!(!t,!f)"},
		{"number", 42, "42"},
		{"id string", "windows-*", "'windows-*'"},
		{"plain id", "process.name", "process.name"},
		{"quoted", "it's here!", "'it!'s here!!'"},
		{"empty string", "", "''"},
		{"leading digit", "4625", "'4625'"},
		{"object keys sorted", map[string]any{"b": 1, "a": "x y"}, "(a:'x y',b:1)"},
		{"nested", map[string]any{"term": map[string]any{"user.name": "bob"}}, "(term:(user.name:bob))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rison(tt.in); got != tt.want {
				t.Errorf("Rison(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiscoverLink(t *testing.T) {
	b := NewBuilder("https://kibana.local/", "")

	link := b.Discover("windows-*", map[string]any{"match": map[string]any{"process.name": "powershell"}})
	if !strings.HasPrefix(link, "https://kibana.local/app/discover#/?") {
		t.Fatalf("unexpected link prefix: %s", link)
	}

	u, err := url.Parse(strings.Replace(link, "#/", "", 1))
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	a := u.Query().Get("_a")
	if !strings.Contains(a, "index:'windows-*'") {
		t.Errorf("_a missing index: %s", a)
	}
	if !strings.Contains(a, "query:(match:(process.name:powershell))") {
		t.Errorf("_a missing query filter: %s", a)
	}
	if g := u.Query().Get("_g"); g != "(time:(from:now-7d,to:now))" {
		t.Errorf("_g = %s", g)
	}
}

func TestSplunkSearchLink(t *testing.T) {
	b := NewBuilder("", "https://splunk.local:8000")

	link := b.SplunkSearch(`search index=main user="bob"`)
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Path != "/en-US/app/search/search" {
		t.Errorf("path = %s", u.Path)
	}
	if u.Query().Get("q") != `search index=main user="bob"` {
		t.Errorf("q = %s", u.Query().Get("q"))
	}
	if u.Query().Get("earliest") != "-7d" {
		t.Errorf("earliest = %s", u.Query().Get("earliest"))
	}

	withWindow := b.SplunkSearch("search index=main earliest=-1h")
	if strings.Contains(withWindow, "latest=now") {
		t.Errorf("explicit window should not be overridden: %s", withWindow)
	}
}

func TestDisabledLinks(t *testing.T) {
	b := NewBuilder("", "")
	if b.Discover("x-*", nil) != "" || b.SplunkSearch("search x") != "" {
		t.Error("expected empty links when base URLs are unset")
	}
	var nilBuilder *Builder
	if nilBuilder.Discover("x-*", nil) != "" {
		t.Error("nil builder should produce no link")
	}
	if ToMeta("") != nil {
		t.Error("expected nil meta for empty link")
	}
	if ToMeta("https://x")["reference_url"] != "https://x" {
		t.Error("meta missing reference_url")
	}
}
