package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Roles rendered by the pipeline
const (
	RoleIntent    = "intent"
	RoleElkIndex  = "elk_index"
	RoleElkQuery  = "elk_query"
	RoleSplSource = "spl_source"
	RoleSplQuery  = "spl_query"
	RoleSummary   = "summary"
)

//go:embed templates.yaml
var templatesYAML []byte

// Argument documents one template input.
type Argument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Version is one revision of a role's prompt.
type Version struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Role groups the revisions of one prompt.
type Role struct {
	Description string             `yaml:"description"`
	Active      string             `yaml:"active"`
	Arguments   []Argument         `yaml:"arguments"`
	Versions    map[string]Version `yaml:"versions"`
}

type file struct {
	Roles map[string]Role `yaml:"roles"`
}

// Rendered is a prompt ready to send to a model.
type Rendered struct {
	System string
	User   string
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

// Library holds parsed templates. It is safe for concurrent use.
type Library struct {
	roles    map[string]Role
	compiled map[string]compiled
}

var funcs = template.FuncMap{
	"list": listValue,
	"json": jsonValue,
}

// Load parses the embedded templates.
func Load() (*Library, error) {
	return Parse(templatesYAML)
}

// Parse reads a templates document and compiles every active version.
func Parse(data []byte) (*Library, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("prompt templates define no roles")
	}

	lib := &Library{roles: f.Roles, compiled: make(map[string]compiled, len(f.Roles))}
	for name, role := range f.Roles {
		v, ok := role.Versions[role.Active]
		if !ok {
			return nil, fmt.Errorf("role %s: active version %q not defined", name, role.Active)
		}
		sys, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=error").Parse(v.System)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", name, err)
		}
		usr, err := template.New(name + ".user").Funcs(funcs).Option("missingkey=error").Parse(v.User)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", name, err)
		}
		lib.compiled[name] = compiled{system: sys, user: usr}
	}
	return lib, nil
}

// Render executes the active version of role with data.
func (l *Library) Render(role string, data map[string]any) (Rendered, error) {
	c, ok := l.compiled[role]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown prompt role %q", role)
	}

	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s system prompt: %w", role, err)
	}
	if err := c.user.Execute(&usr, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s user prompt: %w", role, err)
	}
	return Rendered{System: strings.TrimSpace(sys.String()), User: strings.TrimSpace(usr.String())}, nil
}

// Roles returns the role names in sorted order.
func (l *Library) Roles() []string {
	names := make([]string, 0, len(l.roles))
	for name := range l.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Role returns the definition of a role.
func (l *Library) Role(name string) (Role, bool) {
	r, ok := l.roles[name]
	return r, ok
}

func listValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// jsonValue passes strings through so callers can hand in raw JSON text.
func jsonValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
