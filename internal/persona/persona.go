package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

// Persona is one character definition loaded from a JSON file: a system
// prompt template plus the regex patterns that route messages to it.
type Persona struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	System      string   `json:"system"`
	Patterns    []string `json:"patterns,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	Default     bool     `json:"default,omitempty"`

	compiled []*regexp.Regexp
	tmpl     *template.Template
}

// Store holds all loaded personas, ordered by descending priority for
// matching.
type Store struct {
	personas []*Persona
	fallback *Persona
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	},
}

// Load reads every *.json file in dir as a persona definition, compiling its
// patterns and system template up front so matching and rendering cannot fail
// at request time.
func Load(dir string) (*Store, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no persona files found in %s", dir)
	}
	sort.Strings(paths)

	store := &Store{}
	for _, path := range paths {
		p, err := loadFile(path)
		if err != nil {
			return nil, err
		}

		store.personas = append(store.personas, p)
		if p.Default {
			if store.fallback != nil {
				return nil, fmt.Errorf("multiple default personas: %q and %q",
					store.fallback.Name, p.Name)
			}
			store.fallback = p
		}
	}

	if store.fallback == nil {
		return nil, fmt.Errorf("no default persona configured in %s", dir)
	}

	sort.SliceStable(store.personas, func(i, j int) bool {
		return store.personas[i].Priority > store.personas[j].Priority
	})

	return store, nil
}

func loadFile(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona file %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("persona file %s: missing name", path)
	}

	for _, pattern := range p.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("persona %q: bad pattern %q: %w", p.Name, pattern, err)
		}
		p.compiled = append(p.compiled, re)
	}

	tmpl, err := template.New(p.Name).Funcs(templateFuncs).Parse(p.System)
	if err != nil {
		return nil, fmt.Errorf("persona %q: bad system template: %w", p.Name, err)
	}
	p.tmpl = tmpl

	return &p, nil
}

// Match returns the highest-priority persona whose pattern matches the
// message, or the default persona when nothing matches.
func (s *Store) Match(message string) *Persona {
	for _, p := range s.personas {
		for _, re := range p.compiled {
			if re.MatchString(message) {
				return p
			}
		}
	}
	return s.fallback
}

// Names lists the loaded personas in matching order.
func (s *Store) Names() []string {
	names := make([]string, len(s.personas))
	for i, p := range s.personas {
		names[i] = p.Name
	}
	return names
}

// RenderSystem produces the system prompt for a message.
func (p *Persona) RenderSystem(message, key string) (string, error) {
	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, map[string]string{
		"Persona": p.Name,
		"Message": message,
		"Key":     key,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
