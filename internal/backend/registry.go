package backend

import "fmt"

// Settings carries the per-backend configuration needed by the factories.
type Settings struct {
	Name   string
	Kind   string
	URL    string
	APIKey string
	Model  string
	Reply  string
}

// Factory builds a backend from its settings.
type Factory func(s Settings) (Backend, error)

// Factories returns the explicit kind-to-constructor map. Backends are wired
// here, at startup, rather than registering themselves from init functions.
func Factories() map[string]Factory {
	return map[string]Factory{
		"toolserver": func(s Settings) (Backend, error) {
			return NewToolServer(s.Name, s.URL)
		},
		"anthropic": func(s Settings) (Backend, error) {
			return NewAnthropic(s.Name, s.APIKey, s.Model), nil
		},
		"openai": func(s Settings) (Backend, error) {
			return NewOpenAI(s.Name, s.APIKey, s.Model), nil
		},
		"canned": func(s Settings) (Backend, error) {
			return NewCanned(s.Name, s.Reply)
		},
	}
}

// Build constructs the configured backends and returns them in the cascade's
// attempt order. Every name in order must match a configured backend.
func Build(settings []Settings, order []string) ([]Backend, error) {
	factories := Factories()

	byName := make(map[string]Backend, len(settings))
	for _, s := range settings {
		factory, ok := factories[s.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown backend kind %q for %q", s.Kind, s.Name)
		}

		b, err := factory(s)
		if err != nil {
			return nil, err
		}
		byName[s.Name] = b
	}

	ordered := make([]Backend, 0, len(order))
	for _, name := range order {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("cascade order references unknown backend %q", name)
		}
		ordered = append(ordered, b)
	}

	return ordered, nil
}
