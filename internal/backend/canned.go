package backend

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// DefaultCannedReply is used when no reply template is configured. It keeps
// the cascade's terminal fallback deterministic and always successful.
const DefaultCannedReply = "I'm sorry, I can't reach my usual brain right now. " +
	"You said: {{.Message}}"

// Canned is a hardcoded text generator. It is always available and never
// fails, which makes it the natural last entry in a cascade.
type Canned struct {
	name string
	tmpl *template.Template
}

func NewCanned(name, reply string) (*Canned, error) {
	if reply == "" {
		reply = DefaultCannedReply
	}

	tmpl, err := template.New(name).Parse(reply)
	if err != nil {
		return nil, fmt.Errorf("canned backend %q: bad reply template: %w", name, err)
	}

	return &Canned{name: name, tmpl: tmpl}, nil
}

func (c *Canned) Name() string { return c.name }

func (c *Canned) ProbeAvailable(_ context.Context) (bool, error) {
	return true, nil
}

func (c *Canned) Respond(_ context.Context, req Request) (*Response, error) {
	var buf bytes.Buffer
	err := c.tmpl.Execute(&buf, map[string]string{
		"Message": req.Message,
		"Key":     req.Key,
	})
	if err != nil {
		return nil, err
	}

	return &Response{Text: buf.String()}, nil
}
