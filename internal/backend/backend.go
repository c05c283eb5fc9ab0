package backend

import "context"

// Request is the payload handed to a backend: the session key the cascade is
// serialized under, the user message, and the persona-rendered system prompt.
type Request struct {
	RequestID    string
	Key          string
	Message      string
	SystemPrompt string
}

// Response is a successful backend reply.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// Backend is an interchangeable response-generating service. Implementations
// are stateless descriptors; all failure bookkeeping lives in the cascade.
//
// ProbeAvailable answers cheaply whether the backend is worth attempting.
// Respond generates a reply or returns an error; the cascade classifies the
// error text to decide between retrying and moving on.
type Backend interface {
	Name() string
	ProbeAvailable(ctx context.Context) (bool, error)
	Respond(ctx context.Context, req Request) (*Response, error)
}
