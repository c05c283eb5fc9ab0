package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ToolServer talks to a remote tool-use server over plain JSON/HTTP:
// GET /health for the availability probe, POST /respond for generation.
type ToolServer struct {
	name    string
	baseURL *url.URL
	client  *http.Client
}

type toolServerRequest struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
	Message   string `json:"message"`
	System    string `json:"system,omitempty"`
}

type toolServerResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewToolServer(name, rawURL string) (*ToolServer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("toolserver %q: invalid url: %w", name, err)
	}

	return &ToolServer{
		name:    name,
		baseURL: u,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (t *ToolServer) Name() string { return t.name }

// ProbeAvailable sends GET /health; anything but 200 counts as unavailable.
// The caller bounds the probe with a context timeout.
func (t *ToolServer) ProbeAvailable(ctx context.Context) (bool, error) {
	healthURL := t.baseURL.ResolveReference(&url.URL{Path: "/health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (t *ToolServer) Respond(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(toolServerRequest{
		RequestID: req.RequestID,
		Key:       req.Key,
		Message:   req.Message,
		System:    req.SystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	respondURL := t.baseURL.ResolveReference(&url.URL{Path: "/respond"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, respondURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("toolserver request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("toolserver returned status %d", res.StatusCode)
	}

	var payload toolServerResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("toolserver sent malformed response: %w", err)
	}

	if !payload.Success {
		if payload.Error == "" {
			return nil, errors.New("toolserver reported failure without detail")
		}
		return nil, errors.New(payload.Error)
	}

	return &Response{Text: payload.Response}, nil
}
