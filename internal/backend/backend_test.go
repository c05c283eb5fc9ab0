package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkontos/persona-engine/internal/backend"
)

func TestBackend(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backend Suite")
}

var _ = Describe("Canned", func() {
	It("should always be available", func() {
		b, err := backend.NewCanned("fallback", "")
		Expect(err).NotTo(HaveOccurred())

		ok, err := b.ProbeAvailable(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("should render the default reply with the message", func() {
		b, err := backend.NewCanned("fallback", "")
		Expect(err).NotTo(HaveOccurred())

		resp, err := b.Respond(context.Background(), backend.Request{Message: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(ContainSubstring("You said: hello"))
	})

	It("should render a custom template", func() {
		b, err := backend.NewCanned("fallback", "echo: {{.Message}} ({{.Key}})")
		Expect(err).NotTo(HaveOccurred())

		resp, err := b.Respond(context.Background(), backend.Request{Message: "hi", Key: "conv-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal("echo: hi (conv-1)"))
	})

	It("should reject a broken template", func() {
		_, err := backend.NewCanned("fallback", "{{.Message")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ToolServer", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("should probe /health", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))

		b, err := backend.NewToolServer("tools", server.URL)
		Expect(err).NotTo(HaveOccurred())

		ok, err := b.ProbeAvailable(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("should report unavailable on non-200 health", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		b, err := backend.NewToolServer("tools", server.URL)
		Expect(err).NotTo(HaveOccurred())

		ok, err := b.ProbeAvailable(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("should decode a successful respond payload", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/respond"))

			var req map[string]string
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["message"]).To(Equal("hello"))

			json.NewEncoder(w).Encode(map[string]any{
				"success":  true,
				"response": "hi there",
			})
		}))

		b, err := backend.NewToolServer("tools", server.URL)
		Expect(err).NotTo(HaveOccurred())

		resp, err := b.Respond(context.Background(), backend.Request{Key: "k", Message: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal("hi there"))
	})

	It("should surface a declared failure as an error", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "rate limit exceeded",
			})
		}))

		b, err := backend.NewToolServer("tools", server.URL)
		Expect(err).NotTo(HaveOccurred())

		_, err = b.Respond(context.Background(), backend.Request{Message: "hello"})
		Expect(err).To(MatchError(ContainSubstring("rate limit")))
	})

	It("should fail on non-200 respond status", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		b, err := backend.NewToolServer("tools", server.URL)
		Expect(err).NotTo(HaveOccurred())

		_, err = b.Respond(context.Background(), backend.Request{Message: "hello"})
		Expect(err).To(MatchError(ContainSubstring("status 502")))
	})
})

var _ = Describe("Registry", func() {
	It("should expose factories for every kind", func() {
		factories := backend.Factories()
		Expect(factories).To(HaveKey("toolserver"))
		Expect(factories).To(HaveKey("anthropic"))
		Expect(factories).To(HaveKey("openai"))
		Expect(factories).To(HaveKey("canned"))
	})

	It("should build backends in cascade order", func() {
		settings := []backend.Settings{
			{Name: "fallback", Kind: "canned"},
			{Name: "claude", Kind: "anthropic", APIKey: "test-key"},
		}

		backends, err := backend.Build(settings, []string{"claude", "fallback"})
		Expect(err).NotTo(HaveOccurred())
		Expect(backends).To(HaveLen(2))
		Expect(backends[0].Name()).To(Equal("claude"))
		Expect(backends[1].Name()).To(Equal("fallback"))
	})

	It("should reject an unknown kind", func() {
		_, err := backend.Build([]backend.Settings{{Name: "x", Kind: "smoke-signals"}}, []string{"x"})
		Expect(err).To(MatchError(ContainSubstring("unknown backend kind")))
	})

	It("should reject an order entry with no backend", func() {
		_, err := backend.Build([]backend.Settings{{Name: "fallback", Kind: "canned"}}, []string{"ghost"})
		Expect(err).To(MatchError(ContainSubstring("unknown backend")))
	})

	It("should report probe availability from key presence for paid APIs", func() {
		settings := []backend.Settings{
			{Name: "claude", Kind: "anthropic"},
			{Name: "gpt", Kind: "openai", APIKey: "k"},
		}

		backends, err := backend.Build(settings, []string{"claude", "gpt"})
		Expect(err).NotTo(HaveOccurred())

		ok, _ := backends[0].ProbeAvailable(context.Background())
		Expect(ok).To(BeFalse())

		ok, _ = backends[1].ProbeAvailable(context.Background())
		Expect(ok).To(BeTrue())
	})
})
