package main

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkontos/persona-engine/config"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Suite")
}

var _ = Describe("initializeBackends", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = &config.Config{
			Cascade: config.CascadeConfig{
				Backends: []string{"primary", "fallback"},
			},
			Backends: []config.BackendConfig{
				{Name: "primary", Kind: config.KindToolServer, URL: "http://localhost:9000"},
				{Name: "fallback", Kind: config.KindCanned},
			},
		}
	})

	It("should build backends in cascade order", func() {
		backends, err := initializeBackends(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(backends).To(HaveLen(2))
		Expect(backends[0].Name()).To(Equal("primary"))
		Expect(backends[1].Name()).To(Equal("fallback"))
	})

	It("should honor a reordered cascade", func() {
		cfg.Cascade.Backends = []string{"fallback", "primary"}

		backends, err := initializeBackends(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(backends[0].Name()).To(Equal("fallback"))
	})

	It("should build API-backed kinds", func() {
		cfg.Backends = append(cfg.Backends,
			config.BackendConfig{Name: "claude", Kind: config.KindAnthropic, APIKey: "sk-test"},
			config.BackendConfig{Name: "gpt", Kind: config.KindOpenAI, APIKey: "sk-test"},
		)
		cfg.Cascade.Backends = []string{"claude", "gpt", "fallback"}

		backends, err := initializeBackends(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(backends).To(HaveLen(3))
	})

	It("should fail on an unknown kind", func() {
		cfg.Backends[0].Kind = "carrier-pigeon"

		backends, err := initializeBackends(cfg)
		Expect(err).To(HaveOccurred())
		Expect(backends).To(BeNil())
	})

	It("should fail when the order names a missing backend", func() {
		cfg.Cascade.Backends = []string{"primary", "ghost"}

		backends, err := initializeBackends(cfg)
		Expect(err).To(HaveOccurred())
		Expect(backends).To(BeNil())
	})

	It("should fail on an invalid toolserver URL", func() {
		cfg.Backends[0].URL = "://invalid"

		backends, err := initializeBackends(cfg)
		Expect(err).To(HaveOccurred())
		Expect(backends).To(BeNil())
	})
})

var _ = Describe("buildSchedule", func() {
	It("should parse the configured ladder", func() {
		schedule, err := buildSchedule([]string{"500ms", "1s", "2s"})
		Expect(err).NotTo(HaveOccurred())
		Expect(schedule).To(HaveLen(3))
		Expect(schedule[0]).To(Equal(500 * time.Millisecond))
		Expect(schedule[2]).To(Equal(2 * time.Second))
	})

	It("should fall back to the default ladder when empty", func() {
		schedule, err := buildSchedule(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(schedule).To(HaveLen(3))
		Expect(schedule[0]).To(Equal(time.Second))
	})

	It("should reject malformed entries", func() {
		_, err := buildSchedule([]string{"1s", "soon"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("parseDurations", func() {
	It("should parse every configured duration", func() {
		cfg := &config.Config{
			Cascade: config.CascadeConfig{
				ProbeTimeout:    "5s",
				RespondTimeout:  "30s",
				BreakerTimeout:  "60s",
				MaxResponseTime: "60s",
			},
			Session: config.SessionConfig{
				TTL:           "30m",
				SweepInterval: "5m",
			},
		}

		d, err := parseDurations(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.probeTimeout).To(Equal(5 * time.Second))
		Expect(d.respondTimeout).To(Equal(30 * time.Second))
		Expect(d.breakerTimeout).To(Equal(time.Minute))
		Expect(d.maxResponseTime).To(Equal(time.Minute))
		Expect(d.sessionTTL).To(Equal(30 * time.Minute))
		Expect(d.sweepInterval).To(Equal(5 * time.Minute))
	})

	It("should name the field that failed to parse", func() {
		cfg := &config.Config{
			Cascade: config.CascadeConfig{
				ProbeTimeout:    "5s",
				RespondTimeout:  "whenever",
				BreakerTimeout:  "60s",
				MaxResponseTime: "60s",
			},
			Session: config.SessionConfig{TTL: "30m", SweepInterval: "5m"},
		}

		_, err := parseDurations(cfg)
		Expect(err).To(MatchError(ContainSubstring("respond_timeout")))
	})
})
