package classify_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkontos/persona-engine/internal/classify"
)

func TestClassify(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Classify Suite")
}

var _ = Describe("Classify", func() {
	DescribeTable("Message",
		func(msg string, expected classify.Kind) {
			Expect(classify.Message(msg)).To(Equal(expected))
		},
		Entry("timeout", "request timeout after 30s", classify.KindTransient),
		Entry("connection refused", "dial tcp: connection refused", classify.KindTransient),
		Entry("network unreachable", "network is unreachable", classify.KindTransient),
		Entry("socket closed", "socket closed unexpectedly", classify.KindTransient),
		Entry("dns failure", "dns lookup failed", classify.KindTransient),
		Entry("rate limited", "429: rate limit exceeded", classify.KindTransient),
		Entry("busy", "server busy, try again", classify.KindTransient),
		Entry("unavailable", "service unavailable", classify.KindTransient),
		Entry("overloaded", "model overloaded", classify.KindTransient),
		Entry("authentication", "authentication failed", classify.KindPermanent),
		Entry("unauthorized", "401 unauthorized", classify.KindPermanent),
		Entry("forbidden", "403 forbidden", classify.KindPermanent),
		Entry("api key", "missing api key", classify.KindPermanent),
		Entry("invalid request", "invalid request: empty prompt", classify.KindPermanent),
		Entry("not found", "model not found", classify.KindPermanent),
		Entry("bad request", "400 bad request", classify.KindPermanent),
		Entry("malformed", "malformed payload", classify.KindPermanent),
	)

	It("should be case insensitive", func() {
		Expect(classify.Message("Rate Limit Exceeded")).To(Equal(classify.KindTransient))
		Expect(classify.Message("UNAUTHORIZED")).To(Equal(classify.KindPermanent))
	})

	It("should default unrecognized errors to transient", func() {
		Expect(classify.Message("something odd happened")).To(Equal(classify.KindTransient))
		Expect(classify.Message("")).To(Equal(classify.KindTransient))
	})

	It("should prefer transient when both markers appear", func() {
		Expect(classify.Message("connection forbidden by upstream")).To(Equal(classify.KindTransient))
	})

	Describe("Error", func() {
		It("should classify wrapped errors by message", func() {
			Expect(classify.Error(errors.New("anthropic api error: 401 unauthorized"))).
				To(Equal(classify.KindPermanent))
		})

		It("should treat nil as transient", func() {
			Expect(classify.Error(nil)).To(Equal(classify.KindTransient))
		})
	})

	Describe("Kind.String", func() {
		It("should return stable names", func() {
			Expect(classify.KindTransient.String()).To(Equal("transient"))
			Expect(classify.KindPermanent.String()).To(Equal("permanent"))
			Expect(classify.KindBreakerOpen.String()).To(Equal("breaker_open"))
			Expect(classify.KindUnavailable.String()).To(Equal("unavailable"))
		})
	})
})
