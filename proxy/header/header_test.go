package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
		got http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
		got = nil

		app.Post("/test", func(c *fiber.Ctx) error {
			req, _ := http.NewRequest(http.MethodPost, "http://upstream/test", nil)
			hh.SetUpstreamRequestHeaders(c, req)
			got = req.Header
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		app.Shutdown()
	})

	send := func(req *http.Request) {
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
	}

	It("forwards standard headers to the upstream request", func() {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer token123")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", "secret")
		send(req)

		Expect(got.Get("Authorization")).To(Equal("Bearer token123"))
		Expect(got.Get("Content-Type")).To(Equal("application/json"))
		Expect(got.Get("X-Api-Key")).To(Equal("secret"))
	})

	It("strips the Host header", func() {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Host = "client.example.com"
		send(req)

		Expect(got.Get("Host")).To(BeEmpty())
	})

	It("forwards Accept-Encoding untouched", func() {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
		send(req)

		Expect(got.Get("Accept-Encoding")).To(Equal("gzip, deflate, br"))
	})

	It("keeps every value of a repeated header", func() {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Add("X-Trace", "one")
		req.Header.Add("X-Trace", "two")
		send(req)

		Expect(got.Values("X-Trace")).To(ConsistOf("one", "two"))
	})
})

var _ = Describe("SetClientResponseHeaders", func() {
	var (
		app      *fiber.App
		hh       *Handler
		upstream http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()

		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetClientResponseHeaders(c, &http.Response{Header: upstream})
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		app.Shutdown()
	})

	fetch := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp
	}

	It("forwards standard upstream response headers to the client", func() {
		upstream = http.Header{
			"Content-Type":   {"application/x-ndjson"},
			"X-Request-Id":   {"abc-123"},
			"X-Custom-Value": {"hello"},
		}
		resp := fetch()

		Expect(resp.Header.Get("Content-Type")).To(Equal("application/x-ndjson"))
		Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
		Expect(resp.Header.Get("X-Custom-Value")).To(Equal("hello"))
	})

	It("strips the Transfer-Encoding header", func() {
		upstream = http.Header{"Transfer-Encoding": {"chunked"}}
		resp := fetch()

		Expect(resp.TransferEncoding).To(BeEmpty())
	})

	It("forwards Content-Encoding with the untouched body", func() {
		upstream = http.Header{"Content-Encoding": {"gzip"}}
		resp := fetch()

		Expect(resp.Header.Get("Content-Encoding")).To(Equal("gzip"))
	})

	It("does not carry the upstream Content-Length", func() {
		upstream = http.Header{
			"Content-Length": {"1234"},
			"X-Request-Id":   {"abc-123"},
		}
		resp := fetch()

		Expect(resp.Header.Get("Content-Length")).NotTo(Equal("1234"))
		Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
	})

	It("keeps every value of a repeated header", func() {
		upstream = http.Header{"X-Multi": {"value1", "value2"}}
		resp := fetch()

		Expect(resp.Header.Values("X-Multi")).To(ConsistOf("value1", "value2"))
	})
})
