// Package storagetest holds the behavior every storage.Driver must share,
// expressed as ginkgo specs each driver package runs against itself.
package storagetest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
)

// Record builds a metrics record captured at the given offset from a fixed
// base time.
func Record(id, backend, model string, offset time.Duration, prompt, completion *uint64) *llm.Metrics {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &llm.Metrics{
		RequestID:        id,
		Path:             "/proxy/11434/api/chat",
		Backend:          backend,
		Model:            model,
		Prompt:           "user: hello",
		PromptTokens:     prompt,
		CompletionTokens: completion,
		LatencyMs:        120,
		StatusCode:       200,
		Outcome:          llm.OutcomeCompleted,
		BytesStreamed:    2048,
		Timestamp:        base.Add(offset),
	}
}

// DriverBehavior registers the shared driver specs. newDriver is called
// before each spec and must return an empty store.
func DriverBehavior(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("round trips a record", func() {
			rec := Record("a", "ollama", "llama3", 0, llm.Uint64(26), llm.Uint64(42))

			inserted, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Model).To(Equal("llama3"))
			Expect(got.Prompt).To(Equal("user: hello"))
			Expect(got.PromptTokens).To(Equal(llm.Uint64(26)))
			Expect(got.CompletionTokens).To(Equal(llm.Uint64(42)))
			Expect(got.Outcome).To(Equal(llm.OutcomeCompleted))
			Expect(got.BytesStreamed).To(Equal(int64(2048)))
			Expect(got.Timestamp.Equal(rec.Timestamp)).To(BeTrue())
		})

		It("keeps absent counts absent", func() {
			_, err := driver.Put(ctx, Record("b", "unknown", "m", 0, nil, llm.Uint64(0)))
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PromptTokens).To(BeNil())
			Expect(got.CompletionTokens).To(Equal(llm.Uint64(0)))
		})

		It("ignores a duplicate request ID", func() {
			_, err := driver.Put(ctx, Record("dup", "openai", "first", 0, nil, nil))
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.Put(ctx, Record("dup", "openai", "second", 0, nil, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			got, err := driver.Get(ctx, "dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Model).To(Equal("first"))
		})

		It("rejects a nil record", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilRecord))
		})

		It("returns NotFoundError for a missing ID", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{RequestID: "missing"}))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i, model := range []string{"llama3", "gpt-4o", "llama3", "llama3"} {
				b := "ollama"
				if model == "gpt-4o" {
					b = "openai"
				}
				rec := Record(fmt.Sprintf("r%d", i), b, model, time.Duration(i)*time.Second, nil, nil)
				_, err := driver.Put(ctx, rec)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		ids := func(records []*llm.Metrics) []string {
			out := make([]string, 0, len(records))
			for _, r := range records {
				out = append(out, r.RequestID)
			}
			return out
		}

		It("returns everything newest first", func() {
			got, err := driver.List(ctx, storage.Query{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(got)).To(Equal([]string{"r3", "r2", "r1", "r0"}))
		})

		It("filters by model and backend", func() {
			got, err := driver.List(ctx, storage.Query{Model: "llama3"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(got)).To(Equal([]string{"r3", "r2", "r0"}))

			got, err = driver.List(ctx, storage.Query{Backend: "openai"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(got)).To(Equal([]string{"r1"}))
		})

		It("pages with limit and offset", func() {
			got, err := driver.List(ctx, storage.Query{Limit: 2, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(got)).To(Equal([]string{"r2", "r1"}))

			got, err = driver.List(ctx, storage.Query{Offset: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(got)).To(Equal([]string{"r0"}))
		})
	})

	Describe("Totals", func() {
		It("sums reported counts per backend and model", func() {
			for _, rec := range []*llm.Metrics{
				Record("t1", "ollama", "llama3", 0, llm.Uint64(10), llm.Uint64(20)),
				Record("t2", "ollama", "llama3", time.Second, nil, llm.Uint64(5)),
				Record("t3", "openai", "gpt-4o", 2*time.Second, llm.Uint64(12), llm.Uint64(7)),
			} {
				_, err := driver.Put(ctx, rec)
				Expect(err).NotTo(HaveOccurred())
			}

			totals, err := driver.Totals(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(Equal([]storage.Totals{
				{Backend: "ollama", Model: "llama3", Requests: 2, PromptTokens: 10, CompletionTokens: 25},
				{Backend: "openai", Model: "gpt-4o", Requests: 1, PromptTokens: 12, CompletionTokens: 7},
			}))
		})

		It("is empty for an empty store", func() {
			totals, err := driver.Totals(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(BeEmpty())
		})
	})
}
