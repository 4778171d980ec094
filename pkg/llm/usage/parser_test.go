package usage_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/llm/backend"
	"github.com/papercomputeco/tokentap/pkg/llm/usage"
	"github.com/papercomputeco/tokentap/pkg/logger"
)

const ollamaStream = `{"model":"llama3","response":"Hel","done":false}
{"model":"llama3","response":"lo","done":false}
{"model":"llama3","response":"","done":true,"prompt_eval_count":26,"eval_count":42}
`

const openaiStream = "data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
	": keep-alive\n\n" +
	"data: {\"id\":\"1\",\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":7,\"total_tokens\":19}}\n\n" +
	"data: [DONE]\n\n"

// feedAll runs body through a fresh parser split into chunks of size n.
func feedAll(b backend.Type, body string, n int) llm.TokenUsage {
	p := usage.New(b, logger.Nop())
	data := []byte(body)
	for len(data) > 0 {
		end := min(n, len(data))
		p.Feed(data[:end])
		data = data[end:]
	}
	return p.Finalize()
}

var _ = Describe("Parser", func() {
	Describe("Ollama", func() {
		It("reads counts from the done line", func() {
			u := feedAll(backend.Ollama, ollamaStream, len(ollamaStream))

			Expect(u.PromptTokens).To(Equal(llm.Uint64(26)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(42)))
		})

		It("leaves prompt tokens absent when only eval_count is reported", func() {
			p := usage.New(backend.Ollama, logger.Nop())
			p.Feed([]byte(`{"done":false}` + "\n" + `{"done":true,"eval_count":42}` + "\n"))
			u := p.Finalize()

			Expect(u.PromptTokens).To(BeNil())
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(42)))
		})

		It("ignores counts on lines that are not done", func() {
			u := feedAll(backend.Ollama, `{"done":false,"prompt_eval_count":3,"eval_count":4}`+"\n", 64)

			Expect(u.Empty()).To(BeTrue())
		})

		It("does not clear an observed count when a later done line omits it", func() {
			body := `{"done":true,"prompt_eval_count":5,"eval_count":6}` + "\n" + `{"done":true,"eval_count":9}` + "\n"
			u := feedAll(backend.Ollama, body, 1024)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(5)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(9)))
		})

		It("skips malformed and blank lines", func() {
			body := "not json\n\n   \n" + `{"done":true,"prompt_eval_count":1,"eval_count":2}` + "\n{broken\n"
			u := feedAll(backend.Ollama, body, 7)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(1)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(2)))
		})

		It("matches field names exactly", func() {
			u := feedAll(backend.Ollama, `{"DONE":true,"Eval_Count":9,"Prompt_Eval_Count":3}`+"\n", 64)
			Expect(u.Empty()).To(BeTrue())

			u = feedAll(backend.Ollama, `{"done":true,"Eval_Count":9,"prompt_eval_count":3}`+"\n", 64)
			Expect(u.PromptTokens).To(Equal(llm.Uint64(3)))
			Expect(u.CompletionTokens).To(BeNil())
		})

		DescribeTable("discards lines whose fields have the wrong type",
			func(line string) {
				Expect(feedAll(backend.Ollama, line+"\n", 64).Empty()).To(BeTrue())
			},
			Entry("string done", `{"done":"true","eval_count":9}`),
			Entry("string count", `{"done":true,"eval_count":"9"}`),
			Entry("negative count", `{"done":true,"eval_count":-1}`),
			Entry("fractional count", `{"done":true,"eval_count":9.5}`),
			Entry("array line", `[{"done":true,"eval_count":9}]`),
		)

		It("decodes an unterminated trailing line at finalize", func() {
			p := usage.New(backend.Ollama, logger.Nop())
			p.Feed([]byte(`{"done":true,"prompt_eval_count":8,`))
			p.Feed([]byte(`"eval_count":13}`))

			u := p.Finalize()
			Expect(u.PromptTokens).To(Equal(llm.Uint64(8)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(13)))
		})

		It("tolerates CRLF line endings", func() {
			body := bytes.ReplaceAll([]byte(ollamaStream), []byte("\n"), []byte("\r\n"))
			u := feedAll(backend.Ollama, string(body), 5)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(26)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(42)))
		})
	})

	Describe("OpenAI", func() {
		It("reads the usage event", func() {
			u := feedAll(backend.OpenAI, openaiStream, len(openaiStream))

			Expect(u.PromptTokens).To(Equal(llm.Uint64(12)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(7)))
		})

		It("lets a later usage event replace an earlier one", func() {
			body := "data: {\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":2}}\n\n" +
				"data: {\"usage\":{\"prompt_tokens\":30,\"completion_tokens\":40}}\n\n"
			u := feedAll(backend.OpenAI, body, 9)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(30)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(40)))
		})

		It("reports nothing for a stream with only [DONE] and comments", func() {
			u := feedAll(backend.OpenAI, ": ping\n\ndata: [DONE]\n\n", 3)

			Expect(u.Empty()).To(BeTrue())
		})

		It("discards a usage object missing one of its counts", func() {
			u := feedAll(backend.OpenAI, "data: {\"usage\":{\"prompt_tokens\":4}}\n\n", 64)

			Expect(u.Empty()).To(BeTrue())
		})

		It("matches usage field names exactly", func() {
			u := feedAll(backend.OpenAI, "data: {\"Usage\":{\"prompt_tokens\":4,\"completion_tokens\":5}}\n\n", 64)
			Expect(u.Empty()).To(BeTrue())

			u = feedAll(backend.OpenAI, "data: {\"usage\":{\"Prompt_Tokens\":4,\"completion_tokens\":5}}\n\n", 64)
			Expect(u.Empty()).To(BeTrue())
		})

		It("ignores null usage on delta events", func() {
			body := "data: {\"choices\":[],\"usage\":null}\n\n" + openaiStream
			u := feedAll(backend.OpenAI, body, 11)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(12)))
		})

		It("frames CRLF delimited events", func() {
			body := "data: {\"usage\":{\"prompt_tokens\":2,\"completion_tokens\":3}}\r\n\r\ndata: [DONE]\r\n\r\n"
			u := feedAll(backend.OpenAI, body, 4)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(2)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(3)))
		})

		It("recovers a final event that lost its blank line", func() {
			u := feedAll(backend.OpenAI, "data: {\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":6}}\n", 64)

			Expect(u.PromptTokens).To(Equal(llm.Uint64(5)))
			Expect(u.CompletionTokens).To(Equal(llm.Uint64(6)))
		})
	})

	Describe("Passthrough", func() {
		It("reports nothing for any input", func() {
			Expect(feedAll(backend.Unknown, openaiStream+ollamaStream, 13).Empty()).To(BeTrue())
		})

		It("reports nothing when fed zero chunks", func() {
			p := usage.New(backend.Unknown, logger.Nop())
			Expect(p.Finalize().Empty()).To(BeTrue())
		})
	})

	DescribeTable("chunking does not change the result",
		func(b backend.Type, body string) {
			whole := feedAll(b, body, len(body))

			for _, n := range []int{1, 2, 3, 7, 16, 64} {
				Expect(feedAll(b, body, n)).To(Equal(whole), "chunk size %d", n)
			}
		},
		Entry("ollama", backend.Ollama, ollamaStream),
		Entry("openai", backend.OpenAI, openaiStream),
		Entry("unknown", backend.Unknown, openaiStream),
	)

	Describe("Finalize", func() {
		It("returns the same usage when called twice", func() {
			p := usage.New(backend.Ollama, logger.Nop())
			p.Feed([]byte(ollamaStream))

			first := p.Finalize()
			Expect(p.Finalize()).To(Equal(first))
		})

		It("ignores input fed after finalize", func() {
			p := usage.New(backend.OpenAI, logger.Nop())
			Expect(p.Finalize().Empty()).To(BeTrue())

			p.Feed([]byte(openaiStream))
			Expect(p.Finalize().Empty()).To(BeTrue())
		})
	})

	It("reports its backend", func() {
		Expect(usage.New(backend.OpenAI, logger.Nop()).Backend()).To(Equal(backend.OpenAI))
	})
})
