package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

var _ = Describe("ParseRequestData", func() {
	It("extracts model and prompt from a generate request", func() {
		raw := []byte(`{"model":"llama3","prompt":"Why is the sky blue?","stream":true}`)
		data := llm.ParseRequestData(raw)

		Expect(data.Model).To(Equal("llama3"))
		Expect(data.Prompt).To(Equal("Why is the sky blue?"))
		Expect(data.Raw).To(Equal(raw))
	})

	It("flattens chat messages into role-prefixed lines", func() {
		raw := []byte(`{"model":"gpt-4o","messages":[{"role":"system","content":"Be brief."},{"role":"user","content":"Hi"}]}`)
		data := llm.ParseRequestData(raw)

		Expect(data.Model).To(Equal("gpt-4o"))
		Expect(data.Prompt).To(Equal("system: Be brief.\nuser: Hi"))
	})

	It("keeps only text parts of multi-part content", func() {
		raw := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":[{"type":"text","text":"describe"},{"type":"image_url","image_url":{"url":"x"}}]}]}`)
		data := llm.ParseRequestData(raw)

		Expect(data.Prompt).To(Equal("user: describe"))
	})

	It("prefers prompt over messages", func() {
		raw := []byte(`{"model":"m","prompt":"p","messages":[{"role":"user","content":"c"}]}`)
		Expect(llm.ParseRequestData(raw).Prompt).To(Equal("p"))
	})

	It("defaults model and prompt when both are missing", func() {
		data := llm.ParseRequestData([]byte(`{"stream":false}`))

		Expect(data.Model).To(Equal("unknown"))
		Expect(data.Prompt).To(Equal("no prompt found"))
	})

	It("marks non-JSON bodies as unparseable", func() {
		data := llm.ParseRequestData([]byte("not json"))

		Expect(data.Model).To(Equal("unknown"))
		Expect(data.Prompt).To(Equal("unparseable"))
	})

	It("marks empty bodies as unparseable", func() {
		data := llm.ParseRequestData(nil)

		Expect(data.Model).To(Equal("unknown"))
		Expect(data.Prompt).To(Equal("unparseable"))
	})
})

var _ = Describe("TokenUsage", func() {
	It("starts empty", func() {
		var u llm.TokenUsage
		Expect(u.Empty()).To(BeTrue())

		_, ok := u.Total()
		Expect(ok).To(BeFalse())
	})

	It("sums whichever counts were observed", func() {
		var u llm.TokenUsage
		u.SetCompletionTokens(42)

		total, ok := u.Total()
		Expect(ok).To(BeTrue())
		Expect(total).To(Equal(uint64(42)))

		u.SetPromptTokens(8)
		total, _ = u.Total()
		Expect(total).To(Equal(uint64(50)))
	})
})
