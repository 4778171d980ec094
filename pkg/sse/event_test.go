package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseLine", func() {
	DescribeTable("classifies lines",
		func(raw string, kind LineKind, field, value string) {
			line := ParseLine(raw)
			Expect(line.Kind).To(Equal(kind))
			Expect(line.Field).To(Equal(field))
			Expect(line.Value).To(Equal(value))
		},
		Entry("blank", "", LineEmpty, "", ""),
		Entry("whitespace only", "  \r", LineEmpty, "", ""),
		Entry("comment", ": keep-alive", LineComment, "", " keep-alive"),
		Entry("data with space", "data: {\"a\":1}", LineData, "data", "{\"a\":1}"),
		Entry("data without space", "data:no-space", LineData, "data", "no-space"),
		Entry("empty data", "data:", LineData, "data", ""),
		Entry("done sentinel", "data: [DONE]", LineDone, "data", "[DONE]"),
		Entry("done sentinel with CR", "data: [DONE]\r", LineDone, "data", "[DONE]"),
		Entry("event field", "event: message_stop", LineOther, "event", "message_stop"),
		Entry("field with no colon", "data", LineOther, "data", ""),
	)
})

var _ = Describe("Lines", func() {
	It("splits a block into classified lines", func() {
		lines := Lines([]byte(": ping\nevent: delta\ndata: {}\n\n"))

		kinds := make([]LineKind, 0, len(lines))
		for _, l := range lines {
			kinds = append(kinds, l.Kind)
		}
		Expect(kinds).To(Equal([]LineKind{LineComment, LineOther, LineData, LineEmpty, LineEmpty}))
	})
})
