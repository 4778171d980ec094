package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/tokentap/pkg/eventstream"
	"github.com/papercomputeco/tokentap/pkg/llm"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, "tokentap.metrics")
	})

	event := func() *eventstream.MetricsRecordedEvent {
		return eventstream.NewMetricsRecordedEvent(&llm.Metrics{
			RequestID:    "req-1",
			Backend:      "ollama",
			Model:        "llama3",
			PromptTokens: llm.Uint64(5),
			Outcome:      llm.OutcomeCompleted,
		}, time.Unix(1735689600, 0))
	}

	It("writes one JSON message keyed by model", func() {
		ev := event()
		Expect(p.PublishMetrics(context.Background(), ev)).To(Succeed())

		Expect(w.messages).To(HaveLen(1))
		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("llama3"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeMetricsRecorded)}))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_id", Value: []byte(ev.EventID)}))

		var decoded eventstream.MetricsRecordedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(ev.EventID))
		Expect(decoded.Metrics.PromptTokens).To(Equal(llm.Uint64(5)))
		Expect(decoded.Metrics.CompletionTokens).To(BeNil())
	})

	It("rejects nil events", func() {
		Expect(p.PublishMetrics(context.Background(), nil)).To(MatchError(eventstream.ErrNilMetricsEvent))
		Expect(w.messages).To(BeEmpty())
	})

	It("wraps writer failures", func() {
		boom := errors.New("broker unavailable")
		w.err = boom

		err := p.PublishMetrics(context.Background(), event())
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("tokentap.metrics"))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})

	Describe("NewPublisher", func() {
		It("requires brokers", func() {
			_, err := NewPublisher(Config{Topic: "t"})
			Expect(err).To(HaveOccurred())
		})

		It("defaults the topic", func() {
			pub, err := NewPublisher(Config{Brokers: []string{"127.0.0.1:9092"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(pub.topic).To(Equal(DefaultTopic))
			Expect(pub.Close()).To(Succeed())
		})
	})
})
