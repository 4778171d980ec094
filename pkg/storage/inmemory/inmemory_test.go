package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
	"github.com/papercomputeco/tokentap/pkg/storage/inmemory"
	"github.com/papercomputeco/tokentap/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverBehavior(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("does not alias stored records", func() {
		d := inmemory.NewDriver()
		rec := storagetest.Record("x", "ollama", "llama3", 0, llm.Uint64(1), nil)

		_, err := d.Put(context.Background(), rec)
		Expect(err).NotTo(HaveOccurred())
		rec.Model = "mutated"

		got, err := d.Get(context.Background(), "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Model).To(Equal("llama3"))
	})
})
