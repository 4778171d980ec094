package servecmder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tokentap/pkg/config"
	"github.com/papercomputeco/tokentap/pkg/logger"
	"github.com/papercomputeco/tokentap/pkg/storage/inmemory"
	"github.com/papercomputeco/tokentap/pkg/storage/sqlite"
)

var _ = Describe("serve command", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("registers every serve flag from the registry", func() {
		cmd := NewServeCmd()
		for _, key := range serveFlags {
			Expect(cmd.Flags().Lookup(config.Flags[key].Name)).NotTo(BeNil(), key)
		}
	})

	Describe("load", func() {
		It("applies defaults when nothing is configured", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			c := &serveCommander{}
			Expect(c.load(v)).To(Succeed())
			Expect(c.listen).To(Equal("127.0.0.1:3000"))
			Expect(c.upstreamHost).To(Equal("127.0.0.1"))
			Expect(c.upstreamTimeout).To(Equal(10 * time.Minute))
			Expect(c.channelCapacity).To(Equal(32))
			Expect(c.readSize).To(Equal(32 * 1024))
			Expect(c.metrics).To(BeTrue())
			Expect(c.workers).To(Equal(uint(3)))
		})

		It("lets flags override the config file", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[proxy]
listen = ":4000"
upstream_host = "gpu-box"
`), 0o600)
			Expect(err).NotTo(HaveOccurred())

			cmd := NewServeCmd()
			Expect(cmd.ParseFlags([]string{"--listen", ":5000", "--channel-capacity", "4", "--metrics=false"})).To(Succeed())

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			c := &serveCommander{}
			Expect(c.load(v)).To(Succeed())
			Expect(c.listen).To(Equal(":5000"))
			Expect(c.upstreamHost).To(Equal("gpu-box"))
			Expect(c.channelCapacity).To(Equal(4))
			Expect(c.metrics).To(BeFalse())
		})

		It("rejects a malformed upstream timeout", func() {
			GinkgoT().Setenv("TOKENTAP_PROXY_UPSTREAM_TIMEOUT", "eventually")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			c := &serveCommander{}
			Expect(c.load(v)).To(MatchError(ContainSubstring("proxy.upstream_timeout")))
		})

		It("rejects a non-positive channel capacity", func() {
			GinkgoT().Setenv("TOKENTAP_PROXY_CHANNEL_CAPACITY", "0")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			c := &serveCommander{}
			Expect(c.load(v)).To(MatchError(ContainSubstring("channel_capacity")))
		})
	})

	Describe("newStorageDriver", func() {
		It("returns nil when no database is configured", func() {
			c := &serveCommander{logger: logger.Nop()}
			driver, err := c.newStorageDriver(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).To(BeNil())
		})

		It("opens SQLite when a path is configured", func() {
			c := &serveCommander{
				logger:     logger.Nop(),
				sqlitePath: filepath.Join(tmpDir, "metrics.db"),
			}
			driver, err := c.newStorageDriver(context.Background())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(driver.Close)
			Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		})
	})

	Describe("newAPIServer", func() {
		It("is disabled without an address", func() {
			c := &serveCommander{logger: logger.Nop()}
			Expect(c.newAPIServer(inmemory.NewDriver())).To(BeNil())
		})

		It("is disabled without storage", func() {
			c := &serveCommander{logger: logger.Nop(), apiListen: ":0"}
			Expect(c.newAPIServer(nil)).To(BeNil())
		})

		It("serves when both are configured", func() {
			c := &serveCommander{logger: logger.Nop(), apiListen: ":0"}
			Expect(c.newAPIServer(inmemory.NewDriver())).NotTo(BeNil())
		})
	})

	Describe("newPublisher", func() {
		It("returns nil without brokers", func() {
			c := &serveCommander{logger: logger.Nop(), kafkaBrokers: " , "}
			publisher, err := c.newPublisher()
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher).To(BeNil())
		})

		It("creates a kafka publisher when brokers are set", func() {
			c := &serveCommander{logger: logger.Nop(), kafkaBrokers: "localhost:9092", kafkaTopic: "t"}
			publisher, err := c.newPublisher()
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher).NotTo(BeNil())
			Expect(publisher.Close()).To(Succeed())
		})
	})

	Describe("newLogger", func() {
		It("honors the configured level", func() {
			l, err := newLogger(config.LogFormatJSON, "warn")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
			Expect(l.Enabled(context.Background(), slog.LevelWarn)).To(BeTrue())
		})

		It("supports the trace level", func() {
			l, err := newLogger(config.LogFormatText, "trace")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Enabled(context.Background(), logger.LevelTrace)).To(BeTrue())
		})

		It("rejects unknown formats and levels", func() {
			_, err := newLogger("xml", "info")
			Expect(err).To(MatchError(ContainSubstring("unknown log format")))

			_, err = newLogger(config.LogFormatText, "loud")
			Expect(err).To(MatchError(ContainSubstring("unknown log level")))
		})
	})
})
