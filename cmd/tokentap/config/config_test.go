package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/tokentap/cmd/tokentap/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	// run executes the config command beneath a root carrying --config-dir,
	// the way the tokentap binary wires it.
	run := func(args ...string) error {
		root := &cobra.Command{Use: "tokentap", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"--config-dir", tmpDir, "config"}, args...))
		return root.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("set subcommand", func() {
		It("writes the value to config.toml", func() {
			Expect(run("set", "proxy.upstream_host", "gpu-box")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`upstream_host = "gpu-box"`))
			Expect(out.String()).To(ContainSubstring("proxy.upstream_host"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "proxy.provider", "ollama")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects invalid values", func() {
			Expect(run("set", "worker.count", "lots")).To(HaveOccurred())
			Expect(run("set", "proxy.upstream_timeout", "later")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "proxy.listen")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("prints a previously set value", func() {
			Expect(run("set", "log.level", "debug")).To(Succeed())
			out.Reset()

			Expect(run("get", "log.level")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("debug"))
		})

		It("prints defaults for unset keys", func() {
			Expect(run("get", "proxy.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("127.0.0.1:3000"))
		})

		It("marks keys without a default as not set", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key with its effective value", func() {
			Expect(run("set", "worker.count", "8")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Using config file"))
			Expect(out.String()).To(MatchRegexp(`worker\.count\s+= "8"`))
			Expect(out.String()).To(MatchRegexp(`storage\.sqlite_path\s+= <not set>`))
			Expect(out.String()).To(ContainSubstring("eventstream.kafka_topic"))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
