package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var homeDir, cwd string

	BeforeEach(func() {
		homeDir = GinkgoT().TempDir()
		cwd = GinkgoT().TempDir()

		GinkgoT().Setenv("HOME", homeDir)
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		GinkgoT().Setenv("TOKENTAP_SQLITE", "")

		orig, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(cwd)).To(Succeed())
		DeferCleanup(os.Chdir, orig)
	})

	It("returns the override untouched", func() {
		path, err := ResolveSQLitePath("/data/custom.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/data/custom.db"))
	})

	It("prefers TOKENTAP_SQLITE when set", func() {
		GinkgoT().Setenv("TOKENTAP_SQLITE", "/tmp/env.db")

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/env.db"))
	})

	It("finds the local .tokentap database before the home one", func() {
		home := filepath.Join(homeDir, ".tokentap", DefaultFile)
		Expect(os.MkdirAll(filepath.Dir(home), 0o755)).To(Succeed())
		Expect(os.WriteFile(home, []byte("x"), 0o644)).To(Succeed())

		local := filepath.Join(".tokentap", DefaultFile)
		Expect(os.MkdirAll(".tokentap", 0o755)).To(Succeed())
		Expect(os.WriteFile(local, []byte("x"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(local))
	})

	It("resolves ~/.tokentap/metrics.db when present", func() {
		dbPath := filepath.Join(homeDir, ".tokentap", DefaultFile)
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("x"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("errors when nothing is found", func() {
		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ContainSubstring("could not find tokentap SQLite database")))
	})
})
