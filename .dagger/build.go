package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/tokentap/internal/dagger"
)

// Build compiles the tokentap binary for the container's platform and
// returns the output directory. CGO is required by the SQLite driver, so
// there is no cross-compilation matrix.
func (t *Tokentap) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	const out = "/out/"

	return t.goContainer().
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", out, "./cli/tokentap"}).
		Directory(out)
}

// BuildRelease compiles a release binary with embedded version info
func (t *Tokentap) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/tokentap/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/tokentap/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/tokentap/pkg/utils.Buildtime=%s'", buildtime),
	}

	return t.Build(ctx, strings.Join(ldflags, " "))
}
