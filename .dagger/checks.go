package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/tokentap/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (t *Tokentap) CheckGoModTidy(ctx context.Context) (string, error) {
	return t.runCheck(ctx,
		"go.mod or go.sum are not tidy: run 'go mod tidy' and commit the changes",
		"cp go.mod go.mod.HEAD && cp go.sum go.sum.HEAD && go mod tidy && "+
			"diff -u go.mod.HEAD go.mod && diff -u go.sum.HEAD go.sum",
	)
}

// CheckVet runs "go vet" over every package.
//
// +check
func (t *Tokentap) CheckVet(ctx context.Context) (string, error) {
	return t.runCheck(ctx, "go vet reported problems", "go vet ./...")
}

// runCheck executes script in the Go container and turns a non-zero exit
// into an error carrying the script's output.
func (t *Tokentap) runCheck(ctx context.Context, failure, script string) (string, error) {
	out, err := t.goContainer().
		WithExec([]string{"sh", "-c", script}).
		Stdout(ctx)

	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("%s\n\n%s%s", failure, e.Stdout, e.Stderr)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return out, nil
}
