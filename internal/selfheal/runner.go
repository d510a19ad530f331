package selfheal

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner verifies a patched source tree.
type Runner interface {
	RunTests(ctx context.Context) error
}

// GoTestRunner runs the project's test suite with the Go toolchain. A fix is
// only kept when the whole suite passes, so a patch to one module cannot
// silently break another.
type GoTestRunner struct {
	// Dir is the module root the suite runs in.
	Dir string
}

// RunTests executes `go test ./...` in Dir, returning the trailing output on
// failure so escalations carry the actual test error.
func (r *GoTestRunner) RunTests(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "go", "test", "./...")
	cmd.Dir = r.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("go test: %w: %s", err, tail(string(output), 500))
	}
	return nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}

var _ Runner = (*GoTestRunner)(nil)
