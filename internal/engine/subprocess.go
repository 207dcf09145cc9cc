package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// runCommand executes a subprocess with a hard deadline, returning stdout.
// Expiry maps to ErrTimeout so the fallback chain advances instead of
// hanging the run. stderr is folded into the error for diagnostics.
func runCommand(ctx context.Context, timeout time.Duration, stdin string, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// Pre-configure stdin so the child never races us reading it.
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s after %s: %w", name, timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("%s failed: %v, stderr: %s: %w",
			name, err, strings.TrimSpace(stderr.String()), ErrSynthesisFailed)
	}
	return stdout.Bytes(), nil
}

// binaryOnPath reports whether an executable can be resolved. Used by the
// availability probes; never errors.
func binaryOnPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
