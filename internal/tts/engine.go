package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/book-expert/tts-capability/internal/core"
)

// engineWaitDelay bounds how long a killed engine may keep its pipes open.
const engineWaitDelay = 2 * time.Second

// errExit marks a non-zero engine exit before it is classified.
var errExit = errors.New("engine exited with non-zero status")

// runResult is the outcome of one engine invocation.
type runResult struct {
	stdout []byte
	stderr string
}

// runEngine runs binary under timeout, feeding stdin, and classifies failures
// into the service error taxonomy. A non-zero exit is returned as errExit so
// each engine can inspect stderr before choosing the final error.
func runEngine(ctx context.Context, timeout time.Duration, stdin string, binary string, args ...string) (runResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	// #nosec G204 -- binary comes from configuration, arguments are built by the engine
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = engineWaitDelay

	err := cmd.Run()
	result := runResult{stdout: stdout.Bytes(), stderr: decodeDiagnostics(stderr.Bytes())}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w: %s exceeded %s", core.ErrTimeout, binary, timeout)
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, errExit
	}

	return result, fmt.Errorf("%w: failed to run %s: %w", core.ErrInternal, binary, err)
}

// decodeDiagnostics turns engine stderr into printable text. The content is
// untrusted and only ever displayed.
func decodeDiagnostics(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
}
