package cli

import "github.com/google/uuid"

// NewRunID returns a fresh correlation id for one pipeline invocation,
// the CLI-appropriate counterpart to the teacher's per-request
// X-Correlation-Id, used to tag log lines for one seed run.
func NewRunID() string {
	return uuid.NewString()
}
