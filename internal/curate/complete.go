package curate

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "mistral-large"

// DefaultNamespace is the schema-qualified name of the completion
// function.
const DefaultNamespace = "snowflake.cortex"

// Querier is the slice of a database connection the completion client
// needs. *sql.DB and *sql.Conn both satisfy it.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CompletionError wraps a failed remote completion call. The underlying
// message is preserved verbatim for diagnostics.
type CompletionError struct {
	Model string
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion call with model %q failed: %v", e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// CompletionClient invokes the remote completion function over an
// existing authenticated connection.
type CompletionClient struct {
	namespace string
}

// NewCompletionClient creates a client calling <namespace>.complete.
// Empty namespace falls back to DefaultNamespace.
func NewCompletionClient(namespace string) *CompletionClient {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CompletionClient{namespace: namespace}
}

// Complete issues exactly one synchronous completion call and returns
// the first scalar text result. The prompt must already be escaped for
// embedding in a single-quoted literal (ComposePrompt does this).
//
// Each call consumes remote compute quota; never call speculatively and
// never retry implicitly.
func (c *CompletionClient) Complete(ctx context.Context, conn Querier, model, prompt string) (string, error) {
	stmt := fmt.Sprintf("SELECT %s.complete('%s', '%s')", c.namespace, model, prompt)

	var response string
	if err := conn.QueryRowContext(ctx, stmt).Scan(&response); err != nil {
		return "", &CompletionError{Model: model, Err: err}
	}
	return response, nil
}
