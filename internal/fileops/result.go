package fileops

import (
	"fmt"

	"github.com/JonMunkholm/investmcp/internal/core"
)

// Status classifies the outcome of an operation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFault   Status = "fault"
)

// Result is what every operation returns instead of an error. Faults carry
// the underlying error in Err for errors.Is checks and have already been
// appended to the error log; warnings are reported but never logged.
type Result struct {
	Status  Status
	Message string
	Code    string

	// Content is set by Read.
	Content string
	// Entries is set by List.
	Entries []string

	Err error
}

// OK reports whether the operation succeeded without warnings.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Text renders the result as the single line handed back to the agent.
func (r Result) Text() string {
	switch r.Status {
	case StatusFault:
		if r.Code != "" {
			return fmt.Sprintf("Error: %s (Code: %s)", r.Message, r.Code)
		}
		return "Error: " + r.Message
	case StatusWarning:
		return "Warning: " + r.Message
	default:
		return r.Message
	}
}

func ok(format string, args ...any) Result {
	return Result{Status: StatusOK, Message: fmt.Sprintf(format, args...)}
}

func warning(err error) Result {
	return Result{Status: StatusWarning, Message: err.Error(), Code: core.MapError(err).Code, Err: err}
}
