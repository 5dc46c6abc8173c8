package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig        = errors.New("configuration error")
	ErrPrecondition  = errors.New("precondition failed")
	ErrStepExecution = errors.New("step failed")
	ErrVerification  = errors.New("verification failed")
	ErrInterrupted   = errors.New("interrupted")
)

// wrap builds an error message that includes resource and step context while
// tagging it with the provided marker for later classification.
func wrap(marker error, resource, step, message string, err error) error {
	detail := buildDetail(resource, step, message)
	if marker == nil {
		marker = ErrStepExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(resource, step, message string) string {
	parts := make([]string, 0, 3)
	if resource = strings.TrimSpace(resource); resource != "" {
		parts = append(parts, resource)
	}
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "migration failure"
	}
	return strings.Join(parts, ": ")
}

// Kind returns a short classification of err for logs and run history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrVerification):
		return "verification"
	default:
		return "step"
	}
}

// Hint returns operator guidance for err.
func Hint(err error) string {
	switch Kind(err) {
	case "interrupted":
		return "re-run with --resume to continue from the last recorded step"
	case "config":
		return "fix the configuration and re-run"
	case "precondition":
		return "free space or adjust the destination, then re-run; nothing was changed"
	case "verification":
		return "inspect the service logs; the data is intact at both locations"
	case "step":
		return "fix the cause and re-run with --resume; completed steps are skipped"
	default:
		return ""
	}
}
