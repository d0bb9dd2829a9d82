package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/security"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// friendlyError turns errors the user can fix into usage errors. Spec errors
// keep their location and pointer; messages are redacted.
func friendlyError(err error) error {
	if err == nil {
		return nil
	}
	var se *spec.SpecError
	if errors.As(err, &se) {
		msg := "spec: " + security.Redact(strings.TrimPrefix(se.Message, "spec: "))
		if se.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
		}
		if se.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
		}
		return newUsageError(msg)
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, connection.ErrInvalidConnection) || errors.Is(err, connection.ErrInvalidID) {
		return newUsageError(security.RedactError(err))
	}
	return err
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") ||
		strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") || strings.Contains(lower, "file exists") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}
