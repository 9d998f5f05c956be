package llm

import (
	"errors"
	"strings"
)

// ErrNoAPIKey is returned by a provider constructor when no API key is
// configured — following the teacher's NewOpenAIProvider behavior of
// still returning a usable-but-erroring provider value rather than nil,
// so config wiring can happen before secrets are available.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// isRetryableError classifies a backend error by matching common
// rate-limit/server-error/timeout substrings, following the teacher's
// OpenAIProvider.isRetryableError.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	default:
		return false
	}
}
