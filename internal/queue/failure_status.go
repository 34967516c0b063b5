package queue

import (
	"context"
	"errors"
)

// FailureStatus picks the terminal queue status for a job that stopped with
// err: cancelled when the error stems from context cancellation, failed
// otherwise.
//
// It lives here rather than in internal/services because services is imported
// by internal/logging, which the conversion packages underneath the queue
// model depend on; returning a Status from services would close an import
// cycle (services -> queue -> convert -> logging -> services).
func FailureStatus(err error) Status {
	if errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	return StatusFailed
}
