package utils

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID returns a random id for one measurement session.
func NewSessionID() string {
	return uuid.NewString()
}

// NewAttemptID returns a short random id used to correlate log lines of one workload attempt.
func NewAttemptID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}
