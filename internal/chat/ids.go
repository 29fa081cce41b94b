package chat

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns the opaque ephemeral session identifier. Sessions live
// in Redis under this id; the durable counterpart is joined via the topic
// marker, never via this string directly.
func NewSessionID() string {
	return uuid.NewString()
}

// NewJobID returns a lexicographically sortable 26-char job id.
func NewJobID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
