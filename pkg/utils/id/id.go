// Package id provides unique ID generation utilities.
//
//   - UUID v4 for query log records (github.com/google/uuid)
//   - ULID for request ids, lexicographically sortable (github.com/oklog/ulid/v2)
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ErrInvalidUUID = errors.New("id: malformed uuid")
	ErrInvalidULID = errors.New("id: malformed ulid")
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewUUID generates a new UUID v4 string.
func NewUUID() string {
	return uuid.NewString()
}

// NewULID generates a new ULID string. Safe for concurrent use.
func NewULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// ParseUUID validates s and returns its canonical form.
func ParseUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return u.String(), nil
}

// ULIDTime returns the timestamp embedded in a ULID string.
func ULIDTime(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidULID, err)
	}
	return ulid.Time(u.Time()), nil
}
