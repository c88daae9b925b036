package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock stamps insurance records in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator allocates policy, claim, pool and event identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
