package postgresadapter

import (
	"context"
	"time"

	"commonpool/contexts/identity-access/authorization-service/ports"

	"github.com/google/uuid"
)

// SystemClock and UUIDGenerator back the postgres deployment; the memory
// store provides its own.
type (
	SystemClock   struct{}
	UUIDGenerator struct{}
)

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.Clock       = SystemClock{}
	_ ports.IDGenerator = UUIDGenerator{}
)
