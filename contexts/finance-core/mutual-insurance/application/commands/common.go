package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

func resolveIdempotencyTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultIdempotencyTTL
	}
	return ttl
}

// requireRole returns ErrUnauthorized when subject lacks role. Lookup
// failures are wrapped and surface as infrastructure errors.
func requireRole(ctx context.Context, authorizer ports.Authorizer, subject string, role ports.Role) error {
	if authorizer == nil {
		return domainerrors.ErrUnauthorized
	}
	ok, err := authorizer.HasRole(ctx, subject, role)
	if err != nil {
		return fmt.Errorf("authorization lookup for %s: %w", role, err)
	}
	if !ok {
		return domainerrors.ErrUnauthorized
	}
	return nil
}

func newReference(ctx context.Context, idGen ports.IDGenerator, prefix string) (string, error) {
	id, err := idGen.NewID(ctx)
	if err != nil {
		return "", err
	}
	return prefix + ":" + id, nil
}

// idempotencyGuard holds a key reserved for a resource that is not written
// yet. A request arriving while the key is held replays the holder's
// resource instead of writing its own.
type idempotencyGuard struct {
	store      ports.IdempotencyStore
	key        string
	resourceID string
	reserved   bool
}

// reserveIdempotency returns the holder's resource id when another request
// owns key with the same payload.
func reserveIdempotency(
	ctx context.Context,
	store ports.IdempotencyStore,
	key string,
	requestHash string,
	resourceID string,
	ttl time.Duration,
	now time.Time,
) (idempotencyGuard, string, error) {
	guard := idempotencyGuard{store: store, key: key, resourceID: resourceID}
	if key == "" || store == nil {
		return guard, "", nil
	}
	holder, reserved, err := store.Reserve(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ResourceID:  resourceID,
		ExpiresAt:   now.Add(resolveIdempotencyTTL(ttl)),
	}, now)
	if err != nil {
		return guard, "", err
	}
	if reserved {
		guard.reserved = true
		return guard, "", nil
	}
	if holder.RequestHash != requestHash {
		return guard, "", domainerrors.ErrIdempotencyConflict
	}
	return guard, holder.ResourceID, nil
}

// release frees the key after the keyed write failed, so a retry can run.
func (g idempotencyGuard) release(ctx context.Context, logger *slog.Logger) {
	if !g.reserved {
		return
	}
	if err := g.store.Release(ctx, g.key, g.resourceID); err != nil {
		logger.Error("idempotency release failed",
			"event", "insurance_idempotency_release_failed",
			"module", moduleName,
			"layer", "application",
			"idempotency_key", g.key,
			"error", err.Error(),
		)
	}
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
