package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"
	"freight-erp/internal/repository"

	"github.com/google/uuid"
)

// EventPublisher pushes realtime notifications after a change has been committed.
type EventPublisher interface {
	Publish(event string, data map[string]interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, map[string]interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// Realtime event names
const (
	EventInvoiceStatusChanged = "invoice.status_changed"
	EventPaymentRecorded      = "payment.recorded"
	EventPaymentDeleted       = "payment.deleted"
	EventPJOStatusChanged     = "pjo.status_changed"
	EventPJOConverted         = "pjo.converted"
)

// requireFeature is the service-side authorization check. The HTTP layer gates routes
// too; services check again because they are also called from jobs and tests.
func requireFeature(actor *permission.Profile, feature string) error {
	if actor == nil || !actor.IsActive {
		return ErrUnauthenticated
	}
	if !permission.CanAccessFeature(actor, feature) {
		return forbidden(feature)
	}
	return nil
}

func actorID(actor *permission.Profile) *uuid.UUID {
	if actor == nil {
		return nil
	}
	if parsed, err := uuid.Parse(actor.UserID); err == nil {
		return &parsed
	}
	return nil
}

func actorRole(actor *permission.Profile) string {
	if actor == nil {
		return "system"
	}
	return string(actor.Role)
}

func auditEntry(actor *permission.Profile, action, entityType, entityID, entityName string, details map[string]interface{}) *model.AuditLog {
	raw, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     actorID(actor),
		UserRole:   actorRole(actor),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
}

// numberAttempts bounds how often a create is retried after its document number was taken.
const numberAttempts = 3

// runNumbered runs fn in its own transaction and starts over on a unique violation, as when
// two creates counted the same day total. fn must generate its number inside the transaction.
func runNumbered(ctx context.Context, tx repository.TransactionManager, fn func(txCtx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := tx.RunInTx(ctx, fn)
		if !repository.IsDuplicateKey(err) {
			return err
		}
		if attempt == numberAttempts {
			return fmt.Errorf("%w: document number still taken after %d attempts", ErrConflict, numberAttempts)
		}
	}
}

// documentNumber builds PREFIX-YYYYMMDD-NNNNN numbers from a per-day count.
func documentNumber(ctx context.Context, kind string, now time.Time, count func(ctx context.Context, prefix string) (int64, error)) (string, error) {
	prefix := kind + "-" + now.Format("20060102") + "-"
	n, err := count(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, n+1), nil
}

// lookupError reports a missing row as ErrNotFound and wraps anything else, so a broken
// connection still surfaces as an internal error.
func lookupError(err error, what string) error {
	if repository.IsNotFound(err) {
		return notFound(what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, validationError("invalid " + what)
	}
	return id, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func formatUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// normalizePage applies the listing defaults when a caller skipped pagination parsing.
func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
