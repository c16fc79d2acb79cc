package calls

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/pkg/logger"
)

// Ledger is the append-only history of dial attempts.
//
// Invariants:
// - rows are never deleted
// - Qualify overwrites only the fields it is given
// - a provider call id maps to at most one row
type Ledger struct {
	store *Store
	clock func() time.Time
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{store: NewStore(db), clock: time.Now}
}

// WithTx returns a ledger whose reads and writes go through tx.
func (l *Ledger) WithTx(tx *sql.Tx) *Ledger {
	return &Ledger{store: NewStore(tx), clock: l.clock}
}

// RecordDial appends an "initiated" entry. Dialing the same number twice yields two rows.
// If rec.ProviderCallID was already recorded, the existing row is returned unchanged.
func (l *Ledger) RecordDial(ctx context.Context, rec DialRecord) (CallLog, error) {
	if rec.UserID <= 0 {
		return CallLog{}, apperr.Validation("user id is required")
	}
	phone := strings.TrimSpace(rec.PhoneNumber)
	if phone == "" {
		return CallLog{}, apperr.Validation("phone number is required")
	}

	now := l.clock().UTC()
	entry := CallLog{
		UserID:      rec.UserID,
		PoolID:      rec.PoolID,
		PhoneNumber: phone,
		Status:      StatusInitiated,
		Duration:    0,
		CallTime:    now,
		UpdatedAt:   now,
	}
	if rec.ProviderCallID != "" {
		id := rec.ProviderCallID
		entry.ProviderCallID = &id
	}

	created, inserted, err := l.store.insert(ctx, entry)
	if err != nil {
		return CallLog{}, err
	}
	if !inserted {
		logger.From(ctx).Info("call log already recorded", "provider_call_id", rec.ProviderCallID)
		return l.store.getByProviderCallID(ctx, rec.ProviderCallID)
	}
	return created, nil
}

// Qualify applies a partial update and returns the stored entry.
// Unknown ids fail with ErrNotFound before anything is written.
func (l *Ledger) Qualify(ctx context.Context, callID int64, req QualifyRequest) (CallLog, error) {
	if req.Duration != nil && *req.Duration < 0 {
		return CallLog{}, apperr.Validation("duration must not be negative")
	}
	if _, err := l.store.get(ctx, callID); err != nil {
		return CallLog{}, err
	}
	if req.Empty() {
		logger.From(ctx).Debug("qualify without fields", "call_log_id", callID)
	}

	n, err := l.store.update(ctx, callID, req, l.clock().UTC())
	if err != nil {
		return CallLog{}, err
	}
	if n == 0 {
		return CallLog{}, apperr.NotFound("call log", callID)
	}
	return l.store.get(ctx, callID)
}

// ListForUser returns the user's entries, newest first, optionally narrowed to one pool.
func (l *Ledger) ListForUser(ctx context.Context, userID int64, poolID *int64) ([]CallLog, error) {
	return l.store.listForUser(ctx, userID, poolID)
}

func (l *Ledger) Get(ctx context.Context, callID int64) (CallLog, error) {
	return l.store.get(ctx, callID)
}

// ApplyProviderStatus records a status pushed by the dial provider.
// The status only lands while the entry is initiated, answered or missed; once an
// agent has qualified the call only the duration is taken. A zero duration leaves
// the stored duration untouched.
func (l *Ledger) ApplyProviderStatus(ctx context.Context, providerCallID, status string, duration int) (CallLog, error) {
	if providerCallID == "" {
		return CallLog{}, apperr.Validation("provider call id is required")
	}
	if status == "" {
		return CallLog{}, apperr.Validation("status is required")
	}
	if duration < 0 {
		return CallLog{}, apperr.Validation("duration must not be negative")
	}

	n, err := l.store.applyProviderStatus(ctx, providerCallID, status, duration, l.clock().UTC())
	if err != nil {
		return CallLog{}, err
	}
	if n == 0 {
		return CallLog{}, apperr.NotFound("provider call", providerCallID)
	}
	got, err := l.store.getByProviderCallID(ctx, providerCallID)
	if err != nil {
		return CallLog{}, err
	}
	if got.Status != status {
		logger.From(ctx).Debug("provider status kept qualification", "call_log_id", got.ID, "status", got.Status, "provider_status", status)
	}
	return got, nil
}

// CountByStatus returns the number of entries per status.
func (l *Ledger) CountByStatus(ctx context.Context) (map[string]int, error) {
	return l.store.countByStatus(ctx)
}

// CallsPerUser ranks agents by number of entries, most first, at most limit rows.
func (l *Ledger) CallsPerUser(ctx context.Context, limit int) ([]UserCallCount, error) {
	if limit <= 0 {
		return []UserCallCount{}, nil
	}
	return l.store.callsPerUser(ctx, limit)
}
