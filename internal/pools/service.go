package pools

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/pkg/logger"
	"github.com/Hons90/CRM/pkg/utils"
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Registry owns dialer pools and the call state of their numbers.
//
// Invariants:
// - deleted pools are invisible (NotFound) to every pool-scoped operation
// - a number's IsCalled flag is never reset
type Registry struct {
	db    *sql.DB
	store *Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db, store: NewStore(db), clock: time.Now}
}

// WithTx returns a registry whose reads and writes go through tx.
func (r *Registry) WithTx(tx *sql.Tx) *Registry {
	return &Registry{db: r.db, store: NewStore(tx), clock: r.clock}
}

func (r *Registry) CreatePool(ctx context.Context, name string, uploadedBy *int64) (DialerPool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DialerPool{}, apperr.Validation("pool name is required")
	}
	return r.store.insertPool(ctx, DialerPool{
		Name:       name,
		UploadedBy: uploadedBy,
		CreatedAt:  r.clock().UTC(),
	})
}

func (r *Registry) GetPool(ctx context.Context, poolID int64) (DialerPool, error) {
	return r.store.activePool(ctx, poolID)
}

// ListPools returns non-deleted pools, newest first.
func (r *Registry) ListPools(ctx context.Context) ([]DialerPool, error) {
	return r.store.listPools(ctx)
}

// DeletePool soft-deletes a pool. Its numbers and call logs stay untouched.
func (r *Registry) DeletePool(ctx context.Context, poolID int64) error {
	return r.store.softDeletePool(ctx, poolID)
}

// ImportNumbers inserts every all-digit row as a new, uncalled number.
// Rows are trimmed first; anything else is skipped silently.
// There is no duplicate detection within or across imports.
func (r *Registry) ImportNumbers(ctx context.Context, poolID int64, rawRows []string) (ImportResult, error) {
	if _, err := r.store.activePool(ctx, poolID); err != nil {
		return ImportResult{}, err
	}

	valid := FilterPhoneNumbers(rawRows)
	res := ImportResult{PoolID: poolID, Imported: len(valid), TotalRows: len(rawRows)}
	if len(valid) == 0 {
		return res, nil
	}

	now := r.clock().UTC()
	if tx, ok := r.store.db.(*sql.Tx); ok {
		return res, NewStore(tx).insertNumbers(ctx, poolID, valid, now)
	}
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return NewStore(tx).insertNumbers(ctx, poolID, valid, now)
	})
	if err != nil {
		return ImportResult{}, apperr.Storage("import numbers", err)
	}

	logger.From(ctx).Info("dialer numbers imported",
		"pool_id", poolID, "imported", res.Imported, "total_rows", res.TotalRows)
	return res, nil
}

// ListNumbers returns the pool's non-deleted numbers in insertion order.
func (r *Registry) ListNumbers(ctx context.Context, poolID int64) ([]DialerNumber, error) {
	if _, err := r.store.activePool(ctx, poolID); err != nil {
		return nil, err
	}
	return r.store.listNumbers(ctx, poolID)
}

// MarkCalled flags every non-deleted row in the pool whose phone equals phone exactly.
// Zero matches is not an error: ad-hoc numbers dialed against a pool simply match nothing.
func (r *Registry) MarkCalled(ctx context.Context, poolID int64, phone string) (int64, error) {
	if _, err := r.store.activePool(ctx, poolID); err != nil {
		return 0, err
	}
	return r.store.markCalled(ctx, poolID, phone)
}

func (r *Registry) Progress(ctx context.Context, poolID int64) (Progress, error) {
	if _, err := r.store.activePool(ctx, poolID); err != nil {
		return Progress{}, err
	}
	total, called, err := r.store.countNumbers(ctx, poolID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{PoolID: poolID, Total: total, Called: called, Remaining: total - called}, nil
}

// FilterPhoneNumbers keeps trimmed rows made only of digits, preserving order.
func FilterPhoneNumbers(rawRows []string) []string {
	out := make([]string, 0, len(rawRows))
	for _, row := range rawRows {
		phone := strings.TrimSpace(row)
		if digitsOnly.MatchString(phone) {
			out = append(out, phone)
		}
	}
	return out
}
