package pools

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/pkg/utils"
)

// numbersPerInsert bounds the argument count of one multi-row INSERT.
const numbersPerInsert = 300

// Store is the SQL persistence for dialer_pools and dialer_numbers.
// It runs against either the pool handle or an open transaction.
type Store struct {
	db utils.DBTX
}

func NewStore(db utils.DBTX) *Store { return &Store{db: db} }

func (s *Store) insertPool(ctx context.Context, p DialerPool) (DialerPool, error) {
	const q = `
INSERT INTO dialer_pools (pool_name, uploaded_by, is_deleted, created_at)
VALUES ($1, $2, FALSE, $3)
RETURNING id
`
	var uploadedBy sql.NullInt64
	if p.UploadedBy != nil {
		uploadedBy = sql.NullInt64{Int64: *p.UploadedBy, Valid: true}
	}
	if err := s.db.QueryRowContext(ctx, q, p.Name, uploadedBy, p.CreatedAt).Scan(&p.ID); err != nil {
		return DialerPool{}, apperr.Storage("insert dialer pool", err)
	}
	return p, nil
}

// activePool returns a non-deleted pool or ErrNotFound.
func (s *Store) activePool(ctx context.Context, id int64) (DialerPool, error) {
	const q = `
SELECT id, pool_name, uploaded_by, is_deleted, created_at
FROM dialer_pools
WHERE id = $1 AND is_deleted = FALSE
`
	p, err := scanPool(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DialerPool{}, apperr.NotFound("dialer pool", id)
		}
		return DialerPool{}, apperr.Storage("get dialer pool", err)
	}
	return p, nil
}

func (s *Store) listPools(ctx context.Context) ([]DialerPool, error) {
	const q = `
SELECT id, pool_name, uploaded_by, is_deleted, created_at
FROM dialer_pools
WHERE is_deleted = FALSE
ORDER BY created_at DESC, id DESC
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, apperr.Storage("list dialer pools", err)
	}
	defer rows.Close()

	out := make([]DialerPool, 0)
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, apperr.Storage("scan dialer pool", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list dialer pools", err)
	}
	return out, nil
}

func (s *Store) softDeletePool(ctx context.Context, id int64) error {
	const q = `UPDATE dialer_pools SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return apperr.Storage("delete dialer pool", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("delete dialer pool", err)
	}
	if n == 0 {
		return apperr.NotFound("dialer pool", id)
	}
	return nil
}

// insertNumbers writes phones in chunks; callers wrap it in a transaction.
func (s *Store) insertNumbers(ctx context.Context, poolID int64, phones []string, now time.Time) error {
	for start := 0; start < len(phones); start += numbersPerInsert {
		end := start + numbersPerInsert
		if end > len(phones) {
			end = len(phones)
		}
		chunk := phones[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO dialer_numbers (pool_id, phone_number, created_at, is_called, is_deleted) VALUES ")
		args := make([]any, 0, len(chunk)*3)
		for i, phone := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(" + utils.Placeholders(len(args)+1, 3) + ", FALSE, FALSE)")
			args = append(args, poolID, phone, now)
		}
		if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
			return apperr.Storage("insert dialer numbers", err)
		}
	}
	return nil
}

func (s *Store) listNumbers(ctx context.Context, poolID int64) ([]DialerNumber, error) {
	const q = `
SELECT id, pool_id, phone_number, is_called, is_deleted, created_at
FROM dialer_numbers
WHERE pool_id = $1 AND is_deleted = FALSE
ORDER BY id ASC
`
	rows, err := s.db.QueryContext(ctx, q, poolID)
	if err != nil {
		return nil, apperr.Storage("list dialer numbers", err)
	}
	defer rows.Close()

	out := make([]DialerNumber, 0)
	for rows.Next() {
		var n DialerNumber
		if err := rows.Scan(&n.ID, &n.PoolID, &n.PhoneNumber, &n.IsCalled, &n.IsDeleted, &n.CreatedAt); err != nil {
			return nil, apperr.Storage("scan dialer number", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list dialer numbers", err)
	}
	return out, nil
}

// markCalled matches the phone by exact string equality; duplicates are all updated.
func (s *Store) markCalled(ctx context.Context, poolID int64, phone string) (int64, error) {
	const q = `
UPDATE dialer_numbers
SET is_called = TRUE
WHERE pool_id = $1 AND phone_number = $2 AND is_deleted = FALSE
`
	res, err := s.db.ExecContext(ctx, q, poolID, phone)
	if err != nil {
		return 0, apperr.Storage("mark number called", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("mark number called", err)
	}
	return n, nil
}

func (s *Store) countNumbers(ctx context.Context, poolID int64) (total, called int, err error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_called THEN 1 ELSE 0 END), 0)
FROM dialer_numbers
WHERE pool_id = $1 AND is_deleted = FALSE
`
	if err := s.db.QueryRowContext(ctx, q, poolID).Scan(&total, &called); err != nil {
		return 0, 0, apperr.Storage("count dialer numbers", err)
	}
	return total, called, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(r rowScanner) (DialerPool, error) {
	var (
		p          DialerPool
		uploadedBy sql.NullInt64
	)
	if err := r.Scan(&p.ID, &p.Name, &uploadedBy, &p.IsDeleted, &p.CreatedAt); err != nil {
		return DialerPool{}, err
	}
	if uploadedBy.Valid {
		v := uploadedBy.Int64
		p.UploadedBy = &v
	}
	return p, nil
}
