package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/pkg/utils"
)

const logColumns = `id, user_id, pool_id, phone_number, status, outcome, notes, duration, call_time, provider_call_id, updated_at`

// Store is the SQL persistence for call_logs.
type Store struct {
	db utils.DBTX
}

func NewStore(db utils.DBTX) *Store { return &Store{db: db} }

// insert appends a row. inserted is false when the provider call id was already
// recorded; the statement then writes nothing and does not abort an open transaction.
func (s *Store) insert(ctx context.Context, l CallLog) (_ CallLog, inserted bool, _ error) {
	const q = `
INSERT INTO call_logs (user_id, pool_id, phone_number, status, duration, call_time, provider_call_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (provider_call_id) WHERE provider_call_id IS NOT NULL DO NOTHING
RETURNING id
`
	err := s.db.QueryRowContext(ctx, q,
		l.UserID, nullInt(l.PoolID), l.PhoneNumber, l.Status, l.Duration, l.CallTime,
		nullString(l.ProviderCallID), l.UpdatedAt,
	).Scan(&l.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return CallLog{}, false, nil
	}
	if err != nil {
		return CallLog{}, false, apperr.Storage("record dial", err)
	}
	return l, true, nil
}

func (s *Store) get(ctx context.Context, id int64) (CallLog, error) {
	q := `SELECT ` + logColumns + ` FROM call_logs WHERE id = $1`
	l, err := scanLog(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallLog{}, apperr.NotFound("call log", id)
		}
		return CallLog{}, apperr.Storage("get call log", err)
	}
	return l, nil
}

func (s *Store) getByProviderCallID(ctx context.Context, providerCallID string) (CallLog, error) {
	q := `SELECT ` + logColumns + ` FROM call_logs WHERE provider_call_id = $1`
	l, err := scanLog(s.db.QueryRowContext(ctx, q, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallLog{}, apperr.NotFound("provider call", providerCallID)
		}
		return CallLog{}, apperr.Storage("get call log by provider id", err)
	}
	return l, nil
}

// update writes only the non-nil fields. The updated_at column always changes.
func (s *Store) update(ctx context.Context, id int64, q QualifyRequest, now time.Time) (int64, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if !blank(q.Status) {
		add("status", *q.Status)
	}
	if !blank(q.Outcome) {
		add("outcome", *q.Outcome)
	}
	if q.Duration != nil {
		add("duration", *q.Duration)
	}
	if !blank(q.Notes) {
		add("notes", *q.Notes)
	}
	add("updated_at", now)
	args = append(args, id)

	stmt := fmt.Sprintf(`UPDATE call_logs SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, apperr.Storage("qualify call log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("qualify call log", err)
	}
	return n, nil
}

// applyProviderStatus sets status only while the row still carries a provider-owned
// status, so an agent's qualification is never replaced. duration <= 0 is ignored.
func (s *Store) applyProviderStatus(ctx context.Context, providerCallID, status string, duration int, now time.Time) (int64, error) {
	args := []any{status, StatusInitiated, StatusAnswered, StatusMissed, now}
	sets := `status = CASE WHEN status IN ($2, $3, $4) THEN $1 ELSE status END, updated_at = $5`
	if duration > 0 {
		args = append(args, duration)
		sets += fmt.Sprintf(", duration = $%d", len(args))
	}
	args = append(args, providerCallID)
	stmt := fmt.Sprintf(`UPDATE call_logs SET %s WHERE provider_call_id = $%d`, sets, len(args))

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, apperr.Storage("apply provider status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("apply provider status", err)
	}
	return n, nil
}

const listColumns = `l.id, l.user_id, l.pool_id, l.phone_number, l.status, l.outcome, l.notes, l.duration, l.call_time, l.provider_call_id, l.updated_at, p.pool_name`

func (s *Store) listForUser(ctx context.Context, userID int64, poolID *int64) ([]CallLog, error) {
	q := `SELECT ` + listColumns + ` FROM call_logs l LEFT JOIN dialer_pools p ON p.id = l.pool_id WHERE l.user_id = $1`
	args := []any{userID}
	if poolID != nil {
		q += ` AND l.pool_id = $2`
		args = append(args, *poolID)
	}
	q += ` ORDER BY l.call_time DESC, l.id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage("list call logs", err)
	}
	defer rows.Close()

	out := make([]CallLog, 0)
	for rows.Next() {
		var poolName sql.NullString
		l, err := scanLog(rows, &poolName)
		if err != nil {
			return nil, apperr.Storage("scan call log", err)
		}
		if l.PoolID != nil && poolName.Valid {
			l.Pool = &PoolRef{ID: *l.PoolID, Name: poolName.String}
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list call logs", err)
	}
	return out, nil
}

func (s *Store) countByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM call_logs GROUP BY status`)
	if err != nil {
		return nil, apperr.Storage("count call logs", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperr.Storage("scan call log count", err)
		}
		out[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("count call logs", err)
	}
	return out, nil
}

func (s *Store) callsPerUser(ctx context.Context, limit int) ([]UserCallCount, error) {
	const q = `
SELECT u.id, u.name, COUNT(l.id)
FROM call_logs l
JOIN users u ON u.id = l.user_id
GROUP BY u.id, u.name
ORDER BY COUNT(l.id) DESC, u.id ASC
LIMIT $1
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, apperr.Storage("count calls per user", err)
	}
	defer rows.Close()

	out := make([]UserCallCount, 0, limit)
	for rows.Next() {
		var c UserCallCount
		if err := rows.Scan(&c.UserID, &c.Name, &c.Calls); err != nil {
			return nil, apperr.Storage("scan calls per user", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("count calls per user", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanLog reads logColumns followed by any extra destinations.
func scanLog(r rowScanner, extra ...any) (CallLog, error) {
	var (
		l              CallLog
		poolID         sql.NullInt64
		outcome, notes sql.NullString
		providerCallID sql.NullString
	)
	dest := append([]any{&l.ID, &l.UserID, &poolID, &l.PhoneNumber, &l.Status, &outcome, &notes,
		&l.Duration, &l.CallTime, &providerCallID, &l.UpdatedAt}, extra...)
	err := r.Scan(dest...)
	if err != nil {
		return CallLog{}, err
	}
	if poolID.Valid {
		v := poolID.Int64
		l.PoolID = &v
	}
	l.Outcome = stringPtr(outcome)
	l.Notes = stringPtr(notes)
	l.ProviderCallID = stringPtr(providerCallID)
	l.CallTime = l.CallTime.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
