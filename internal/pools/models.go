package pools

import "time"

// DialerPool is a named batch of phone numbers queued for outbound calling.
// Pools are soft-deleted only; a deleted pool behaves as not found everywhere.
type DialerPool struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"poolName" db:"pool_name"`
	UploadedBy *int64    `json:"uploadedBy" db:"uploaded_by"`
	IsDeleted  bool      `json:"isDeleted" db:"is_deleted"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// DialerNumber belongs to exactly one pool.
//
// Invariant: IsCalled is monotonic. No operation sets it back to false.
type DialerNumber struct {
	ID          int64     `json:"id" db:"id"`
	PoolID      int64     `json:"poolId" db:"pool_id"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	IsCalled    bool      `json:"isCalled" db:"is_called"`
	IsDeleted   bool      `json:"isDeleted" db:"is_deleted"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ImportResult reports aggregate counts only; skipped rows are not itemized.
type ImportResult struct {
	PoolID    int64 `json:"poolId"`
	Imported  int   `json:"imported"`
	TotalRows int   `json:"totalRows"`
}

// Progress summarizes how far a pool has been worked.
type Progress struct {
	PoolID    int64 `json:"poolId"`
	Total     int   `json:"total"`
	Called    int   `json:"called"`
	Remaining int   `json:"remaining"`
}
