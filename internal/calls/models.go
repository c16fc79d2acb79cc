package calls

import "time"

// CallLog is one dial attempt and its qualification.
//
// Rows are never deleted. PoolID is nil for ad-hoc dials.
// ProviderCallID is unique when present.
type CallLog struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	PoolID         *int64    `json:"poolId"`
	PhoneNumber    string    `json:"phoneNumber"`
	Status         string    `json:"status"`
	Outcome        *string   `json:"outcome"`
	Notes          *string   `json:"notes"`
	Duration       int       `json:"duration"`
	CallTime       time.Time `json:"callTime"`
	ProviderCallID *string   `json:"providerCallId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Pool is filled by listings only.
	Pool *PoolRef `json:"pool,omitempty"`
}

// PoolRef names the pool an entry was dialed from.
type PoolRef struct {
	ID   int64  `json:"id"`
	Name string `json:"poolName"`
}

// Well-known statuses. Status is free-form; these are not enforced.
const (
	StatusInitiated     = "initiated"
	StatusCompleted     = "completed"
	StatusInterested    = "interested"
	StatusNotInterested = "not_interested"
	StatusOther         = "other"

	// Pushed by the dial provider.
	StatusAnswered = "answered"
	StatusMissed   = "missed"
)

// UserCallCount is one row of the per-agent call tally.
type UserCallCount struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Calls  int    `json:"calls"`
}

// DialRecord is what the coordinator knows right after the provider accepted a call.
type DialRecord struct {
	UserID         int64
	PoolID         *int64
	PhoneNumber    string
	ProviderCallID string
}

// QualifyRequest is a partial update. Nil or empty fields keep the stored value.
type QualifyRequest struct {
	Status   *string `json:"status"`
	Outcome  *string `json:"outcome"`
	Duration *int    `json:"duration"`
	Notes    *string `json:"notes"`
}

// Empty reports whether the request would change nothing.
func (q QualifyRequest) Empty() bool {
	return blank(q.Status) && blank(q.Outcome) && blank(q.Notes) && q.Duration == nil
}

func blank(s *string) bool { return s == nil || *s == "" }
