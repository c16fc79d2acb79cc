// Package dialer coordinates one outbound dial: provider, call log, number state.
package dialer

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/internal/telephony"
	"github.com/Hons90/CRM/pkg/logger"
	"github.com/Hons90/CRM/pkg/utils"
)

// DialRequest comes from an authenticated agent. PoolID is nil for ad-hoc numbers.
type DialRequest struct {
	UserID      int64
	PoolID      *int64
	PhoneNumber string
}

// DialResult is the new call log entry plus the provider's raw answer.
type DialResult struct {
	CallLog    calls.CallLog        `json:"callLog"`
	CallResult telephony.DialResult `json:"callResult"`
}

type Service struct {
	db       *sql.DB
	registry *pools.Registry
	ledger   *calls.Ledger
	provider telephony.Provider
	limiter  Limiter
}

type Option func(*Service)

// WithLimiter enables the per-agent in-flight cap.
func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func NewService(db *sql.DB, registry *pools.Registry, ledger *calls.Ledger, provider telephony.Provider, opts ...Option) *Service {
	s := &Service{db: db, registry: registry, ledger: ledger, provider: provider}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dial places the call, then records it and marks the pool number as called.
//
// Nothing is written unless the provider accepted the call. The log entry and the
// number update commit together. There is no retry and no request-level
// deduplication: two identical requests dial twice and log twice.
func (s *Service) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	log := logger.From(ctx)

	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return DialResult{}, apperr.Validation("phone number is required")
	}
	if req.UserID <= 0 {
		return DialResult{}, apperr.Validation("user id is required")
	}
	if req.PoolID != nil {
		if _, err := s.registry.GetPool(ctx, *req.PoolID); err != nil {
			return DialResult{}, err
		}
	}

	if s.limiter != nil {
		release, ok, err := s.limiter.Acquire(ctx, req.UserID)
		if err != nil {
			return DialResult{}, apperr.Storage("acquire dial slot", err)
		}
		if !ok {
			return DialResult{}, apperr.ErrRateLimited
		}
		defer release()
	}

	callResult, err := s.provider.Dial(ctx, telephony.DialRequest{PhoneNumber: phone, UserID: req.UserID})
	if err != nil {
		log.Warn("dial provider failed", "provider", s.provider.Name(), "user_id", req.UserID, "err", err)
		return DialResult{}, apperr.Provider(err)
	}

	var entry calls.CallLog
	err = utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		entry, err = s.ledger.WithTx(tx).RecordDial(ctx, calls.DialRecord{
			UserID:         req.UserID,
			PoolID:         req.PoolID,
			PhoneNumber:    phone,
			ProviderCallID: callResult.CallID,
		})
		if err != nil {
			return err
		}
		if req.PoolID == nil {
			return nil
		}
		n, err := s.registry.WithTx(tx).MarkCalled(ctx, *req.PoolID, phone)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Debug("dialed number not in pool", "pool_id", *req.PoolID)
		}
		return nil
	})
	if err != nil {
		// The provider already placed the call; the caller must know the log is missing.
		log.Error("dial placed but not recorded", "call_id", callResult.CallID, "user_id", req.UserID, "err", err)
		return DialResult{}, apperr.Storage("record dial", err)
	}

	log.Info("dial recorded", "call_log_id", entry.ID, "call_id", callResult.CallID, "user_id", req.UserID)
	return DialResult{CallLog: entry, CallResult: callResult}, nil
}
