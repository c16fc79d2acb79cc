package reporting

import (
	"context"
	"errors"

	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/pools"
)

// LeaderboardSize caps the dashboard leaderboard.
const LeaderboardSize = 5

// CallCounter is satisfied by *calls.Ledger.
type CallCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	CallsPerUser(ctx context.Context, limit int) ([]calls.UserCallCount, error)
}

// PoolCounter is satisfied by *pools.Registry.
type PoolCounter interface {
	Progress(ctx context.Context, poolID int64) (pools.Progress, error)
}

type Service struct {
	calls CallCounter
	pools PoolCounter
}

func NewService(c CallCounter, p PoolCounter) *Service { return &Service{calls: c, pools: p} }

func (s *Service) CallStats(ctx context.Context) (CallStats, error) {
	if s.calls == nil {
		return CallStats{}, errors.New("reporting: call counter not configured")
	}
	counts, err := s.calls.CountByStatus(ctx)
	if err != nil {
		return CallStats{}, err
	}
	st := CallStats{
		Answered: counts[calls.StatusAnswered],
		Missed:   counts[calls.StatusMissed],
		ByStatus: counts,
	}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	st, err := s.CallStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	leaders, err := s.calls.CallsPerUser(ctx, LeaderboardSize)
	if err != nil {
		return Dashboard{}, err
	}
	if leaders == nil {
		leaders = []calls.UserCallCount{}
	}
	return Dashboard{CallStats: st, Leaderboard: leaders}, nil
}

// PoolProgress reports how much of a pool has been dialed.
func (s *Service) PoolProgress(ctx context.Context, poolID int64) (pools.Progress, error) {
	if s.pools == nil {
		return pools.Progress{}, errors.New("reporting: pool counter not configured")
	}
	return s.pools.Progress(ctx, poolID)
}
