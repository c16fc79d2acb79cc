package dialer

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/internal/telephony"
	"github.com/Hons90/CRM/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingProvider struct{ err error }

func (p failingProvider) Name() string                      { return "failing" }
func (p failingProvider) HealthCheck(context.Context) error { return nil }
func (p failingProvider) Dial(context.Context, telephony.DialRequest) (telephony.DialResult, error) {
	return telephony.DialResult{}, p.err
}

// fixedIDProvider returns the same call id every time, like a provider replaying a response.
type fixedIDProvider struct{ id string }

func (p fixedIDProvider) Name() string                      { return "fixed" }
func (p fixedIDProvider) HealthCheck(context.Context) error { return nil }
func (p fixedIDProvider) Dial(context.Context, telephony.DialRequest) (telephony.DialResult, error) {
	return telephony.DialResult{Success: true, CallID: p.id}, nil
}

type countingLimiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	released int
}

func (l *countingLimiter) Acquire(context.Context, int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight >= l.limit {
		return func() {}, false, nil
	}
	l.inFlight++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.inFlight--
		l.released++
	}, true, nil
}

type env struct {
	db       *sql.DB
	registry *pools.Registry
	ledger   *calls.Ledger
	userID   int64
	poolID   int64
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	e := env{
		db:       db,
		registry: pools.NewRegistry(db),
		ledger:   calls.NewLedger(db),
		userID:   testutil.InsertUser(t, db, "agent@example.com", "employee"),
	}
	pool, err := e.registry.CreatePool(ctx, "Leads", nil)
	require.NoError(t, err)
	e.poolID = pool.ID
	_, err = e.registry.ImportNumbers(ctx, pool.ID, []string{"5551234", "5559999"})
	require.NoError(t, err)
	return e
}

func (e env) service(p telephony.Provider, opts ...Option) *Service {
	return NewService(e.db, e.registry, e.ledger, p, opts...)
}

func (e env) logCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM call_logs`).Scan(&n))
	return n
}

func TestDial_MarksNumberAndWritesOneInitiatedLog(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(telephony.NewSimulatedProvider())

	res, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
	require.NoError(t, err)
	assert.True(t, res.CallResult.Success)
	assert.NotEmpty(t, res.CallResult.CallID)
	assert.Equal(t, calls.StatusInitiated, res.CallLog.Status)
	assert.Equal(t, 0, res.CallLog.Duration)
	require.NotNil(t, res.CallLog.ProviderCallID)
	assert.Equal(t, res.CallResult.CallID, *res.CallLog.ProviderCallID)

	nums, err := e.registry.ListNumbers(ctx, e.poolID)
	require.NoError(t, err)
	assert.True(t, nums[0].IsCalled)
	assert.False(t, nums[1].IsCalled)

	logs, err := e.ledger.ListForUser(ctx, e.userID, &e.poolID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, calls.StatusInitiated, logs[0].Status)
	assert.Equal(t, "5551234", logs[0].PhoneNumber)
}

func TestDial_AdHocNumberWithoutPool(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(telephony.NewSimulatedProvider())

	res, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PhoneNumber: "5551234"})
	require.NoError(t, err)
	assert.Nil(t, res.CallLog.PoolID)

	nums, err := e.registry.ListNumbers(ctx, e.poolID)
	require.NoError(t, err)
	assert.False(t, nums[0].IsCalled, "ad-hoc dial must not touch pool numbers")
}

func TestDial_NumberNotInPoolStillLogs(t *testing.T) {
	e := newEnv(t)
	svc := e.service(telephony.NewSimulatedProvider())

	_, err := svc.Dial(context.Background(), DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "1112222"})
	require.NoError(t, err)
	assert.Equal(t, 1, e.logCount(t))
}

func TestDial_ValidationBeforeAnySideEffect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(failingProvider{err: errors.New("must not be called")})

	_, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := int64(404)
	_, err = svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &missing, PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, e.registry.DeletePool(ctx, e.poolID))
	_, err = svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, 0, e.logCount(t))
}

func TestDial_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(failingProvider{err: errors.New("carrier down")})

	_, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrProvider)
	assert.Equal(t, 0, e.logCount(t))

	nums, err := e.registry.ListNumbers(ctx, e.poolID)
	require.NoError(t, err)
	assert.False(t, nums[0].IsCalled)
}

func TestDial_ReplayedProviderCallIDLogsOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(fixedIDProvider{id: "CA-replay"})

	first, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
	require.NoError(t, err)
	second, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
	require.NoError(t, err)

	assert.Equal(t, first.CallLog.ID, second.CallLog.ID)
	assert.Equal(t, 1, e.logCount(t))
}

func TestDial_ConcurrentDialsBothSucceed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(telephony.NewSimulatedProvider())

	results := make([]DialResult, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		i := i
		g.Go(func() error {
			res, err := svc.Dial(gctx, DialRequest{UserID: e.userID, PoolID: &e.poolID, PhoneNumber: "5551234"})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.NotEqual(t, results[0].CallLog.ID, results[1].CallLog.ID)
	assert.NotEqual(t, results[0].CallResult.CallID, results[1].CallResult.CallID)
	assert.Equal(t, 2, e.logCount(t))

	nums, err := e.registry.ListNumbers(ctx, e.poolID)
	require.NoError(t, err)
	assert.True(t, nums[0].IsCalled)
}

func TestDial_LimiterCapsInFlight(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	lim := &countingLimiter{limit: 0}
	svc := e.service(telephony.NewSimulatedProvider(), WithLimiter(lim))
	_, err := svc.Dial(ctx, DialRequest{UserID: e.userID, PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
	assert.Equal(t, 0, e.logCount(t))

	lim.limit = 1
	_, err = svc.Dial(ctx, DialRequest{UserID: e.userID, PhoneNumber: "5551234"})
	require.NoError(t, err)
	assert.Equal(t, 0, lim.inFlight)
	assert.Equal(t, 1, lim.released)
}
