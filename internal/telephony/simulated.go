package telephony

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Hons90/CRM/pkg/logger"
)

// SimulatedProvider accepts every call without contacting a carrier.
// It is the default for local runs and tests.
type SimulatedProvider struct {
	seq atomic.Int64
	now func() time.Time
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{now: time.Now}
}

func (p *SimulatedProvider) Name() string { return "simulated" }

func (p *SimulatedProvider) HealthCheck(ctx context.Context) error { return ctx.Err() }

// Dial returns ids shaped call_<unix-ms>-<seq>; seq keeps concurrent dials distinct.
func (p *SimulatedProvider) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if err := ctx.Err(); err != nil {
		return DialResult{}, err
	}
	id := fmt.Sprintf("call_%d-%d", p.now().UnixMilli(), p.seq.Add(1))
	logger.From(ctx).Info("simulated dial", "phone_number", req.PhoneNumber, "user_id", req.UserID, "call_id", id)
	return DialResult{
		Success: true,
		CallID:  id,
		Message: "Call initiated (simulated)",
	}, nil
}
