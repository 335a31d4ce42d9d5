package gridauth

import (
	"context"
	"time"

	"github.com/empower-grid/gridauth/challenge"
	"github.com/empower-grid/gridauth/internal/rate"
	"github.com/empower-grid/gridauth/jwt"
	"github.com/empower-grid/gridauth/session"
)

// Engine is the wallet authentication engine. Build one with [Builder] and
// treat it as immutable afterwards; all methods are safe for concurrent use.
type Engine struct {
	config      Config
	jwtManager  *jwt.Manager
	challenges  *challenge.Store
	sessions    *session.Store
	identities  IdentityProvider
	rateLimiter *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
}

// Close drains and stops the audit dispatcher. It does not close the Redis
// client, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks Redis availability and reports round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessions.Ping(ctx)
	if err != nil {
		return d, ErrStoreUnavailable
	}
	return d, nil
}
