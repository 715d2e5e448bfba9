package security

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds persisted to security_events.
const (
	EventRateLimit  = "rate_limit"
	EventSuspicious = "suspicious"
)

// Event is one recorded enforcement incident.
type Event struct {
	ID         uuid.UUID
	Kind       string
	UserID     int64
	TenantID   string
	IP         string
	UserAgent  string
	Endpoint   string
	Method     string
	Reasons    []string
	OccurredAt time.Time
}

// Recorder persists security events. Failures are reported to the caller,
// which logs them; recording never blocks a request from proceeding.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a Recorder over the given pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record inserts one event.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if r == nil || r.pool == nil {
		return errors.New("security: recorder not initialised")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	reasons, err := json.Marshal(e.Reasons)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO security_events (id, kind, user_id, tenant_id, ip, user_agent, endpoint, method, reasons, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Kind, e.UserID, e.TenantID, e.IP, e.UserAgent, e.Endpoint, e.Method, reasons, e.OccurredAt)
	return err
}

// RecentCount counts events recorded since the given instant. Feeds the
// active-alert statistic.
func (r *Recorder) RecentCount(ctx context.Context, since time.Time) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("security: recorder not initialised")
	}
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM security_events WHERE occurred_at >= $1`, since).Scan(&count)
	return count, err
}

// Purge deletes events older than the retention horizon and returns the
// number removed.
func (r *Recorder) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("security: recorder not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM security_events WHERE occurred_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
