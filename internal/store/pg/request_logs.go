package pg

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type requestLogRepo struct{ db DB }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *requestLogRepo) Insert(ctx context.Context, l *repository.APIRequestLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO api_request_logs (id, client_id, tenant_id, method, endpoint, ip, user_agent,
			status, duration_ms, rate_limit_hit, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, q, l.ID, nullIfEmpty(l.ClientID), nullIfEmpty(l.TenantID), l.Method, l.Endpoint,
		l.IP, l.UserAgent, l.Status, l.DurationMs, l.RateLimitHit, nullIfEmpty(l.ErrorMessage), l.CreatedAt)
	return err
}

func (r *requestLogRepo) StatsForClient(ctx context.Context, clientID string, since time.Time) (*repository.ClientStats, error) {
	const q = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status < 400),
		       COUNT(*) FILTER (WHERE status >= 400),
		       COUNT(*) FILTER (WHERE rate_limit_hit),
		       COALESCE(AVG(duration_ms), 0)::float8
		FROM api_request_logs
		WHERE client_id = $1 AND created_at >= $2`
	var s repository.ClientStats
	err := r.db.QueryRow(ctx, q, clientID, since).Scan(
		&s.TotalRequests, &s.SuccessRequests, &s.ErrorRequests, &s.RateLimitedCount, &s.AvgResponseTimeMs)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
