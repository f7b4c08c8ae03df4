package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/proseai/idgen"
)

// Outcome values for RewriteEvent.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeProviderError   = "provider_error"
)

// RewriteEvent describes one finished rewrite. It has no field for the
// text itself.
type RewriteEvent struct {
	RequestID string
	Source    string // "api", "mcp", "cli", "pilot"
	Provider  string
	Tone      string
	TextLen   int
	Outcome   string
	Duration  time.Duration
}

// Recorder persists rewrite events and their duration metric.
type Recorder struct {
	db      *sql.DB
	metrics *MetricsManager
	newID   idgen.Generator
	logger  *slog.Logger
}

// NewRecorder creates a Recorder on a database prepared with Init. The
// caller owns db; Close only stops the metrics flush loop.
func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		db:      db,
		metrics: NewMetricsManager(db, 100, 5*time.Second, logger),
		newID:   idgen.Prefixed("evt_", idgen.Default),
		logger:  logger,
	}
}

// Metrics exposes the underlying timeseries manager.
func (r *Recorder) Metrics() *MetricsManager { return r.metrics }

// RecordRewrite stores ev. Errors are logged, never returned.
func (r *Recorder) RecordRewrite(ctx context.Context, ev RewriteEvent) {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rewrite_events (
			event_id, request_id, source, provider, tone, text_len, outcome, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		r.newID(), ev.RequestID, ev.Source, ev.Provider, ev.Tone, ev.TextLen, ev.Outcome,
		ev.Duration.Milliseconds(), now.UnixMilli())
	if err != nil {
		r.logger.Error("observability: record rewrite", "error", err, "request_id", ev.RequestID)
	}

	labels := map[string]string{"provider": ev.Provider, "tone": ev.Tone, "outcome": ev.Outcome}
	r.metrics.Record(&Metric{
		Name:      MetricRewriteDurationMs,
		Timestamp: now,
		Value:     float64(ev.Duration.Milliseconds()),
		Labels:    labels,
		Unit:      "milliseconds",
	})
	r.metrics.Record(&Metric{Name: MetricRewriteCount, Timestamp: now, Value: 1, Labels: labels, Unit: "count"})
}

// ProviderSummary aggregates rewrite events for one provider.
type ProviderSummary struct {
	Provider      string  `json:"provider"`
	Total         int64   `json:"total"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Summary aggregates events recorded since the given time (all if zero).
func (r *Recorder) Summary(ctx context.Context, since time.Time) ([]ProviderSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider,
		       COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome != ? THEN 1 ELSE 0 END),
		       AVG(duration_ms)
		FROM rewrite_events
		WHERE created_at >= ?
		GROUP BY provider
		ORDER BY provider`,
		OutcomeSuccess, OutcomeSuccess, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("observability: summary: %w", err)
	}
	defer rows.Close()

	var out []ProviderSummary
	for rows.Next() {
		var s ProviderSummary
		if err := rows.Scan(&s.Provider, &s.Total, &s.Succeeded, &s.Failed, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("observability: scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close flushes pending metrics.
func (r *Recorder) Close() error { return r.metrics.Close() }
