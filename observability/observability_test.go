package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInit_CreatesTables(t *testing.T) {
	db := setupObsDB(t)
	for _, table := range []string{"metrics_timeseries", "rewrite_events"} {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
}

func TestMetricsManager_RecordAndQuery(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour, nil)
	defer mm.Close()
	ctx := context.Background()

	mm.Record(&Metric{
		Name:      MetricRewriteDurationMs,
		Timestamp: time.Now(),
		Value:     420,
		Unit:      "milliseconds",
		Labels:    map[string]string{"provider": "gemini"},
	})
	mm.Record(&Metric{Name: MetricRewriteCount, Timestamp: time.Now(), Value: 1, Unit: "count"})
	mm.Flush()

	got, err := mm.Query(ctx, MetricRewriteDurationMs, time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("duration metrics: got %d, want 1", len(got))
	}
	if got[0].Value != 420 || got[0].Labels["provider"] != "gemini" {
		t.Fatalf("metric = %+v", got[0])
	}

	all, err := mm.Query(ctx, "", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all metrics: got %d, want 2", len(all))
	}
}

func TestMetricsManager_QuerySince(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour, nil)
	defer mm.Close()

	now := time.Now()
	mm.Record(&Metric{Name: "m", Timestamp: now.Add(-2 * time.Hour), Value: 1})
	mm.Record(&Metric{Name: "m", Timestamp: now, Value: 2})
	mm.Flush()

	got, err := mm.Query(context.Background(), "m", now.Add(-time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != 2 {
		t.Fatalf("since filter: got %+v", got)
	}
}

func TestMetricsManager_BufferFullFlushes(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 2, time.Hour, nil)
	defer mm.Close()

	mm.Record(&Metric{Name: "m", Timestamp: time.Now(), Value: 1})
	mm.Record(&Metric{Name: "m", Timestamp: time.Now(), Value: 2})

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM metrics_timeseries").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("rows after full buffer: got %d, want 2", n)
	}
}

func TestMetricsManager_Cleanup(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour, nil)
	defer mm.Close()

	mm.Record(&Metric{Name: "old", Timestamp: time.Now().Add(-40 * 24 * time.Hour), Value: 1})
	mm.Record(&Metric{Name: "new", Timestamp: time.Now(), Value: 2})
	mm.Flush()

	n, err := mm.Cleanup(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted: got %d, want 1", n)
	}
}

func TestMetricsManager_CloseIdempotent(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 10, time.Hour, nil)
	mm.Record(&Metric{Name: "m", Timestamp: time.Now(), Value: 1})
	mm.Close()
	mm.Close()

	var n int
	db.QueryRow("SELECT COUNT(*) FROM metrics_timeseries").Scan(&n)
	if n != 1 {
		t.Fatalf("Close should flush: got %d rows", n)
	}
}

func TestRecorder_SummaryByProvider(t *testing.T) {
	db := setupObsDB(t)
	r := NewRecorder(db, nil)
	defer r.Close()
	ctx := context.Background()

	r.RecordRewrite(ctx, RewriteEvent{RequestID: "rw_1", Source: "api", Provider: "gemini", Tone: "casual", TextLen: 12, Outcome: OutcomeSuccess, Duration: 100 * time.Millisecond})
	r.RecordRewrite(ctx, RewriteEvent{RequestID: "rw_2", Source: "api", Provider: "gemini", Tone: "casual", TextLen: 12, Outcome: OutcomeProviderError, Duration: 300 * time.Millisecond})
	r.RecordRewrite(ctx, RewriteEvent{RequestID: "rw_3", Source: "pilot", Provider: "openai", Tone: "polite", TextLen: 40, Outcome: OutcomeSuccess, Duration: 50 * time.Millisecond})

	sum, err := r.Summary(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum) != 2 {
		t.Fatalf("providers: got %d, want 2", len(sum))
	}
	g := sum[0]
	if g.Provider != "gemini" || g.Total != 2 || g.Succeeded != 1 || g.Failed != 1 || g.AvgDurationMs != 200 {
		t.Fatalf("gemini summary = %+v", g)
	}
	if sum[1].Provider != "openai" || sum[1].Succeeded != 1 {
		t.Fatalf("openai summary = %+v", sum[1])
	}

	r.Metrics().Flush()
	ms, err := r.Metrics().Query(ctx, MetricRewriteDurationMs, time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 3 {
		t.Fatalf("duration metrics: got %d, want 3", len(ms))
	}
}
