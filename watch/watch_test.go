package watch

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, rev INTEGER NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	return db
}

func bump(t *testing.T, db *sql.DB, rev int) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO kv (k, rev) VALUES ('tone', ?)
		ON CONFLICT(k) DO UPDATE SET rev = excluded.rev`, rev); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPragmaDataVersion(t *testing.T) {
	db := testDB(t)
	v, err := PragmaDataVersion(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0 {
		t.Fatalf("expected non-negative version, got %d", v)
	}
}

func TestMaxColumnDetector(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	det := MaxColumnDetector("kv", "rev")

	v, err := det(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("empty table: got %d, want 0", v)
	}

	bump(t, db, 7)
	if v, err = det(ctx, db); err != nil || v != 7 {
		t.Fatalf("got %d, %v; want 7", v, err)
	}
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	db := testDB(t)
	var reloads atomic.Int32
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: MaxColumnDetector("kv", "rev")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		reloads.Add(1)
		return nil
	})

	waitFor(t, func() bool { return w.Stats().Checks > 0 })
	bump(t, db, 1)
	waitFor(t, func() bool { return reloads.Load() == 1 })

	bump(t, db, 2)
	waitFor(t, func() bool { return reloads.Load() == 2 })

	time.Sleep(50 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("reloads without change: got %d, want 2", got)
	}
	if w.Version() != 2 {
		t.Fatalf("version = %d, want 2", w.Version())
	}
}

func TestOnChange_Debounce(t *testing.T) {
	db := testDB(t)
	var reloads atomic.Int32
	w := New(db, Options{
		Interval: 10 * time.Millisecond,
		Debounce: 150 * time.Millisecond,
		Detector: MaxColumnDetector("kv", "rev"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		reloads.Add(1)
		return nil
	})

	waitFor(t, func() bool { return w.Stats().Checks > 0 })
	for i := 1; i <= 5; i++ {
		bump(t, db, i)
		time.Sleep(15 * time.Millisecond)
	}
	if got := reloads.Load(); got != 0 {
		t.Fatalf("reloads during debounce window: got %d, want 0", got)
	}

	waitFor(t, func() bool { return reloads.Load() == 1 })
	time.Sleep(200 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("debounced reloads: got %d, want 1", got)
	}
}

func TestOnChange_ErrorRetriesNextPoll(t *testing.T) {
	db := testDB(t)
	var calls atomic.Int32
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: MaxColumnDetector("kv", "rev")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	waitFor(t, func() bool { return w.Stats().Checks > 0 })
	bump(t, db, 1)
	waitFor(t, func() bool { return w.Version() == 1 })

	if got := calls.Load(); got < 2 {
		t.Fatalf("calls = %d, want at least 2", got)
	}
	if w.Stats().Errors == 0 {
		t.Fatal("expected the failed reload to be counted")
	}
}
