package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Retry is the backoff policy of RunTxRetry. Attempt n (from 1) waits
// n*Backoff before retrying.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry covers the short write locks taken by `proseai settings set`
// while a pilot polls the same file: 3 attempts, 100/200 ms apart.
var DefaultRetry = Retry{Attempts: 3, Backoff: 100 * time.Millisecond}

// IsBusy reports whether err is SQLite BUSY or LOCKED, either as a driver
// error code or in the message of an error that lost its type.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn in a transaction with DefaultRetry.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return RunTxRetry(ctx, db, DefaultRetry, fn)
}

// RunTxRetry runs fn in a transaction and retries the whole transaction
// while SQLite reports BUSY. fn must be safe to run more than once. Other
// errors, and the last busy error, are returned as is.
func RunTxRetry(ctx context.Context, db *sql.DB, r Retry, fn func(*sql.Tx) error) error {
	if r.Attempts < 1 {
		r.Attempts = 1
	}
	var err error
	for i := 1; i <= r.Attempts; i++ {
		if err = runOnce(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if i == r.Attempts {
			break
		}
		if werr := sleepCtx(ctx, time.Duration(i)*r.Backoff); werr != nil {
			return fmt.Errorf("dbopen: retry cancelled: %w", werr)
		}
	}
	return fmt.Errorf("dbopen: busy after %d attempts: %w", r.Attempts, err)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
