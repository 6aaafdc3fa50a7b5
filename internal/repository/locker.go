package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
)

// Locker serialises commands per (customer, currency) using session-level
// Postgres advisory locks held on a dedicated connection.
//
// A locked command still needs a second pooled connection for its reads and
// transactions, so at most half of a bounded pool may be pinned by lock
// sessions at once. Callers past that bound wait before taking a connection.
type Locker struct {
	db       *sql.DB
	sessions *semaphore.Weighted
}

// NewLocker sizes the session bound from the pool limit, so it must be called
// after SetMaxOpenConns. An unbounded pool needs no bound.
func NewLocker(db *sql.DB) *Locker {
	l := &Locker{db: db}
	if limit := db.Stats().MaxOpenConnections; limit > 0 {
		l.sessions = semaphore.NewWeighted(int64(LockSessions(limit)))
	}
	return l
}

// LockSessions is how many lock sessions a pool of maxOpen connections can
// carry while leaving each of them a connection to work on.
func LockSessions(maxOpen int) int {
	return max(1, maxOpen/2)
}

func LockKey(customer string, currency domain.Currency) string {
	return customer + "/" + string(currency)
}

// Lock acquires every key in sorted order so that overlapping commands cannot
// deadlock. The returned release func must be called exactly once.
func (l *Locker) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	if l.sessions != nil {
		if err := l.sessions.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("Lock: waiting for a lock session: %w", err)
		}
	}
	releaseSession := func() {
		if l.sessions != nil {
			l.sessions.Release(1)
		}
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		releaseSession()
		return nil, fmt.Errorf("Lock: conn: %w", err)
	}

	held := make([]string, 0, len(sorted))
	release := func() {
		defer releaseSession()
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var unlockErr error
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock(hashtext($1))`, held[i]); err != nil {
				unlockErr = err
				break
			}
		}
		if unlockErr != nil {
			slog.Error("advisory unlock failed, discarding session", "error", unlockErr, "keys", held)
			discard(conn)
			return
		}
		conn.Close()
	}

	for _, k := range sorted {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, k); err != nil {
			release()
			return nil, fmt.Errorf("Lock %s: %w", k, err)
		}
		held = append(held, k)
	}
	return release, nil
}

// discard drops conn from the pool so a session that may still hold advisory
// locks is closed rather than reused. Closing the session releases its locks
// server side.
func discard(conn *sql.Conn) {
	conn.Raw(func(any) error { return driver.ErrBadConn })
	conn.Close()
}
