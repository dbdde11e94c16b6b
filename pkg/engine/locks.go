package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gridbase/gridbase/pkg/errors"
)

// lockManager hands out one RWMutex per table. Schema mutations and
// row/cell writes take the write side; scans and projections take the read
// side. Acquisition waits a bounded time and then fails with a retryable
// conflict instead of queueing indefinitely. Locks for different tables
// never contend.
type lockManager struct {
	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
	wait  time.Duration
}

func newLockManager(wait time.Duration) *lockManager {
	return &lockManager{
		locks: make(map[int64]*sync.RWMutex),
		wait:  wait,
	}
}

func (m *lockManager) tableLock(tableID int64) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[tableID]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[tableID] = l
	}
	return l
}

// acquire takes the table's write lock, polling until the bounded wait
// elapses. The returned function releases the lock.
func (m *lockManager) acquire(ctx context.Context, tableID int64) (func(), error) {
	l := m.tableLock(tableID)
	if err := m.poll(ctx, tableID, l.TryLock); err != nil {
		return nil, err
	}
	return l.Unlock, nil
}

// acquireShared takes the table's read lock with the same bounded wait
func (m *lockManager) acquireShared(ctx context.Context, tableID int64) (func(), error) {
	l := m.tableLock(tableID)
	if err := m.poll(ctx, tableID, l.TryRLock); err != nil {
		return nil, err
	}
	return l.RUnlock, nil
}

func (m *lockManager) poll(ctx context.Context, tableID int64, try func() bool) error {
	if try() {
		return nil
	}

	deadline := time.NewTimer(m.wait)
	defer deadline.Stop()
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeConflict, "canceled while waiting for table")
		case <-deadline.C:
			return errors.Newf(errors.ErrorTypeConflict, "table %d is busy with another mutation", tableID)
		case <-tick.C:
			if try() {
				return nil
			}
		}
	}
}
