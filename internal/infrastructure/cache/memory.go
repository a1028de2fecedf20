// Package cache holds the submission ledgers used to skip offers already sent.
package cache

import (
	"context"
	"sync"
	"time"
)

// ledgerEntry records when an offer was marked and when the mark expires
type ledgerEntry struct {
	MarkedAt   time.Time
	Expiration time.Time
}

// MemoryLedger is a thread-safe in-memory submission ledger with TTL support.
// Marks are lost on restart.
type MemoryLedger struct {
	data  map[string]ledgerEntry
	mutex sync.RWMutex
	now   func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryLedger creates a ledger whose janitor purges expired marks every interval
func NewMemoryLedger(cleanupInterval time.Duration) *MemoryLedger {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	ledger := &MemoryLedger{
		data: make(map[string]ledgerEntry),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go ledger.cleanupExpired(cleanupInterval)

	return ledger
}

// Seen reports whether key was marked and has not expired
func (l *MemoryLedger) Seen(ctx context.Context, key string) (bool, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	entry, exists := l.data[key]
	if !exists {
		return false, nil
	}

	// Check if expired
	if l.now().After(entry.Expiration) {
		return false, nil
	}

	return true, nil
}

// Mark records key for ttl
func (l *MemoryLedger) Mark(ctx context.Context, key string, ttl time.Duration) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	l.data[key] = ledgerEntry{
		MarkedAt:   now,
		Expiration: now.Add(ttl),
	}
	return nil
}

// Close stops the janitor goroutine
func (l *MemoryLedger) Close() error {
	l.closeOnce.Do(func() { close(l.stop) })
	return nil
}

// cleanupExpired removes expired entries from the ledger periodically
func (l *MemoryLedger) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.purge()
		}
	}
}

func (l *MemoryLedger) purge() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	for key, entry := range l.data {
		if now.After(entry.Expiration) {
			delete(l.data, key)
		}
	}
}

// Size returns the current number of marks, expired ones included until purged
func (l *MemoryLedger) Size() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.data)
}
