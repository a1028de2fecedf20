package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLedger_MarkAndSeen(t *testing.T) {
	ledger := NewMemoryLedger(time.Minute)
	defer ledger.Close()
	ctx := context.Background()

	tests := []struct {
		name     string
		key      string
		mark     bool
		ttl      time.Duration
		wantSeen bool
	}{
		{
			name:     "marked key is seen",
			key:      "wherex|LIC-1|A1",
			mark:     true,
			ttl:      time.Hour,
			wantSeen: true,
		},
		{
			name:     "unknown key is not seen",
			key:      "wherex|LIC-1|B2",
			mark:     false,
			wantSeen: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mark {
				if err := ledger.Mark(ctx, tt.key, tt.ttl); err != nil {
					t.Fatalf("Mark() error = %v", err)
				}
			}

			seen, err := ledger.Seen(ctx, tt.key)
			if err != nil {
				t.Fatalf("Seen() error = %v", err)
			}
			if seen != tt.wantSeen {
				t.Errorf("Seen() = %v, want %v", seen, tt.wantSeen)
			}
		})
	}
}

func TestMemoryLedger_Expiration(t *testing.T) {
	ledger := NewMemoryLedger(time.Minute)
	defer ledger.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	if err := ledger.Mark(ctx, "mp|1|A1", time.Hour); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}

	now = now.Add(59 * time.Minute)
	if seen, _ := ledger.Seen(ctx, "mp|1|A1"); !seen {
		t.Error("expected mark to be seen before expiration")
	}

	now = now.Add(2 * time.Minute)
	if seen, _ := ledger.Seen(ctx, "mp|1|A1"); seen {
		t.Error("expected mark to expire")
	}

	if ledger.Size() != 1 {
		t.Errorf("Size() = %d before purge, want 1", ledger.Size())
	}
	ledger.purge()
	if ledger.Size() != 0 {
		t.Errorf("Size() = %d after purge, want 0", ledger.Size())
	}
}

func TestMemoryLedger_CloseIsIdempotent(t *testing.T) {
	ledger := NewMemoryLedger(time.Millisecond)
	if err := ledger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestMemoryLedger_Concurrency(t *testing.T) {
	ledger := NewMemoryLedger(time.Millisecond)
	defer ledger.Close()
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			key := string(rune('a' + n))
			_ = ledger.Mark(ctx, key, time.Minute)
			_, _ = ledger.Seen(ctx, key)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if ledger.Size() != 10 {
		t.Errorf("Size() = %d, want 10", ledger.Size())
	}
}
