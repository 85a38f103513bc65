package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

func newConn(daily, monthly, dailyLimit, monthlyLimit int) *models.Connection {
	return &models.Connection{
		ID:           "conn-1",
		DailySent:    daily,
		MonthlySent:  monthly,
		DailyLimit:   dailyLimit,
		MonthlyLimit: monthlyLimit,
	}
}

func TestAuthorize(t *testing.T) {
	limiter := NewLimiter(store.NewMemory())

	cases := []struct {
		name       string
		conn       *models.Connection
		wantOK     bool
		wantReason string
	}{
		{"under both limits", newConn(10, 100, 1000, 10000), true, ReasonOK},
		{"at daily limit", newConn(1000, 100, 1000, 10000), false, ReasonDailyLimit},
		{"at monthly limit", newConn(10, 10000, 1000, 10000), false, ReasonMonthlyLimit},
		{"daily wins when both hit", newConn(1000, 10000, 1000, 10000), false, ReasonDailyLimit},
		{"one message left", newConn(999, 9999, 1000, 10000), true, ReasonOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := limiter.Authorize(tc.conn)
			if ok != tc.wantOK || reason != tc.wantReason {
				t.Errorf("Authorize = (%v, %q), want (%v, %q)", ok, reason, tc.wantOK, tc.wantReason)
			}
		})
	}
}

func TestRecordSentIncrementsBothCounters(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveConnection(ctx, newConn(0, 0, 5, 10))
	limiter := NewLimiter(st)

	for i := 0; i < 3; i++ {
		if err := limiter.RecordSent(ctx, "conn-1"); err != nil {
			t.Fatalf("RecordSent #%d: %v", i+1, err)
		}
	}

	conn, err := st.GetConnection(ctx, "conn-1")
	if err != nil {
		t.Fatal(err)
	}
	if conn.DailySent != 3 || conn.MonthlySent != 3 {
		t.Errorf("counters = (%d, %d), want (3, 3)", conn.DailySent, conn.MonthlySent)
	}
}

func TestRecordSentAtCap(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveConnection(ctx, newConn(2, 0, 2, 10))
	limiter := NewLimiter(st)

	err := limiter.RecordSent(ctx, "conn-1")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("RecordSent err = %v, want ErrLimitExceeded", err)
	}
	conn, _ := st.GetConnection(ctx, "conn-1")
	if conn.DailySent != 2 || conn.MonthlySent != 0 {
		t.Errorf("counters changed on rejected send: (%d, %d)", conn.DailySent, conn.MonthlySent)
	}
}

func TestRecordSentUnknownConnection(t *testing.T) {
	limiter := NewLimiter(store.NewMemory())
	if err := limiter.RecordSent(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RecordSent err = %v, want ErrNotFound", err)
	}
}

// Concurrent senders racing for the last slots must never push the
// counters past the configured caps.
func TestRecordSentConcurrentNoOvershoot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveConnection(ctx, newConn(0, 0, 50, 1000))
	limiter := NewLimiter(st)

	const senders = 200
	var wg sync.WaitGroup
	var granted int64
	var mu sync.Mutex
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.RecordSent(ctx, "conn-1"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 50 {
		t.Errorf("granted = %d, want exactly 50", granted)
	}
	conn, _ := st.GetConnection(ctx, "conn-1")
	if conn.DailySent != 50 {
		t.Errorf("daily counter overshot: %d", conn.DailySent)
	}
	if conn.MonthlySent != 50 {
		t.Errorf("monthly counter overshot: %d", conn.MonthlySent)
	}
}

func TestResetCounters(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveConnection(ctx, newConn(7, 42, 1000, 10000))
	limiter := NewLimiter(st)

	if err := limiter.ResetDaily(ctx); err != nil {
		t.Fatal(err)
	}
	conn, _ := st.GetConnection(ctx, "conn-1")
	if conn.DailySent != 0 || conn.MonthlySent != 42 {
		t.Errorf("after daily reset: (%d, %d), want (0, 42)", conn.DailySent, conn.MonthlySent)
	}

	if err := limiter.ResetMonthly(ctx); err != nil {
		t.Fatal(err)
	}
	conn, _ = st.GetConnection(ctx, "conn-1")
	if conn.MonthlySent != 0 {
		t.Errorf("monthly counter not reset: %d", conn.MonthlySent)
	}
}
