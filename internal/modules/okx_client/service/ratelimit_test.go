package service

import (
	"context"
	"testing"
	"time"
)

func TestCategory(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/v5/account/balance", catAccount},
		{"/api/v5/trade/order", catTrade},
		{"/api/v5/market/ticker", catMarket},
		{"/api/v5/public/instruments", catPublic},
		{"/api/v5/system/status", catDefault},
	}
	for _, c := range cases {
		if got := Category(c.path); got != c.want {
			t.Errorf("Category(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestTryAcquireBurst(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	// Ёмкость trade — 6 токенов.
	for i := 0; i < 6; i++ {
		if !r.TryAcquire("/api/v5/trade/order") {
			t.Fatalf("acquire %d failed within burst capacity", i)
		}
	}
	if r.TryAcquire("/api/v5/trade/order") {
		t.Fatal("acquire succeeded beyond burst capacity")
	}

	// Другая категория не задета.
	if !r.TryAcquire("/api/v5/market/ticker") {
		t.Fatal("market bucket drained by trade requests")
	}
}

func TestTryAcquireRefill(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		r.TryAcquire("/api/v5/account/balance")
	}
	if r.TryAcquire("/api/v5/account/balance") {
		t.Fatal("bucket should be empty")
	}

	// 3 токена в секунду: через секунду должно хватить на три запроса.
	now = now.Add(time.Second)
	for i := 0; i < 3; i++ {
		if !r.TryAcquire("/api/v5/account/balance") {
			t.Fatalf("acquire %d failed after refill", i)
		}
	}
	if r.TryAcquire("/api/v5/account/balance") {
		t.Fatal("refill gave more tokens than rate allows")
	}
}

func TestAcquireWaitsForToken(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	var slept time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	}

	for i := 0; i < 6; i++ {
		r.TryAcquire("/api/v5/trade/order")
	}
	if err := r.Acquire(context.Background(), "/api/v5/trade/order"); err != nil {
		t.Fatal(err)
	}
	if slept == 0 {
		t.Fatal("Acquire did not wait on empty bucket")
	}
	// Один токен при 3 т/с — ждать порядка трети секунды.
	if slept > time.Second {
		t.Fatalf("waited %s for one token at 3 tokens/sec", slept)
	}
}

func TestAcquireFractionalTokenTerminates(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	var sleeps []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		now = now.Add(d)
		return nil
	}

	// Почти целый токен: расчётное ожидание усекается до нуля наносекунд,
	// сон обязан оставаться положительным, иначе часы не двигаются.
	b := r.buckets[catTrade]
	b.tokens = 1 - 1e-9
	b.last = now

	if err := r.Acquire(context.Background(), "/api/v5/trade/order"); err != nil {
		t.Fatal(err)
	}
	if len(sleeps) == 0 {
		t.Fatal("Acquire did not wait at all")
	}
	for _, d := range sleeps {
		if d <= 0 {
			t.Fatalf("zero-duration sleep %s, busy-spin", d)
		}
	}
}

func TestAcquireSleepCapped(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	var sleeps []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		now = now.Add(d)
		return nil
	}

	b := r.buckets[catTrade]
	b.tokens = -5 // глубокий долг: полное ожидание двух секунд

	if err := r.Acquire(context.Background(), "/api/v5/trade/order"); err != nil {
		t.Fatal(err)
	}
	for _, d := range sleeps {
		if d > maxSleepPerWait {
			t.Fatalf("single sleep %s exceeds cap %s", d, maxSleepPerWait)
		}
	}
	if len(sleeps) < 2 {
		t.Fatalf("expected several capped sleeps, got %v", sleeps)
	}
}

func TestAcquireContextCanceled(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }
	r.sleep = sleepCtx

	for i := 0; i < 6; i++ {
		r.TryAcquire("/api/v5/trade/order")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Acquire(ctx, "/api/v5/trade/order"); err == nil {
		t.Fatal("Acquire ignored canceled context")
	}
}
