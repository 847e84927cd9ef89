package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Категории лимитов OKX. Подбор по подстроке пути.
const (
	catAccount = "account"
	catTrade   = "trade"
	catMarket  = "market"
	catPublic  = "public"
	catDefault = "default"
)

const (
	maxSleepPerWait = 500 * time.Millisecond
	minSleepPerWait = time.Millisecond
)

// bucket — токен-бакет одной категории. Ленивое пополнение по monotonic-часам.
type bucket struct {
	mu     sync.Mutex
	rate   float64 // токенов в секунду
	cap    float64
	tokens float64
	last   time.Time
}

func (b *bucket) refillLocked(now time.Time) {
	if b.last.IsZero() {
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.cap {
		b.tokens = b.cap
	}
	b.last = now
}

// RateLimiter — независимые бакеты по категориям эндпоинтов.
type RateLimiter struct {
	buckets map[string]*bucket
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter() *RateLimiter {
	mk := func(rate, capacity float64) *bucket {
		return &bucket{rate: rate, cap: capacity, tokens: capacity}
	}
	return &RateLimiter{
		buckets: map[string]*bucket{
			catAccount: mk(3, 6),
			catTrade:   mk(3, 6),
			catMarket:  mk(10, 20),
			catPublic:  mk(10, 20),
			catDefault: mk(5, 10),
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
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

// Category — категория по пути запроса.
func Category(path string) string {
	switch {
	case strings.Contains(path, "/account/"):
		return catAccount
	case strings.Contains(path, "/trade/"):
		return catTrade
	case strings.Contains(path, "/market/"):
		return catMarket
	case strings.Contains(path, "/public/"):
		return catPublic
	}
	return catDefault
}

// Acquire — блокирует до получения токена. Спим не дольше 500мс за итерацию,
// чтобы при обновлении бакета другим запросом пересчитать ожидание.
func (r *RateLimiter) Acquire(ctx context.Context, path string) error {
	b := r.buckets[Category(path)]
	for {
		b.mu.Lock()
		b.refillLocked(r.now())
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		if wait > maxSleepPerWait {
			wait = maxSleepPerWait
		}
		// Деление усекается вниз: при почти целом токене вышел бы нулевой
		// сон и горячий цикл.
		if wait < minSleepPerWait {
			wait = minSleepPerWait
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire — без ожидания. Для тестов и быстрых проверок.
func (r *RateLimiter) TryAcquire(path string) bool {
	b := r.buckets[Category(path)]
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(r.now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
