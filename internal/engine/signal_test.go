package engine

import (
	"context"
	"testing"
	"time"

	"swap_bot/internal/models"
)

func TestBatchEntryPrice(t *testing.T) {
	cases := []struct {
		side models.Side
		i    int
		want float64
	}{
		{models.Long, 0, 2978},  // 2980 - 2
		{models.Long, 1, 2973},  // 2980 - (2 + 5)
		{models.Long, 2, 2968},  // 2980 - (2 + 10)
		{models.Short, 0, 2982}, // 2980 + 2
		{models.Short, 1, 2987},
	}
	for _, c := range cases {
		if got := BatchEntryPrice(c.side, 2980, 2, 5, c.i); got != c.want {
			t.Errorf("BatchEntryPrice(%s, i=%d) = %v, want %v", c.side, c.i, got, c.want)
		}
	}
}

func TestSafetyLinePass(t *testing.T) {
	cases := []struct {
		name            string
		side            models.Side
		px, long, short float64
		want            bool
	}{
		{"long below line", models.Long, 2900, 3000, 0, true},
		{"long above line", models.Long, 3100, 3000, 0, false},
		{"long line off", models.Long, 9999, 0, 0, true},
		{"short above line", models.Short, 3100, 0, 3000, true},
		{"short below line", models.Short, 2900, 0, 3000, false},
		{"short line off", models.Short, 1, 0, 0, true},
	}
	for _, c := range cases {
		if got := safetyLinePass(c.side, c.px, c.long, c.short); got != c.want {
			t.Errorf("%s: safetyLinePass = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCandleFilter(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	if !e.candleFilterPass("none", 100) {
		t.Fatal("condition none must always pass")
	}

	// Свечи ещё нет.
	if e.candleFilterPass("open_close", 1) {
		t.Fatal("no candle yet, filter must hold entries")
	}

	e.candleMu.Lock()
	e.lastCandle = models.Candle{
		Ts:      time.Now(),
		Open:    2980,
		High:    2995,
		Low:     2975,
		Close:   2990,
		Confirm: true,
	}
	e.candleMu.Unlock()

	cases := []struct {
		condition string
		minRange  float64
		want      bool
	}{
		{"open_close", 10, true}, // |2990-2980| = 10
		{"open_close", 11, false},
		{"high_low", 20, true}, // 2995-2975 = 20
		{"high_low", 21, false},
		{"high_close", 5, true}, // |2995-2990| = 5
		{"high_close", 6, false},
	}
	for _, c := range cases {
		if got := e.candleFilterPass(c.condition, c.minRange); got != c.want {
			t.Errorf("%s min=%v: got %v, want %v", c.condition, c.minRange, got, c.want)
		}
	}

	// Неподтверждённая свеча не считается.
	e.candleMu.Lock()
	e.lastCandle.Confirm = false
	e.candleMu.Unlock()
	if e.candleFilterPass("open_close", 1) {
		t.Fatal("unconfirmed candle must not pass the filter")
	}
}

func setRemaining(e *Engine, remaining float64) {
	e.acctMu.Lock()
	e.snap = models.CapitalSnapshot{RemainingNotional: remaining}
	e.acctMu.Unlock()
}

func TestEvaluateEntrySignalsBothSides(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	setRemaining(e, 1000)

	signals := e.evaluateEntrySignals(2980)
	if len(signals) != 2 {
		t.Fatalf("signals=%d, want both sides", len(signals))
	}
	for _, s := range signals {
		if s.MarketPx != 2980 {
			t.Errorf("signal %s carries px %v", s.Side, s.MarketPx)
		}
	}
}

func TestEvaluateEntrySignalsCapacityGate(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	setRemaining(e, e.cfg.MinOrderAmount-1)

	if signals := e.evaluateEntrySignals(2980); signals != nil {
		t.Fatalf("no capacity, got %d signals", len(signals))
	}
}

func TestEvaluateEntrySignalsDirection(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	setRemaining(e, 1000)
	e.cfg.Direction = "short"

	signals := e.evaluateEntrySignals(2980)
	if len(signals) != 1 || signals[0].Side != models.Short {
		t.Fatalf("signals=%+v, want single short", signals)
	}
}

func TestEvaluateEntrySignalsSideBusy(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	setRemaining(e, 1000)

	// Long занят отложенным входом, short — позицией.
	e.posMu.Lock()
	e.pending["x"] = &models.PendingEntry{OrderID: "x", Signal: 1, LimitPrice: 2978}
	e.sides[models.Short].pos.InPosition = true
	e.posMu.Unlock()

	if signals := e.evaluateEntrySignals(2980); signals != nil {
		t.Fatalf("both sides busy, got %d signals", len(signals))
	}
}

func TestEvaluateEntrySignalsSafetyLines(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	setRemaining(e, 1000)
	e.cfg.LongSafetyLinePrice = 2900  // long только ниже 2900
	e.cfg.ShortSafetyLinePrice = 3100 // short только выше 3100

	if signals := e.evaluateEntrySignals(3000); signals != nil {
		t.Fatalf("price between the lines, got %d signals", len(signals))
	}

	signals := e.evaluateEntrySignals(2800)
	if len(signals) != 1 || signals[0].Side != models.Long {
		t.Fatalf("below long line: %+v", signals)
	}

	signals = e.evaluateEntrySignals(3200)
	if len(signals) != 1 || signals[0].Side != models.Short {
		t.Fatalf("above short line: %+v", signals)
	}
}

func TestRefreshCandlesKeepsNewestConfirmed(t *testing.T) {
	e, api, _, _ := newTestEngine(t)
	e.cfg.CandleCondition = "open_close"

	older := time.Now().Add(-2 * time.Minute)
	newer := time.Now().Add(-time.Minute)
	api.candles = []models.Candle{
		{Ts: newer.Add(time.Minute), Confirm: false}, // текущая, не закрыта
		{Ts: newer, Open: 1, Close: 2, Confirm: true},
		{Ts: older, Open: 3, Close: 4, Confirm: true},
	}

	e.refreshCandles(context.Background())

	e.candleMu.Lock()
	got := e.lastCandle
	e.candleMu.Unlock()
	if !got.Ts.Equal(newer) || !got.Confirm {
		t.Fatalf("lastCandle=%+v, want newest confirmed", got)
	}
}
