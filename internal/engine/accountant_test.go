package engine

import (
	"testing"

	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
)

func TestComputeSnapshotBase(t *testing.T) {
	cfg := config.Defaults() // max 1000, divisor 2, leverage 10, fee 0.08%

	snap := ComputeSnapshot(cfg, SnapshotInput{TotalEquity: 2000, AvailableBalance: 1800})
	if snap.MaxAllowed != 1000 || snap.Clamped {
		t.Fatalf("MaxAllowed=%v Clamped=%v, want 1000/false", snap.MaxAllowed, snap.Clamped)
	}
	if snap.MaxAmount != 500 {
		t.Fatalf("MaxAmount=%v, want 500", snap.MaxAmount)
	}
	if snap.RemainingNotional != 5000 {
		t.Fatalf("RemainingNotional=%v, want 5000", snap.RemainingNotional)
	}
}

func TestComputeSnapshotClamp(t *testing.T) {
	cfg := config.Defaults()

	snap := ComputeSnapshot(cfg, SnapshotInput{TotalEquity: 600})
	if !snap.Clamped {
		t.Fatal("equity below max_allowed_used must clamp")
	}
	if snap.MaxAllowed != 600 || snap.MaxAmount != 300 {
		t.Fatalf("MaxAllowed=%v MaxAmount=%v, want 600/300", snap.MaxAllowed, snap.MaxAmount)
	}
}

func TestComputeSnapshotRemainingFloor(t *testing.T) {
	cfg := config.Defaults()

	snap := ComputeSnapshot(cfg, SnapshotInput{
		TotalEquity:     2000,
		PosNotional:     4000,
		PendingNotional: 1500,
	})
	if snap.UsedNotional != 5500 {
		t.Fatalf("UsedNotional=%v, want 5500", snap.UsedNotional)
	}
	if snap.RemainingNotional != 0 {
		t.Fatalf("RemainingNotional=%v, want 0 (never negative)", snap.RemainingNotional)
	}
}

func TestComputeSnapshotFees(t *testing.T) {
	cfg := config.Defaults()

	snap := ComputeSnapshot(cfg, SnapshotInput{TotalEquity: 5000, PosNotional: 10000, Upl: 20})
	if snap.SizeFee != 8 {
		t.Fatalf("SizeFee=%v, want 8 (10000*0.08%%)", snap.SizeFee)
	}
	if snap.RoundTripFee() != 16 {
		t.Fatalf("RoundTripFee=%v, want 16", snap.RoundTripFee())
	}
	if snap.NetProfit != 4 {
		t.Fatalf("NetProfit=%v, want 20-16=4", snap.NetProfit)
	}
}

func TestClampWarnsOncePerTransition(t *testing.T) {
	e, _, _, emit := newTestEngine(t)

	e.recomputeSnapshot(600, 600)
	e.recomputeSnapshot(600, 600)
	if n := emit.count(models.EventWarning); n != 1 {
		t.Fatalf("warnings=%d, want 1 per transition", n)
	}

	// Эквити восстановилось — зажим снят, следующий зажим снова предупреждает.
	e.recomputeSnapshot(2000, 2000)
	e.recomputeSnapshot(500, 500)
	if n := emit.count(models.EventWarning); n != 2 {
		t.Fatalf("warnings=%d, want 2 after re-clamp", n)
	}
}

func autoExitSnap(posNotional, upl float64) models.CapitalSnapshot {
	sizeFee := posNotional * 0.08 / 100
	return models.CapitalSnapshot{
		PosNotional:     posNotional,
		SizeFee:         sizeFee,
		Upl:             upl,
		NetProfit:       upl - sizeFee*2,
		ActivePositions: 1,
	}
}

func TestAutoExitCalProfitThreshold(t *testing.T) {
	cfg := config.Defaults()
	cfg.PnlAutoCal = true
	cfg.PnlAutoCalTimes = 4

	// Позиция 10000: комиссия туда-обратно 16, порог 64.
	snap := autoExitSnap(10000, 64+16) // net profit ровно 64
	d, ok := EvaluateAutoExit(cfg, snap, 0)
	if !ok || d.Rule != models.ExitCalProfit {
		t.Fatalf("net=64 threshold=64: got %v ok=%v", d.Rule, ok)
	}
	if d.Threshold != 64 {
		t.Fatalf("threshold=%v, want 64", d.Threshold)
	}

	snap = autoExitSnap(10000, 63.99+16) // net profit 63.99 — чуть ниже порога
	if _, ok := EvaluateAutoExit(cfg, snap, 0); ok {
		t.Fatal("net=63.99 must not trigger threshold 64")
	}
}

func TestAutoExitManualBeatsCal(t *testing.T) {
	cfg := config.Defaults()
	cfg.ManualProfitTarget = 50
	cfg.PnlAutoCal = true
	cfg.PnlAutoCalTimes = 4

	snap := autoExitSnap(10000, 100+16)
	d, ok := EvaluateAutoExit(cfg, snap, 0)
	if !ok || d.Rule != models.ExitManualProfit {
		t.Fatalf("manual target must win over cal profit, got %v", d.Rule)
	}
}

func TestAutoExitCalLoss(t *testing.T) {
	cfg := config.Defaults()
	cfg.PnlAutoCalLoss = true
	cfg.PnlAutoCalLossTimes = 4

	snap := autoExitSnap(10000, -64+16) // net = -64
	d, ok := EvaluateAutoExit(cfg, snap, 0)
	if !ok || d.Rule != models.ExitCalLoss {
		t.Fatalf("got %v ok=%v, want cal loss", d.Rule, ok)
	}

	snap = autoExitSnap(10000, -63+16)
	if _, ok := EvaluateAutoExit(cfg, snap, 0); ok {
		t.Fatal("net=-63 must not trigger threshold -64")
	}
}

func TestAutoExitSizeRules(t *testing.T) {
	cfg := config.Defaults()
	cfg.SizeProfit = true
	cfg.SizeProfitTimes = 2

	snap := autoExitSnap(10000, 40+16) // net 40 >= 2*16
	d, ok := EvaluateAutoExit(cfg, snap, 0)
	if !ok || d.Rule != models.ExitSizeProfit {
		t.Fatalf("got %v ok=%v, want size profit", d.Rule, ok)
	}

	cfg = config.Defaults()
	cfg.SizeLoss = true
	cfg.SizeLossTimes = 2
	snap = autoExitSnap(10000, -40+16)
	d, ok = EvaluateAutoExit(cfg, snap, 0)
	if !ok || d.Rule != models.ExitSizeLoss {
		t.Fatalf("got %v ok=%v, want size loss", d.Rule, ok)
	}
}

func TestAutoExitAboveZeroNeedsAdds(t *testing.T) {
	cfg := config.Defaults()
	cfg.AboveZero = true

	snap := autoExitSnap(10000, 16) // net ровно 0
	if _, ok := EvaluateAutoExit(cfg, snap, 0); ok {
		t.Fatal("above_zero without adds must not trigger")
	}
	d, ok := EvaluateAutoExit(cfg, snap, 1)
	if !ok || d.Rule != models.ExitAboveZero {
		t.Fatalf("got %v ok=%v, want above_zero after add", d.Rule, ok)
	}

	snap = autoExitSnap(10000, 15) // net -1
	if _, ok := EvaluateAutoExit(cfg, snap, 1); ok {
		t.Fatal("negative net must not trigger above_zero")
	}
}

func TestAutoExitAddPosTarget(t *testing.T) {
	cfg := config.Defaults()
	cfg.AddPosExitActive = true
	cfg.AddPosExitTimes = 2

	snap := autoExitSnap(10000, 33+16) // net 33 >= 2*16
	if _, ok := EvaluateAutoExit(cfg, snap, 0); ok {
		t.Fatal("add-pos target without adds must not trigger")
	}
	d, ok := EvaluateAutoExit(cfg, snap, 2)
	if !ok || d.Rule != models.ExitAddPosTarget {
		t.Fatalf("got %v ok=%v, want add-pos target", d.Rule, ok)
	}
}

func TestAutoExitNoPositions(t *testing.T) {
	cfg := config.Defaults()
	cfg.ManualProfitTarget = 1

	snap := autoExitSnap(10000, 1000)
	snap.ActivePositions = 0
	if _, ok := EvaluateAutoExit(cfg, snap, 0); ok {
		t.Fatal("no active positions, nothing to exit")
	}
}

func TestAutoAddFirstStep(t *testing.T) {
	cfg := config.Defaults()
	cfg.AutoAdd = true // first gap 1%, first size 50%

	in := AddInput{Side: models.Long, EntryPx: 3000, MarketPx: 2965, PosNotional: 1000}
	d, ok := EvaluateAutoAdd(cfg, in)
	if !ok {
		t.Fatal("market below -1% from entry must trigger first add")
	}
	if d.NotionalUSD != 500 || d.Step != 1 {
		t.Fatalf("notional=%v step=%d, want 500/1", d.NotionalUSD, d.Step)
	}

	in.MarketPx = 2975 // меньше процента
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("gap not reached, no add")
	}
}

func TestAutoAddNextStepFromLastAdd(t *testing.T) {
	cfg := config.Defaults()
	cfg.AutoAdd = true // next gap 2%, next size 100%

	in := AddInput{
		Side:        models.Long,
		EntryPx:     3000,
		LastAddPx:   2970,
		MarketPx:    2905, // 2970*0.98 = 2910.6, мы ниже
		PosNotional: 1500,
		Count:       1,
	}
	d, ok := EvaluateAutoAdd(cfg, in)
	if !ok {
		t.Fatal("second add must measure gap from last add price")
	}
	if d.NotionalUSD != 1500 || d.Step != 2 {
		t.Fatalf("notional=%v step=%d, want 1500/2", d.NotionalUSD, d.Step)
	}

	in.MarketPx = 2915 // выше порога второго шага
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("gap from last add not reached")
	}
}

func TestAutoAddShortDirection(t *testing.T) {
	cfg := config.Defaults()
	cfg.AutoAdd = true

	in := AddInput{Side: models.Short, EntryPx: 3000, MarketPx: 3035, PosNotional: 1000}
	if _, ok := EvaluateAutoAdd(cfg, in); !ok {
		t.Fatal("short add triggers when market rises against position")
	}
	in.MarketPx = 2990
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("market below entry is in favor of short, no add")
	}
}

func TestAutoAddBudget(t *testing.T) {
	cfg := config.Defaults()
	cfg.AutoAdd = true
	cfg.AddBudget = 600

	in := AddInput{Side: models.Long, EntryPx: 3000, MarketPx: 2965, PosNotional: 1000, BudgetUsed: 400}
	d, ok := EvaluateAutoAdd(cfg, in)
	if !ok || d.NotionalUSD != 200 {
		t.Fatalf("notional=%v ok=%v, want clamp to budget remainder 200", d.NotionalUSD, ok)
	}

	in.BudgetUsed = 600
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("budget exhausted, no add")
	}
}

func TestAutoAddFloorAndCount(t *testing.T) {
	cfg := config.Defaults()
	cfg.AutoAdd = true

	// 50% от позиции меньше минимального ордера.
	in := AddInput{Side: models.Long, EntryPx: 3000, MarketPx: 2965, PosNotional: 8}
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("add below min_order_amount must be skipped")
	}

	in.PosNotional = 1000
	in.Count = cfg.MaxAddCount
	if _, ok := EvaluateAutoAdd(cfg, in); ok {
		t.Fatal("max_add_count reached, no add")
	}
}
