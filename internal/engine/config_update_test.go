package engine

import (
	"testing"

	"swap_bot/internal/modules/config"
)

func TestApplyLiveConfigUpdate(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	next := config.Defaults()
	next.TpOffset = 15
	next.Leverage = 25 // требует рестарта
	next.Symbol = "BTC-USDT-SWAP"

	res := e.ApplyLiveConfigUpdate(next)
	if !res.Success {
		t.Fatalf("update rejected: %v", res.Warnings)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings=%v, want leverage and symbol", res.Warnings)
	}

	cfg := e.config()
	if cfg.TpOffset != 15 {
		t.Errorf("tp_offset=%v, live field must apply", cfg.TpOffset)
	}
	if cfg.Leverage != 10 || cfg.Symbol != "ETH-USDT-SWAP" {
		t.Errorf("leverage=%v symbol=%s, restart fields must keep old values", cfg.Leverage, cfg.Symbol)
	}
}

func TestApplyLiveConfigUpdateRejectsInvalid(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	before := e.config().LoopTime

	next := config.Defaults()
	next.LoopTime = 0

	res := e.ApplyLiveConfigUpdate(next)
	if res.Success {
		t.Fatal("invalid config must be rejected")
	}
	if e.config().LoopTime != before {
		t.Fatal("rejected update must not touch the running config")
	}
}

func TestApplyLiveConfigUpdateNoChanges(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	res := e.ApplyLiveConfigUpdate(config.Defaults())
	if !res.Success || len(res.Warnings) != 0 {
		t.Fatalf("no-op update: %+v", res)
	}
}
