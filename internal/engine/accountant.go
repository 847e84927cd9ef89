package engine

import (
	"fmt"

	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
)

// SnapshotInput — сырьё для снапшота: цифры биржи без интерпретации.
type SnapshotInput struct {
	TotalEquity      float64
	AvailableBalance float64
	PosNotional      float64 // живые позиции
	PendingNotional  float64 // отложенные входы
	Upl              float64
	ActivePositions  int
	PendingCount     int
}

// ComputeSnapshot — чистый пересчёт капитала. Ничего не пишет и не логирует,
// факт зажима отдаёт флагом Clamped.
func ComputeSnapshot(cfg *config.Config, in SnapshotInput) models.CapitalSnapshot {
	maxAllowed := cfg.MaxAllowedUsed
	clamped := false
	if in.TotalEquity > 0 && maxAllowed > in.TotalEquity {
		maxAllowed = in.TotalEquity
		clamped = true
	}

	maxAmount := maxAllowed / cfg.RateDivisor
	used := in.PosNotional + in.PendingNotional

	remaining := maxAmount*cfg.Leverage - used
	if remaining < 0 {
		remaining = 0
	}

	sizeFee := in.PosNotional * cfg.TradeFeePct / 100

	return models.CapitalSnapshot{
		TotalEquity:       in.TotalEquity,
		AvailableBalance:  in.AvailableBalance,
		MaxAllowed:        maxAllowed,
		MaxAmount:         maxAmount,
		Clamped:           clamped,
		UsedNotional:      used,
		PosNotional:       in.PosNotional,
		RemainingNotional: remaining,
		SizeFee:           sizeFee,
		TradeFees:         (used + remaining) * cfg.TradeFeePct / 100,
		Upl:               in.Upl,
		NetProfit:         in.Upl - sizeFee*2,
		ActivePositions:   in.ActivePositions,
		PendingCount:      in.PendingCount,
	}
}

// EvaluateAutoExit — правила в фиксированном порядке, побеждает первое.
// Все пороги считаются от комиссии за вход+выход.
func EvaluateAutoExit(cfg *config.Config, snap models.CapitalSnapshot, addCount int) (models.ExitDecision, bool) {
	if snap.ActivePositions == 0 {
		return models.ExitDecision{}, false
	}
	fee := snap.RoundTripFee()
	np := snap.NetProfit

	if cfg.ManualProfitTarget > 0 && np >= cfg.ManualProfitTarget {
		return decision(models.ExitManualProfit, cfg.ManualProfitTarget, np), true
	}
	if cfg.PnlAutoCal && fee > 0 {
		th := cfg.PnlAutoCalTimes * fee
		if np >= th {
			return decision(models.ExitCalProfit, th, np), true
		}
	}
	if cfg.PnlAutoCalLoss && fee > 0 {
		th := cfg.PnlAutoCalLossTimes * fee
		if np <= -th {
			return decision(models.ExitCalLoss, -th, np), true
		}
	}
	if cfg.SizeProfit && fee > 0 {
		th := cfg.SizeProfitTimes * fee
		if np >= th {
			return decision(models.ExitSizeProfit, th, np), true
		}
	}
	if cfg.SizeLoss && fee > 0 {
		th := cfg.SizeLossTimes * fee
		if np <= -th {
			return decision(models.ExitSizeLoss, -th, np), true
		}
	}
	// Восстановление в безубыток: только после усреднений.
	if cfg.AboveZero && addCount > 0 && np >= 0 {
		return decision(models.ExitAboveZero, 0, np), true
	}
	if cfg.AddPosExitActive && addCount > 0 && fee > 0 {
		th := cfg.AddPosExitTimes * fee
		if np >= th {
			return decision(models.ExitAddPosTarget, th, np), true
		}
	}
	return models.ExitDecision{}, false
}

func decision(rule models.ExitRule, threshold, np float64) models.ExitDecision {
	return models.ExitDecision{
		Rule:      rule,
		Threshold: threshold,
		Reason:    fmt.Sprintf("%s: net_profit=%.4f threshold=%.4f", rule, np, threshold),
	}
}

// AddInput — состояние стороны для решения о доборе.
type AddInput struct {
	Side        models.Side
	EntryPx     float64
	LastAddPx   float64 // 0 — доборов ещё не было
	MarketPx    float64
	PosNotional float64
	Count       int
	BudgetUsed  float64
}

// EvaluateAutoAdd — усреднение по шагам против позиции.
// Первый добор меряется от входа, последующие — от цены прошлого добора.
func EvaluateAutoAdd(cfg *config.Config, in AddInput) (models.AddDecision, bool) {
	if !cfg.AutoAdd || in.Count >= cfg.MaxAddCount || in.MarketPx <= 0 || in.EntryPx <= 0 {
		return models.AddDecision{}, false
	}

	refPx := in.EntryPx
	gapPct := cfg.AddFirstGapPct
	sizePct := cfg.AddFirstSizePct
	if in.Count > 0 {
		refPx = in.LastAddPx
		gapPct = cfg.AddNextGapPct
		sizePct = cfg.AddNextSizePct
		if refPx <= 0 {
			refPx = in.EntryPx
		}
	}

	switch in.Side {
	case models.Long:
		if in.MarketPx > refPx*(1-gapPct/100) {
			return models.AddDecision{}, false
		}
	case models.Short:
		if in.MarketPx < refPx*(1+gapPct/100) {
			return models.AddDecision{}, false
		}
	}

	notional := in.PosNotional * sizePct / 100
	if cfg.AddBudget > 0 {
		left := cfg.AddBudget - in.BudgetUsed
		if left <= 0 {
			return models.AddDecision{}, false
		}
		if notional > left {
			notional = left
		}
	}
	if notional < cfg.MinOrderAmount {
		return models.AddDecision{}, false
	}

	return models.AddDecision{
		Side:        in.Side,
		NotionalUSD: notional,
		Step:        in.Count + 1,
		Reason: fmt.Sprintf("add %s step %d: px=%.4f ref=%.4f gap=%.2f%%",
			in.Side, in.Count+1, in.MarketPx, refPx, gapPct),
	}, true
}
