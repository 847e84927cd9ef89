package config

import "fmt"

// Change — одно изменённое поле при живом обновлении конфига.
type Change struct {
	Field string
	Old   any
	New   any
	// RequiresRestart — поле нельзя применить на лету, движок добавит warning.
	RequiresRestart bool
}

// UpdateResult — итог apply_live_config_update.
type UpdateResult struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings"`
}

// Diff — изменённые поля между старым и новым конфигом. Только торговая
// поверхность: инфраструктурные поля (db, jaeger, telegram) на лету не трогаем.
func Diff(old, new *Config) []Change {
	var out []Change

	add := func(field string, o, n any, restart bool) {
		if o != n {
			out = append(out, Change{Field: field, Old: o, New: n, RequiresRestart: restart})
		}
	}

	// Требуют перезапуска: меняют личность сессии или инструмента.
	add("symbol", old.Symbol, new.Symbol, true)
	add("demo_mode", old.DemoMode, new.DemoMode, true)
	add("position_mode", old.PositionMode, new.PositionMode, true)
	add("margin_mode", old.MarginMode, new.MarginMode, true)
	add("use_dev_keys", old.UseDevKeys, new.UseDevKeys, true)
	add("leverage", old.Leverage, new.Leverage, true)

	add("direction", old.Direction, new.Direction, false)
	add("max_allowed_used", old.MaxAllowedUsed, new.MaxAllowedUsed, false)
	add("rate_divisor", old.RateDivisor, new.RateDivisor, false)
	add("trade_fee_pct", old.TradeFeePct, new.TradeFeePct, false)
	add("min_order_amount", old.MinOrderAmount, new.MinOrderAmount, false)
	add("loop_time", old.LoopTime, new.LoopTime, false)
	add("entry_price_offset", old.EntryPriceOffset, new.EntryPriceOffset, false)
	add("batch_offset", old.BatchOffset, new.BatchOffset, false)
	add("orders_per_batch", old.OrdersPerBatch, new.OrdersPerBatch, false)
	add("tp_offset", old.TpOffset, new.TpOffset, false)
	add("sl_offset", old.SlOffset, new.SlOffset, false)
	add("tp_trigger_px_type", old.TpTriggerPxType, new.TpTriggerPxType, false)
	add("cancel_unfilled_seconds", old.CancelUnfilledSeconds, new.CancelUnfilledSeconds, false)
	add("cancel_tp_passed", old.CancelTpPassed, new.CancelTpPassed, false)
	add("manual_profit_target", old.ManualProfitTarget, new.ManualProfitTarget, false)
	add("pnl_auto_cal", old.PnlAutoCal, new.PnlAutoCal, false)
	add("pnl_auto_cal_times", old.PnlAutoCalTimes, new.PnlAutoCalTimes, false)
	add("pnl_auto_cal_loss", old.PnlAutoCalLoss, new.PnlAutoCalLoss, false)
	add("pnl_auto_cal_loss_times", old.PnlAutoCalLossTimes, new.PnlAutoCalLossTimes, false)
	add("size_profit", old.SizeProfit, new.SizeProfit, false)
	add("size_profit_times", old.SizeProfitTimes, new.SizeProfitTimes, false)
	add("size_loss", old.SizeLoss, new.SizeLoss, false)
	add("size_loss_times", old.SizeLossTimes, new.SizeLossTimes, false)
	add("above_zero", old.AboveZero, new.AboveZero, false)
	add("auto_add", old.AutoAdd, new.AutoAdd, false)
	add("add_first_gap_pct", old.AddFirstGapPct, new.AddFirstGapPct, false)
	add("add_next_gap_pct", old.AddNextGapPct, new.AddNextGapPct, false)
	add("add_first_size_pct", old.AddFirstSizePct, new.AddFirstSizePct, false)
	add("add_next_size_pct", old.AddNextSizePct, new.AddNextSizePct, false)
	add("max_add_count", old.MaxAddCount, new.MaxAddCount, false)
	add("add_budget", old.AddBudget, new.AddBudget, false)
	add("add_pos_exit", old.AddPosExitActive, new.AddPosExitActive, false)
	add("add_pos_exit_times", old.AddPosExitTimes, new.AddPosExitTimes, false)
	add("long_safety_line_price", old.LongSafetyLinePrice, new.LongSafetyLinePrice, false)
	add("short_safety_line_price", old.ShortSafetyLinePrice, new.ShortSafetyLinePrice, false)
	add("candlestick_condition", old.CandleCondition, new.CandleCondition, false)
	add("candlestick_timeframe", old.CandleTimeframe, new.CandleTimeframe, false)
	add("candlestick_min_range", old.CandleMinRange, new.CandleMinRange, false)

	return out
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Field, c.Old, c.New)
}
