package engine

import (
	"context"

	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

// EntrySignal — направление входа и рыночная цена на момент оценки.
type EntrySignal struct {
	Side     models.Side
	MarketPx float64
}

// BatchEntryPrice — цена i-го ордера пачки: от рынка в сторону "дешевле",
// каждый следующий дальше на batchOffset.
func BatchEntryPrice(side models.Side, marketPx, entryOffset, batchOffset float64, i int) float64 {
	step := entryOffset + batchOffset*float64(i)
	if side == models.Short {
		return marketPx + step
	}
	return marketPx - step
}

// evaluateEntrySignals — условия входа против текущей цены.
// Пустой срез — сигнала нет, внутренний цикл входов завершается.
func (e *Engine) evaluateEntrySignals(marketPx float64) []EntrySignal {
	if marketPx <= 0 {
		return nil
	}
	cfg := e.config()

	// Ёмкость: без остатка бюджета не входим.
	snap := e.snapshot()
	if snap.RemainingNotional < cfg.MinOrderAmount {
		return nil
	}

	if !e.candleFilterPass(cfg.CandleCondition, cfg.CandleMinRange) {
		return nil
	}

	var out []EntrySignal
	for _, s := range models.Sides() {
		if cfg.Direction != "both" && cfg.Direction != string(s) {
			continue
		}
		if !e.sideIdle(s) {
			continue
		}
		if !safetyLinePass(s, marketPx, cfg.LongSafetyLinePrice, cfg.ShortSafetyLinePrice) {
			continue
		}
		out = append(out, EntrySignal{Side: s, MarketPx: marketPx})
	}
	return out
}

// sideIdle — по стороне нет ни позиции, ни отложенных входов.
func (e *Engine) sideIdle(side models.Side) bool {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	if e.sides[side].pos.InPosition {
		return false
	}
	for _, p := range e.pending {
		if p.Side() == side {
			return false
		}
	}
	return true
}

// safetyLinePass — стоп-линии: long только ниже своей линии, short только выше.
// Нулевая линия отключает проверку.
func safetyLinePass(side models.Side, marketPx, longLine, shortLine float64) bool {
	switch side {
	case models.Long:
		return longLine == 0 || marketPx < longLine
	case models.Short:
		return shortLine == 0 || marketPx > shortLine
	}
	return false
}

// candleFilterPass — фильтр по последней закрытой свече.
func (e *Engine) candleFilterPass(condition string, minRange float64) bool {
	if condition == "" || condition == "none" {
		return true
	}

	e.candleMu.Lock()
	c := e.lastCandle
	e.candleMu.Unlock()
	if c.Ts.IsZero() || !c.Confirm {
		logger.Debug("candle filter: no confirmed candle yet")
		return false
	}

	var span float64
	switch condition {
	case "open_close":
		span = c.Body()
	case "high_low":
		span = c.Range()
	case "high_close":
		span = c.High - c.Close
		if span < 0 {
			span = -span
		}
	default:
		return true
	}
	return span >= minRange
}

// refreshCandles — подтянуть последнюю закрытую свечу по REST.
func (e *Engine) refreshCandles(ctx context.Context) {
	cfg := e.config()
	if cfg.CandleCondition == "" || cfg.CandleCondition == "none" {
		return
	}

	candles, err := e.api.GetCandles(ctx, cfg.Symbol, cfg.CandleTimeframe, 2)
	if err != nil {
		logger.Debug("candles refresh: %v", err)
		return
	}
	for _, c := range candles {
		if !c.Confirm {
			continue
		}
		e.candleMu.Lock()
		if c.Ts.After(e.lastCandle.Ts) {
			e.lastCandle = c
		}
		e.candleMu.Unlock()
		return
	}
}
