package engine

import (
	"context"
	"time"

	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

const (
	confirmDelayFilled  = 2 * time.Second
	confirmDelayPartial = 5 * time.Second

	confirmPollTimeout = 20 * time.Second
)

// resolveSide — единственная точка маппинга posSide биржи на нашу сторону.
func (e *Engine) resolveSide(posSide string) models.Side {
	return models.ResolveSide(posSide, e.config().Direction)
}

// ApplyPositionPush — свежие позиции из приватного стрима. Детектит закрытия,
// классифицирует их и сбрасывает состояние стороны.
func (e *Engine) ApplyPositionPush(positions []models.OpenPosition) {
	lastPx, _ := e.pub.LastPrice()

	type closure struct {
		side   models.Side
		reason models.CloseReason
	}
	var closures []closure

	byside := map[models.Side]models.OpenPosition{}
	for _, p := range positions {
		byside[e.resolveSide(p.PosSide)] = p
	}

	e.posMu.Lock()
	for _, s := range models.Sides() {
		st := e.sides[s]
		p, ok := byside[s]
		if ok && p.Qty != 0 {
			qty := p.Qty
			if qty < 0 {
				qty = -qty
			}
			st.pos.InPosition = true
			st.pos.EntryPrice = p.AvgPx
			st.pos.Qty = qty * e.instrument().CtVal
			st.pos.Notional = p.NotionalUsd
			st.pos.LiqPrice = p.LiqPx
			st.pos.UnrealizedPnl = p.Upl
			st.pos.Leverage = p.Lever
			st.pos.MgnMode = p.MgnMode
			if st.state == models.StateFlat || st.state == models.StateEntryPending {
				st.state = models.StateActive
			}
			continue
		}

		if st.pos.InPosition {
			reason := e.classifyCloseLocked(st, lastPx)
			closures = append(closures, closure{side: s, reason: reason})

			st.pos = models.Position{Side: s}
			st.exits = models.ExitOrderSet{}
			st.state = models.StateFlat
			st.addCount = 0
			st.lastAddPx = 0
			st.addBudgetUsed = 0
		}
	}
	e.posMu.Unlock()

	for _, c := range closures {
		e.onPositionClosed(c.side, c.reason)
	}
	e.emitPositions()
}

// classifyCloseLocked — best-effort причина закрытия. Вызывается под posMu.
func (e *Engine) classifyCloseLocked(st *sideState, lastPx float64) models.CloseReason {
	if e.authExitFlag.IsSet() {
		return models.CloseByAuth
	}
	tp := st.pos.TakeProfit
	sl := st.pos.StopLoss
	if lastPx > 0 && tp > 0 {
		if (st.pos.Side == models.Long && lastPx >= tp) || (st.pos.Side == models.Short && lastPx <= tp) {
			return models.CloseByTP
		}
	}
	if lastPx > 0 && sl > 0 {
		if (st.pos.Side == models.Long && lastPx <= sl) || (st.pos.Side == models.Short && lastPx >= sl) {
			return models.CloseBySL
		}
	}
	return models.CloseByManual
}

// onPositionClosed — ровно один обработчик на закрытие каждого вида.
func (e *Engine) onPositionClosed(side models.Side, reason models.CloseReason) {
	st := e.sides[side]
	switch reason {
	case models.CloseByTP:
		if !st.tpHit.TrySet() {
			return
		}
		defer st.tpHit.Clear()
		e.emitSuccess("position %s closed by take profit", side)
	case models.CloseBySL:
		if !st.slHit.TrySet() {
			return
		}
		defer st.slHit.Clear()
		e.emitWarning("position %s closed by stop loss", side)
	case models.CloseByAuth:
		logger.Info("position %s closed by authoritative exit", side)
	default:
		logger.Info("position %s closed manually or externally", side)
	}
	go e.refreshAccountAsync()
}

// ApplyOrderUpdate — обновление ордера из приватного стрима. Терминальные
// статусы чужих ордеров игнорируются, свои подтверждаются отложенным поллом.
func (e *Engine) ApplyOrderUpdate(o models.PendingOrder) {
	if o.ReduceOnly {
		return
	}

	e.posMu.Lock()
	p, tracked := e.pending[o.OrdID]
	if !tracked {
		e.posMu.Unlock()
		return
	}
	p.Status = o.State
	p.CumFilled = o.AccFillSz

	var delay time.Duration
	switch o.State {
	case models.EntryStatusFilled:
		delay = confirmDelayFilled
	case models.EntryStatusPartially:
		delay = confirmDelayPartial
	case models.EntryStatusCanceled, models.EntryStatusFailed:
		e.dropPendingLocked(o.OrdID)
		e.posMu.Unlock()
		logger.Info("entry %s gone: %s", o.OrdID, o.State)
		return
	default:
		e.posMu.Unlock()
		return
	}

	side := p.Side()
	// Дебаунс: на каждый ордер живёт один таймер, новый статус передёргивает его.
	if t, ok := e.confirmTimers[o.OrdID]; ok {
		t.Stop()
	}
	ordID := o.OrdID
	e.confirmTimers[ordID] = time.AfterFunc(delay, func() {
		e.posMu.Lock()
		delete(e.confirmTimers, ordID)
		e.posMu.Unlock()
		e.ConfirmAndActivate(side, ordID)
	})
	e.posMu.Unlock()
}

// ConfirmAndActivate — авторитетный полл позиции после (частичного) исполнения.
// TP/SL ставятся от фактической средней цены входа, не от цены лимита.
func (e *Engine) ConfirmAndActivate(side models.Side, ordID string) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmPollTimeout)
	defer cancel()

	positions, err := e.api.GetPositions(ctx, e.symbol())
	if err != nil {
		e.emitError("confirm %s: positions poll: %v", side, err)
		return
	}

	var found *models.OpenPosition
	for i := range positions {
		if e.resolveSide(positions[i].PosSide) == side {
			found = &positions[i]
			break
		}
	}
	if found == nil || found.Qty == 0 {
		// Позиции нет — уточняем судьбу самого ордера: терминальный статус
		// значит, что ждать подтверждения больше нечего.
		if o, err := e.api.GetOrder(ctx, e.symbol(), ordID); err == nil {
			if o.State == models.EntryStatusCanceled || o.State == models.EntryStatusFailed {
				e.posMu.Lock()
				e.dropPendingLocked(ordID)
				e.posMu.Unlock()
				logger.Info("entry %s gone before confirm: %s", ordID, o.State)
				return
			}
		}
		logger.Debug("confirm %s: no live position yet", side)
		return
	}

	inst := e.instrument()
	qty := found.Qty
	if qty < 0 {
		qty = -qty
	}

	cfg := e.config()
	tp, sl := ExitPrices(side, found.AvgPx, cfg.TpOffset, cfg.SlOffset, inst.TickSz)

	e.posMu.Lock()
	st := e.sides[side]
	wasActive := st.pos.InPosition
	prevQty := st.pos.Qty
	st.pos.InPosition = true
	st.pos.EntryPrice = found.AvgPx
	st.pos.Qty = qty * inst.CtVal
	st.pos.Notional = found.NotionalUsd
	st.pos.LiqPrice = found.LiqPx
	st.pos.UnrealizedPnl = found.Upl
	st.pos.Leverage = found.Lever
	st.pos.MgnMode = found.MgnMode
	st.pos.TakeProfit = tp
	st.pos.StopLoss = sl
	st.state = models.StateActive
	if p, ok := e.pending[ordID]; ok && p.Status == models.EntryStatusFilled {
		e.dropPendingLocked(ordID)
	}
	hasExit := !st.exits.Empty()
	grew := wasActive && st.pos.Qty > prevQty
	e.posMu.Unlock()

	// Добор: биржевой conditional всё ещё триггерит от прежней средней и
	// прежнего размера — пересобираем под новые.
	if hasExit && grew {
		if err := e.BatchModifyTPSL(ctx); err != nil {
			e.emitError("confirm %s: tp/sl resync: %v", side, err)
		}
	}

	// Защита от дублей: если биржа уже держит conditional по этой стороне,
	// второй не ставим.
	if !hasExit {
		algos, err := e.api.GetPendingAlgos(ctx, e.symbol())
		if err == nil {
			for _, a := range algos {
				if e.resolveSide(a.PosSide) == side {
					hasExit = true
					e.posMu.Lock()
					st.exits = models.ExitOrderSet{TPAlgoID: a.AlgoID, SLAlgoID: a.AlgoID}
					e.posMu.Unlock()
					break
				}
			}
		}
	}

	if !hasExit {
		algoID, err := e.attachExits(ctx, side, found.AvgPx, qty)
		if err != nil {
			// Позиция без стопа жить не должна.
			e.emitError("confirm %s: attach exits failed: %v", side, err)
			e.tg.Sendf("TP/SL attach failed for %s, forcing exit", side)
			_ = e.ExecuteAuthoritativeExit(ctx, "tp/sl attach failed")
			return
		}
		if algoID != "" {
			e.posMu.Lock()
			st.exits = models.ExitOrderSet{TPAlgoID: algoID, SLAlgoID: algoID}
			e.posMu.Unlock()
		}
	}

	logger.Info("position %s confirmed: avg=%.4f qty=%.4f tp=%.4f sl=%.4f", side, found.AvgPx, qty, tp, sl)
	e.emitPositions()
	go e.refreshAccountAsync()
}

// ReconcilePendingWithExchange — правда биржи о наших отложенных входах:
// неизвестные живые ордера усыновляются (с их биржевым cTime), пропавшие
// локальные записи вычищаются.
func (e *Engine) ReconcilePendingWithExchange(ctx context.Context) error {
	orders, err := e.api.GetPendingOrders(ctx, e.symbol())
	if err != nil {
		return err
	}

	live := map[string]models.PendingOrder{}
	for _, o := range orders {
		if o.ReduceOnly || o.OrdType != "limit" {
			continue
		}
		live[o.OrdID] = o
	}
	ctVal := e.instrument().CtVal

	e.posMu.Lock()
	defer e.posMu.Unlock()

	for id, o := range live {
		if _, ok := e.pending[id]; ok {
			continue
		}
		side := e.resolveSide(o.PosSide)
		if o.PosSide == "" || o.PosSide == "net" {
			// В net-режиме сторона входа видна только по buy/sell.
			if o.Side == "sell" {
				side = models.Short
			} else {
				side = models.Long
			}
		}
		placedAt := o.CTime
		if placedAt.IsZero() {
			placedAt = time.Now()
		}
		e.pending[id] = &models.PendingEntry{
			OrderID:    id,
			Signal:     side.Signal(),
			LimitPrice: o.Px,
			Qty:        o.Sz * ctVal,
			PlacedAt:   placedAt,
			Status:     o.State,
			CumFilled:  o.AccFillSz,
		}
		logger.Info("adopted live order %s: %s px=%.4f", id, side, o.Px)
	}

	for id := range e.pending {
		if _, ok := live[id]; !ok {
			e.dropPendingLocked(id)
			logger.Debug("pruned stale pending %s", id)
		}
	}
	return nil
}

// dropPendingLocked — вызывается под posMu.
func (e *Engine) dropPendingLocked(ordID string) {
	p, ok := e.pending[ordID]
	if !ok {
		return
	}
	delete(e.pending, ordID)
	if t, ok := e.confirmTimers[ordID]; ok {
		t.Stop()
		delete(e.confirmTimers, ordID)
	}

	// Сторона без позиции и без других входов возвращается в Flat.
	side := p.Side()
	st := e.sides[side]
	if st.pos.InPosition {
		return
	}
	for _, other := range e.pending {
		if other.Side() == side {
			return
		}
	}
	if st.state == models.StateEntryPending {
		st.state = models.StateFlat
	}
}

func (e *Engine) emitPositions() {
	e.posMu.Lock()
	events := make([]models.PositionUpdateEvent, 0, 2)
	for _, s := range models.Sides() {
		st := e.sides[s]
		events = append(events, models.PositionUpdateEvent{
			Side:          string(s),
			InPosition:    st.pos.InPosition,
			EntryPrice:    st.pos.EntryPrice,
			Qty:           st.pos.Qty,
			UnrealizedPnl: st.pos.UnrealizedPnl,
			LiqPrice:      st.pos.LiqPrice,
			TakeProfit:    st.pos.TakeProfit,
			StopLoss:      st.pos.StopLoss,
			State:         string(st.state),
		})
	}
	e.posMu.Unlock()

	for _, ev := range events {
		e.emit.Emit(models.EventPositionUpdate, ev)
	}
}
