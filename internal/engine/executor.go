package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

// ContractsForNotional — размер в контрактах под бюджет. Округление вниз к лоту,
// меньше minSz не торгуем.
func ContractsForNotional(notional, px float64, inst models.Instrument) float64 {
	if px <= 0 || inst.CtVal <= 0 {
		return 0
	}
	qty := helper.RoundToStep(notional/(px*inst.CtVal), inst.LotSz)
	if qty < inst.MinSz {
		return 0
	}
	if inst.MaxMktSz > 0 && qty > inst.MaxMktSz {
		qty = helper.RoundToStep(inst.MaxMktSz, inst.LotSz)
	}
	return qty
}

// ExitPrices — триггеры TP/SL от фактической цены, с округлением к тику.
func ExitPrices(side models.Side, basePx, tpOffset, slOffset, tick float64) (tp, sl float64) {
	switch side {
	case models.Long:
		tp = basePx + tpOffset
		sl = basePx - slOffset
	case models.Short:
		tp = basePx - tpOffset
		sl = basePx + slOffset
	}
	if tpOffset <= 0 {
		tp = 0
	}
	if slOffset <= 0 {
		sl = 0
	}
	return helper.RoundToTick(tp, tick), helper.RoundToTick(sl, tick)
}

// placeEntry — лимитный вход с прикреплённым TP/SL от цены лимита.
// Возвращает ordId и размер в контрактах.
func (e *Engine) placeEntry(ctx context.Context, side models.Side, limitPx, notional float64) (string, float64, error) {
	cfg := e.config()
	inst := e.instrument()

	qty := ContractsForNotional(notional, limitPx, inst)
	if qty <= 0 {
		return "", 0, errors.Errorf("entry %s skipped: notional %.2f below min size at px %.4f", side, notional, limitPx)
	}

	tp, sl := ExitPrices(side, limitPx, cfg.TpOffset, cfg.SlOffset, inst.TickSz)

	ordID, err := e.api.PlaceLimit(ctx, LimitReq{
		InstID:        cfg.Symbol,
		TdMode:        cfg.MarginMode,
		Side:          side.OrderSide(),
		PosSide:       e.posSideArg(side),
		Px:            helper.RoundToTick(limitPx, inst.TickSz),
		Sz:            qty,
		TpTriggerPx:   tp,
		SlTriggerPx:   sl,
		TriggerPxType: cfg.TpTriggerPxType,
	})
	if err != nil {
		return "", 0, errors.Wrapf(err, "place entry %s", side)
	}

	e.posMu.Lock()
	e.pending[ordID] = &models.PendingEntry{
		OrderID:    ordID,
		Signal:     side.Signal(),
		LimitPrice: limitPx,
		Qty:        qty * inst.CtVal,
		PlacedAt:   time.Now(),
		Status:     models.EntryStatusNew,
	}
	if e.sides[side].state == models.StateFlat {
		e.sides[side].state = models.StateEntryPending
	}
	e.posMu.Unlock()

	logger.Info("entry %s placed: ordId=%s px=%.4f qty=%.4f", side, ordID, limitPx, qty)
	go e.refreshAccountAsync()
	return ordID, qty, nil
}

// posSideArg — что слать в posSide с учётом режима позиций аккаунта.
func (e *Engine) posSideArg(side models.Side) string {
	if e.config().PositionMode == "net_mode" {
		return "net"
	}
	return string(side)
}

// attachExits — conditional TP/SL на подтверждённую позицию, reduceOnly.
func (e *Engine) attachExits(ctx context.Context, side models.Side, avgPx, qtyContracts float64) (string, error) {
	cfg := e.config()
	inst := e.instrument()

	tp, sl := ExitPrices(side, avgPx, cfg.TpOffset, cfg.SlOffset, inst.TickSz)
	if tp == 0 && sl == 0 {
		return "", nil
	}

	algoID, err := e.api.PlaceAlgo(ctx, AlgoReq{
		InstID:        cfg.Symbol,
		TdMode:        cfg.MarginMode,
		PosSide:       e.posSideArg(side),
		Sz:            qtyContracts,
		TpTriggerPx:   tp,
		SlTriggerPx:   sl,
		TriggerPxType: cfg.TpTriggerPxType,
	})
	if err != nil {
		return "", errors.Wrapf(err, "attach exits %s", side)
	}
	logger.Info("exits %s attached: algoId=%s tp=%.4f sl=%.4f", side, algoID, tp, sl)
	return algoID, nil
}

// cancelEntry — отмена входа. Гонка с исполнением (51001) не ошибка.
func (e *Engine) cancelEntry(ctx context.Context, ordID string) error {
	sCode, err := e.api.CancelOrder(ctx, e.symbol(), ordID)
	if err != nil {
		if sCode == "51001" {
			logger.Debug("cancel %s: already filled or gone", ordID)
			return nil
		}
		return err
	}
	return nil
}

// cancelSweep — снимает протухшие и пробитые входы. Вызывается из
// управляющего цикла до авто-выхода.
func (e *Engine) cancelSweep(ctx context.Context, marketPx float64) {
	cfg := e.config()
	maxAge := time.Duration(cfg.CancelUnfilledSeconds * float64(time.Second))

	type victim struct {
		ordID  string
		reason string
	}
	var victims []victim
	marked := map[string]bool{}
	mark := func(id, reason string) {
		if !marked[id] {
			marked[id] = true
			victims = append(victims, victim{id, reason})
		}
	}

	e.posMu.Lock()
	for id, p := range e.pending {
		age := time.Since(p.PlacedAt)
		if maxAge > 0 && age > maxAge {
			mark(id, "unfilled too long")
			continue
		}
		if marketPx <= 0 {
			continue
		}
		// Рынок уехал за лимит. Вход по построению стоит в entry_price_offset
		// от рынка, так что уехавшим считается уход за двойной offset —
		// буквальная проверка "рынок выше лимита" снимала бы каждый свежий ордер.
		switch p.Side() {
		case models.Long:
			if marketPx > p.LimitPrice+cfg.EntryPriceOffset*2 {
				mark(id, "market above limit")
			}
		case models.Short:
			if marketPx < p.LimitPrice-cfg.EntryPriceOffset*2 {
				mark(id, "market below limit")
			}
		}
	}
	// Правило "цена прошла TP" выключено по умолчанию.
	if cfg.CancelTpPassed && marketPx > 0 {
		tick := e.instrument().TickSz
		for id, p := range e.pending {
			tp, _ := ExitPrices(p.Side(), p.LimitPrice, cfg.TpOffset, cfg.SlOffset, tick)
			if tp == 0 {
				continue
			}
			switch p.Side() {
			case models.Long:
				if marketPx >= tp {
					mark(id, "tp passed")
				}
			case models.Short:
				if marketPx <= tp {
					mark(id, "tp passed")
				}
			}
		}
	}
	e.posMu.Unlock()

	for _, v := range victims {
		if err := e.cancelEntry(ctx, v.ordID); err != nil {
			e.emitError("cancel %s (%s): %v", v.ordID, v.reason, err)
			continue
		}
		logger.Info("entry %s canceled: %s", v.ordID, v.reason)
		e.posMu.Lock()
		e.dropPendingLocked(v.ordID)
		e.posMu.Unlock()
	}
}

// ExecuteAuthoritativeExit — правда биржи важнее локального состояния:
// позиции закрываются рынком, все ордера снимаются, локальный стейт обнуляется.
// Повторные вызовы складываются в один.
func (e *Engine) ExecuteAuthoritativeExit(ctx context.Context, reason string) error {
	if !e.authExitFlag.TrySet() {
		logger.Debug("authoritative exit already in progress")
		return nil
	}
	defer e.authExitFlag.Clear()

	logger.Warn("authoritative exit: %s", reason)
	e.tg.Sendf("authoritative exit: %s", reason)
	e.emit.Emit(models.EventError, models.NoticeEvent{Message: "authoritative exit: " + reason})

	symbol := e.symbol()
	var firstErr error

	positions, err := e.api.GetPositions(ctx, symbol)
	if err != nil {
		firstErr = err
	}
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		posSide := p.PosSide
		if posSide == "" {
			posSide = "net"
		}
		// Размер со знаком: у net-позиции только он определяет сторону закрытия.
		if _, err := e.api.PlaceMarketClose(ctx, symbol, p.MgnMode, posSide, p.Qty); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close %s", posSide)
		}
	}

	orders, err := e.api.GetPendingOrders(ctx, symbol)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	for _, o := range orders {
		if err := e.cancelEntry(ctx, o.OrdID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	algos, err := e.api.GetPendingAlgos(ctx, symbol)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	ids := make([]string, 0, len(algos))
	for _, a := range algos {
		ids = append(ids, a.AlgoID)
	}
	if err := e.api.CancelAlgos(ctx, symbol, ids); err != nil && firstErr == nil {
		firstErr = err
	}

	e.resetLocalState()
	go e.refreshAccountAsync()

	if firstErr != nil {
		e.emitError("authoritative exit incomplete: %v", firstErr)
		return firstErr
	}
	e.emitSuccess("authoritative exit done: %s", reason)
	return nil
}

func (e *Engine) resetLocalState() {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	for _, s := range models.Sides() {
		st := e.sides[s]
		st.pos = models.Position{Side: s}
		st.exits = models.ExitOrderSet{}
		st.state = models.StateFlat
		st.tpHit.Clear()
		st.slHit.Clear()
		st.addCount = 0
		st.lastAddPx = 0
		st.addBudgetUsed = 0
	}
	for id, t := range e.confirmTimers {
		t.Stop()
		delete(e.confirmTimers, id)
	}
	e.pending = map[string]*models.PendingEntry{}
}

// BatchCancelOrders — снять все наши отложенные входы (операция UI).
func (e *Engine) BatchCancelOrders(ctx context.Context) error {
	orders, err := e.api.GetPendingOrders(ctx, e.symbol())
	if err != nil {
		return err
	}
	var firstErr error
	for _, o := range orders {
		if o.ReduceOnly {
			continue
		}
		if err := e.cancelEntry(ctx, o.OrdID); err != nil && firstErr == nil {
			firstErr = err
		}
		e.posMu.Lock()
		e.dropPendingLocked(o.OrdID)
		e.posMu.Unlock()
	}
	return firstErr
}

// BatchModifyTPSL — пересобрать TP/SL обеих сторон под текущий размер позиции.
func (e *Engine) BatchModifyTPSL(ctx context.Context) error {
	if !e.batchUpdateFlag.TrySet() {
		return errors.New("tpsl batch update already in progress")
	}
	defer e.batchUpdateFlag.Clear()

	inst := e.instrument()
	var firstErr error
	for _, s := range models.Sides() {
		e.posMu.Lock()
		st := e.sides[s]
		inPos := st.pos.InPosition
		avgPx := st.pos.EntryPrice
		qty := st.pos.Qty
		oldAlgo := st.exits.TPAlgoID
		e.posMu.Unlock()

		if !inPos || qty == 0 {
			continue
		}
		if oldAlgo != "" {
			if err := e.api.CancelAlgos(ctx, e.symbol(), []string{oldAlgo}); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		qtyContracts := qty
		if inst.CtVal > 0 {
			qtyContracts = helper.RoundToStep(qty/inst.CtVal, inst.LotSz)
		}
		algoID, err := e.attachExits(ctx, s, avgPx, qtyContracts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.posMu.Lock()
		e.sides[s].exits = models.ExitOrderSet{TPAlgoID: algoID, SLAlgoID: algoID}
		e.posMu.Unlock()
	}
	return firstErr
}

// AdjustPositionMargin — перенос маржи изолированной позиции (операция UI).
// amtType: "add" | "reduce".
func (e *Engine) AdjustPositionMargin(ctx context.Context, side models.Side, amtType string, amt float64) error {
	cfg := e.config()
	if cfg.MarginMode != "isolated" {
		return errors.New("margin adjust only applies to isolated positions")
	}
	if amtType != "add" && amtType != "reduce" {
		return errors.Errorf("bad margin adjust type %q", amtType)
	}
	if amt <= 0 {
		return errors.Errorf("bad margin amount %.4f", amt)
	}

	e.posMu.Lock()
	inPos := e.sides[side].pos.InPosition
	e.posMu.Unlock()
	if !inPos {
		return errors.Errorf("no open %s position", side)
	}

	if err := e.api.AdjustMargin(ctx, cfg.Symbol, e.posSideArg(side), amtType, amt); err != nil {
		return errors.Wrapf(err, "adjust margin %s", side)
	}
	logger.Info("margin %s %s: %.4f", amtType, side, amt)
	go e.refreshAccountAsync()
	return nil
}

// EmergencySL — аварийный стоп вплотную к рынку по обеим сторонам.
func (e *Engine) EmergencySL(ctx context.Context) error {
	px, _ := e.pub.LastPrice()
	if px <= 0 {
		var err error
		px, err = e.api.GetLastPrice(ctx, e.symbol())
		if err != nil {
			return errors.Wrap(err, "emergency sl: no price")
		}
	}

	cfg := e.config()
	inst := e.instrument()
	var firstErr error
	for _, s := range models.Sides() {
		e.posMu.Lock()
		st := e.sides[s]
		inPos := st.pos.InPosition
		qty := st.pos.Qty
		e.posMu.Unlock()
		if !inPos || qty == 0 {
			continue
		}

		var sl float64
		switch s {
		case models.Long:
			sl = helper.RoundToTick(px-inst.TickSz*5, inst.TickSz)
		case models.Short:
			sl = helper.RoundToTick(px+inst.TickSz*5, inst.TickSz)
		}
		qtyContracts := qty
		if inst.CtVal > 0 {
			qtyContracts = helper.RoundToStep(qty/inst.CtVal, inst.LotSz)
		}
		algoID, err := e.api.PlaceAlgo(ctx, AlgoReq{
			InstID:        cfg.Symbol,
			TdMode:        cfg.MarginMode,
			PosSide:       e.posSideArg(s),
			Sz:            qtyContracts,
			SlTriggerPx:   sl,
			TriggerPxType: cfg.TpTriggerPxType,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.posMu.Lock()
		e.sides[s].exits.SLAlgoID = algoID
		e.posMu.Unlock()
		logger.Warn("emergency sl %s at %.4f (algoId=%s)", s, sl, algoID)
	}
	return firstErr
}
