package engine

import (
	"context"
	"sort"
	"time"

	wss "swap_bot/internal/modules/okx_websocket/service"

	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

const accountSyncTimeout = 20 * time.Second

// FetchAccountDataSync — синхронный полл баланса и позиций с пересчётом
// снапшота. Используется UI и стартовой последовательностью.
func (e *Engine) FetchAccountDataSync(ctx context.Context) error {
	total, avail, err := e.api.GetBalanceEquity(ctx)
	if err != nil {
		return err
	}
	positions, err := e.api.GetPositions(ctx, e.symbol())
	if err != nil {
		return err
	}

	e.ApplyPositionPush(positions)
	e.recomputeSnapshot(total, avail)
	e.emitAccount()
	return nil
}

func (e *Engine) refreshAccountAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), accountSyncTimeout)
	defer cancel()
	if err := e.FetchAccountDataSync(ctx); err != nil {
		logger.Debug("account refresh: %v", err)
	}
}

// applyAccountPush — баланс из приватного стрима, без полла.
func (e *Engine) applyAccountPush(p wss.AccountPush) {
	e.acctMu.Lock()
	e.lastAcctPush = time.Now()
	e.acctMu.Unlock()
	e.recomputeSnapshot(p.TotalEquity, p.AvailableBalance)
	e.emitAccount()
}

// accountPushFresh — стрим недавно приносил баланс, REST-полл избыточен.
func (e *Engine) accountPushFresh() bool {
	e.acctMu.Lock()
	defer e.acctMu.Unlock()
	return !e.lastAcctPush.IsZero() && time.Since(e.lastAcctPush) < accountSyncEvery
}

// syncAccountTick — периодический шаг управляющего цикла: REST-полл только
// когда стрим молчит, авто-правила в любом случае.
func (e *Engine) syncAccountTick(ctx context.Context, marketPx float64) {
	if !e.accountPushFresh() {
		if err := e.FetchAccountDataSync(ctx); err != nil {
			logger.Debug("account sync: %v", err)
			return
		}
	}
	e.runAutoRules(ctx, marketPx)
}

// recomputeSnapshot — пересчёт капитала из локального состояния.
// Порядок захвата: posMu раньше acctMu.
func (e *Engine) recomputeSnapshot(total, avail float64) {
	in := SnapshotInput{TotalEquity: total, AvailableBalance: avail}

	e.posMu.Lock()
	for _, s := range models.Sides() {
		st := e.sides[s]
		if !st.pos.InPosition {
			continue
		}
		in.ActivePositions++
		in.Upl += st.pos.UnrealizedPnl
		notional := st.pos.Notional
		if notional == 0 {
			notional = st.pos.Qty * st.pos.EntryPrice
		}
		in.PosNotional += notional
	}
	for _, p := range e.pending {
		in.PendingCount++
		in.PendingNotional += p.Qty * p.LimitPrice
	}
	e.posMu.Unlock()

	cfg := e.config()

	e.acctMu.Lock()
	e.snap = ComputeSnapshot(cfg, in)
	// Предупреждаем один раз на переход, не каждый цикл.
	if e.snap.Clamped && !e.clampWarned {
		e.clampWarned = true
		e.acctMu.Unlock()
		e.emitWarning("max_allowed_used %.2f clamped to equity %.2f", cfg.MaxAllowedUsed, total)
		return
	}
	if !e.snap.Clamped {
		e.clampWarned = false
	}
	e.acctMu.Unlock()
}

func (e *Engine) snapshot() models.CapitalSnapshot {
	e.acctMu.Lock()
	defer e.acctMu.Unlock()
	return e.snap
}

func (e *Engine) emitAccount() {
	snap := e.snapshot()
	e.emit.Emit(models.EventAccountUpdate, models.AccountUpdateEvent{
		TotalEquity:      snap.TotalEquity,
		AvailableBalance: snap.AvailableBalance,
		UsedAmount:       snap.UsedNotional,
		RemainingAmount:  snap.RemainingNotional,
		MaxAmount:        snap.MaxAmount,
		TradeFees:        snap.TradeFees,
		NetProfit:        snap.NetProfit,
		ActivePositions:  snap.ActivePositions,
		PendingOrders:    snap.PendingCount,
	})
}

// reconcileFills — минутный свип исполнений: реализованный PnL, комиссии,
// журнал. Новизна сделки определяется по tradeId.
func (e *Engine) reconcileFills(ctx context.Context) {
	e.acctMu.Lock()
	begin := e.sessionStart
	e.acctMu.Unlock()

	fills, err := e.api.GetFills(ctx, e.symbol(), begin)
	if err != nil {
		logger.Debug("fills sweep: %v", err)
		return
	}

	var fresh []models.Fill
	e.acctMu.Lock()
	for _, f := range fills {
		if f.TradeID == "" || e.seenFills[f.TradeID] {
			continue
		}
		e.seenFills[f.TradeID] = true
		e.realized += f.Pnl
		e.feesPaid += -f.Fee // у OKX комиссия отрицательная
		fresh = append(fresh, f)
	}
	realized := e.realized
	fees := e.feesPaid
	e.acctMu.Unlock()

	if len(fresh) == 0 {
		return
	}

	if e.journal != nil {
		if err := e.journal.RecordFills(ctx, fresh); err != nil {
			logger.Error("journal fills: %v", err)
		}
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Ts.After(fresh[j].Ts) })
	rows := make([]models.TradeRow, 0, len(fresh))
	for _, f := range fresh {
		rows = append(rows, models.TradeRow{
			TradeID: f.TradeID,
			OrderID: f.OrdID,
			Side:    f.Side,
			PosSide: f.PosSide,
			Price:   f.Px,
			Qty:     f.Sz,
			Pnl:     f.Pnl,
			Fee:     f.Fee,
			Time:    f.Ts.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	e.emit.Emit(models.EventTradesUpdate, models.TradesUpdateEvent{
		Trades:      rows,
		RealizedPnl: realized,
		FeesPaid:    fees,
	})
}
