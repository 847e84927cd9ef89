package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

const (
	wsReadyTimeout     = 30 * time.Second
	wsReconnectBackoff = 5 * time.Second
	priceStaleAfter    = 30 * time.Second

	accountSyncEvery = 3 * time.Second
	fillsSweepEvery  = 60 * time.Second
	candleEvery      = 30 * time.Second
)

// Start — стартовая последовательность и запуск циклов.
// В пассивном режиме ошибки шагов не фатальны: наблюдаем, не торгуем.
func (e *Engine) Start(ctx context.Context, passive bool) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.running.Load() {
		return errors.New("engine already started")
	}

	e.passive.Store(passive)
	fatal := func(err error) error {
		if passive {
			e.emitError("startup (passive): %v", err)
			return nil
		}
		return err
	}

	// 1. Ключи.
	if err := e.CheckCredentials(ctx); err != nil {
		return fatal(errors.Wrap(err, "credentials"))
	}
	// 2. Серверное время.
	if err := e.api.SyncServerTime(ctx); err != nil {
		return fatal(errors.Wrap(err, "server time"))
	}
	// 3. Правила инструмента.
	inst, err := e.api.GetInstrumentMeta(ctx, e.symbol())
	if err != nil {
		return fatal(errors.Wrap(err, "instrument"))
	}
	e.instMu.Lock()
	e.inst = inst
	e.instMu.Unlock()

	// 4. Режимы аккаунта и зачистка чужих позиций — только в активном режиме.
	if !passive {
		if err := e.prepareAccount(ctx); err != nil {
			return errors.Wrap(err, "prepare account")
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancelRun = cancel
	e.running.Store(true)
	e.acctMu.Lock()
	e.sessionStart = time.Now()
	e.realized = 0
	e.feesPaid = 0
	e.seenFills = map[string]bool{}
	e.acctMu.Unlock()

	// 5. Оба стрима и общий гейт готовности.
	e.wirePrivateStream()
	e.wg.Add(2)
	go e.streamLoop(runCtx, "public", func(c context.Context) error { return e.pubRun(c) })
	go e.streamLoop(runCtx, "private", func(c context.Context) error { return e.priv.Run(c) })

	if !e.gate.AwaitBoth(runCtx, wsReadyTimeout) {
		if !passive {
			e.Shutdown()
			return errors.New("streams not ready in time")
		}
		e.emitWarning("streams not ready in time, passive mode keeps waiting")
	}

	// 6. Бэкфилл свечей, если фильтр включён.
	e.refreshCandles(runCtx)

	// 7. Циклы.
	e.entriesEnabled.Store(!passive)
	e.wg.Add(2)
	go e.entryLoop(runCtx)
	go e.managementLoop(runCtx)

	logger.Info("engine started: symbol=%s passive=%v demo=%v", e.symbol(), passive, e.config().DemoMode)
	e.emitStatus("started")
	return nil
}

// pubRun — обёртка, чтобы тестовый marketData не обязан уметь Run.
func (e *Engine) pubRun(ctx context.Context) error {
	type runner interface{ Run(ctx context.Context) error }
	if r, ok := e.pub.(runner); ok {
		return r.Run(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

// prepareAccount — шаг 4: режим позиций, плечо, принудительное закрытие
// чужих открытых позиций по символу.
func (e *Engine) prepareAccount(ctx context.Context) error {
	cfg := e.config()

	if err := e.api.SetPositionMode(ctx, cfg.PositionMode); err != nil {
		return err
	}

	sides := []string{""}
	if cfg.PositionMode == "long_short_mode" {
		sides = []string{"long", "short"}
	}
	for _, ps := range sides {
		if err := e.api.SetLeverage(ctx, cfg.Symbol, cfg.MarginMode, ps, cfg.Leverage); err != nil {
			return err
		}
	}

	positions, err := e.api.GetPositions(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		posSide := p.PosSide
		if posSide == "" {
			posSide = "net"
		}
		logger.Warn("closing stray position %s qty=%.4f", posSide, p.Qty)
		if _, err := e.api.PlaceMarketClose(ctx, cfg.Symbol, p.MgnMode, posSide, p.Qty); err != nil {
			return errors.Wrapf(err, "close stray %s", posSide)
		}
	}
	return nil
}

func (e *Engine) wirePrivateStream() {
	if e.priv == nil {
		return
	}
	e.priv.OnPositions(e.ApplyPositionPush)
	e.priv.OnAccount(e.applyAccountPush)
	e.priv.OnOrder(e.ApplyOrderUpdate)
}

// streamLoop — жизнь стрима с фиксированным бэкоффом переподключения.
func (e *Engine) streamLoop(ctx context.Context, name string, run func(context.Context) error) {
	defer e.wg.Done()
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("%s stream down: %v, reconnect in %s", name, err, wsReconnectBackoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wsReconnectBackoff):
		}
	}
}

// entryLoop — цикл входов. Темп задаётся loop_time, не реакцией рынка.
func (e *Engine) entryLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		loopTime := time.Duration(e.config().LoopTime * float64(time.Second))

		if !e.entriesEnabled.Load() || !e.gate.Ready() {
			if !sleepOrDone(ctx, loopTime) {
				return
			}
			continue
		}

		// Внутренний цикл: входим, пока сигнал держится.
		for e.entriesEnabled.Load() {
			px, at := e.pub.LastPrice()
			if px <= 0 || time.Since(at) > priceStaleAfter {
				break
			}
			signals := e.evaluateEntrySignals(px)
			if len(signals) == 0 {
				break
			}
			e.placeBatches(ctx, signals)
			if !sleepOrDone(ctx, loopTime) {
				return
			}
		}

		if !sleepOrDone(ctx, loopTime) {
			return
		}
	}
}

// placeBatches — пачка ступенчатых лимиток на каждый сигнал,
// бюджет делится поровну между всеми членами пачек.
func (e *Engine) placeBatches(ctx context.Context, signals []EntrySignal) {
	cfg := e.config()
	snap := e.snapshot()

	members := cfg.OrdersPerBatch * len(signals)
	if members == 0 {
		return
	}
	perOrder := snap.RemainingNotional / float64(members)
	if perOrder < cfg.MinOrderAmount {
		logger.Debug("batch skipped: per-order budget %.2f below minimum", perOrder)
		return
	}

	for _, sig := range signals {
		for i := 0; i < cfg.OrdersPerBatch; i++ {
			px := BatchEntryPrice(sig.Side, sig.MarketPx, cfg.EntryPriceOffset, cfg.BatchOffset, i)
			if _, _, err := e.placeEntry(ctx, sig.Side, px, perOrder); err != nil {
				e.emitError("batch entry %s[%d]: %v", sig.Side, i, err)
			}
		}
	}
}

// managementLoop — тик раз в секунду. Порядок фиксирован: сначала снятие
// протухших входов, затем сторож цены, затем синк и авто-правила.
func (e *Engine) managementLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSync, lastFills, lastCandles time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		px, at := e.pub.LastPrice()

		e.cancelSweep(ctx, px)

		// Сторож устаревания: при молчании рынка рвём оба стрима,
		// переподключение сделают streamLoop-ы.
		if !at.IsZero() && time.Since(at) > priceStaleAfter {
			logger.Warn("market data stale for %s, recycling streams", time.Since(at).Round(time.Second))
			e.pub.Close()
			if e.priv != nil {
				e.priv.Close()
			}
		}

		if time.Since(lastSync) >= accountSyncEvery {
			lastSync = time.Now()
			e.syncAccountTick(ctx, px)
		}

		if time.Since(lastCandles) >= candleEvery {
			lastCandles = time.Now()
			e.refreshCandles(ctx)
		}

		if time.Since(lastFills) >= fillsSweepEvery {
			lastFills = time.Now()
			e.reconcileFills(ctx)
			if err := e.ReconcilePendingWithExchange(ctx); err != nil {
				logger.Debug("pending reconcile: %v", err)
			}
			if e.journal != nil {
				e.journal.MaybeDailyReport(ctx, e.snapshot())
			}
		}
	}
}

// runAutoRules — авто-выход, затем авто-добор. Пока идёт принудительное
// закрытие, доборы исключены.
func (e *Engine) runAutoRules(ctx context.Context, marketPx float64) {
	if e.passive.Load() {
		return
	}
	snap := e.snapshot()

	e.posMu.Lock()
	totalAdds := 0
	for _, s := range models.Sides() {
		totalAdds += e.sides[s].addCount
	}
	e.posMu.Unlock()

	if dec, ok := EvaluateAutoExit(e.config(), snap, totalAdds); ok {
		e.emitWarning("auto exit: %s", dec.Reason)
		if err := e.ExecuteAuthoritativeExit(ctx, string(dec.Rule)); err != nil {
			e.emitError("auto exit: %v", err)
		}
		return
	}

	if e.authExitFlag.IsSet() || marketPx <= 0 {
		return
	}
	e.runAutoAdd(ctx, marketPx)
}

func (e *Engine) runAutoAdd(ctx context.Context, marketPx float64) {
	cfg := e.config()
	if !cfg.AutoAdd {
		return
	}

	for _, s := range models.Sides() {
		e.posMu.Lock()
		st := e.sides[s]
		in := AddInput{
			Side:        s,
			EntryPx:     st.pos.EntryPrice,
			LastAddPx:   st.lastAddPx,
			MarketPx:    marketPx,
			PosNotional: st.pos.Notional,
			Count:       st.addCount,
			BudgetUsed:  st.addBudgetUsed,
		}
		inPos := st.pos.InPosition
		if in.PosNotional == 0 {
			in.PosNotional = st.pos.Qty * st.pos.EntryPrice
		}
		e.posMu.Unlock()

		if !inPos {
			continue
		}
		dec, ok := EvaluateAutoAdd(cfg, in)
		if !ok {
			continue
		}

		logger.Info("auto add: %s", dec.Reason)
		if _, _, err := e.placeEntry(ctx, s, marketPx, dec.NotionalUSD); err != nil {
			e.emitError("auto add %s: %v", s, err)
			continue
		}
		e.posMu.Lock()
		st.addCount++
		st.lastAddPx = marketPx
		st.addBudgetUsed += dec.NotionalUSD
		e.posMu.Unlock()
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
