package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
	wss "swap_bot/internal/modules/okx_websocket/service"
	"swap_bot/internal/notify"
	"swap_bot/pkg/logger"
)

// restAPI — поверхность REST-клиента, которой пользуется движок.
// В тестах подменяется фейком.
type restAPI interface {
	SyncServerTime(ctx context.Context) error
	GetInstrumentMeta(ctx context.Context, instID string) (models.Instrument, error)
	GetBalanceEquity(ctx context.Context) (total, avail float64, err error)
	GetPositions(ctx context.Context, instID string) ([]models.OpenPosition, error)
	GetPendingOrders(ctx context.Context, instID string) ([]models.PendingOrder, error)
	GetOrder(ctx context.Context, instID, ordID string) (models.PendingOrder, error)
	GetPendingAlgos(ctx context.Context, instID string) ([]models.AlgoOrder, error)
	GetLastPrice(ctx context.Context, instID string) (float64, error)
	GetCandles(ctx context.Context, instID, bar string, limit int) ([]models.Candle, error)
	GetFills(ctx context.Context, instID string, begin time.Time) ([]models.Fill, error)
	PlaceLimit(ctx context.Context, r LimitReq) (string, error)
	PlaceMarketClose(ctx context.Context, instID, tdMode, posSide string, sz float64) (string, error)
	PlaceAlgo(ctx context.Context, r AlgoReq) (string, error)
	CancelOrder(ctx context.Context, instID, ordID string) (sCode string, err error)
	CancelAlgos(ctx context.Context, instID string, algoIDs []string) error
	CancelAllAfter(ctx context.Context, timeoutSec int) error
	AdjustMargin(ctx context.Context, instID, posSide, amtType string, amt float64) error
	SetLeverage(ctx context.Context, instID, mgnMode, posSide string, lever float64) error
	SetPositionMode(ctx context.Context, posMode string) error
	CredentialsInvalid() bool
	SetCredentials(cr config.Credentials)
}

// LimitReq и AlgoReq дублируют запросы клиента, чтобы движок не тянул его пакет.
type LimitReq struct {
	InstID        string
	TdMode        string
	Side          string
	PosSide       string
	Px            float64
	Sz            float64
	TpTriggerPx   float64
	SlTriggerPx   float64
	TriggerPxType string
}

type AlgoReq struct {
	InstID        string
	TdMode        string
	PosSide       string
	Sz            float64
	TpTriggerPx   float64
	SlTriggerPx   float64
	TriggerPxType string
}

// triggerFlag — защёлка at-most-once диспетчеризации обработчика.
type triggerFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *triggerFlag) TrySet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return false
	}
	f.set = true
	return true
}

func (f *triggerFlag) Clear() {
	f.mu.Lock()
	f.set = false
	f.mu.Unlock()
}

func (f *triggerFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// sideState — всё состояние одной стороны под posMu.
type sideState struct {
	pos   models.Position
	exits models.ExitOrderSet
	state models.SideState

	tpHit triggerFlag
	slHit triggerFlag

	addCount      int
	lastAddPx     float64
	addBudgetUsed float64
}

type marketData interface {
	LastPrice() (float64, time.Time)
	Close()
}

// Engine — торговый движок. Вся работа с биржей и состоянием проходит через него.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	api  restAPI
	pub  marketData
	priv *wss.PrivateStream
	gate *wss.Gate
	emit notify.Emitter
	tg   *notify.Telegram

	journal *Journal // nil — журнал выключен

	instMu sync.RWMutex
	inst   models.Instrument

	// Порядок захвата: posMu раньше acctMu, всегда.
	posMu         sync.Mutex
	sides         map[models.Side]*sideState
	pending       map[string]*models.PendingEntry
	confirmTimers map[string]*time.Timer

	acctMu       sync.Mutex
	snap         models.CapitalSnapshot
	lastAcctPush time.Time
	clampWarned  bool
	realized     float64
	feesPaid     float64
	seenFills    map[string]bool
	sessionStart time.Time

	candleMu   sync.Mutex
	lastCandle models.Candle

	authExitFlag    triggerFlag
	batchUpdateFlag triggerFlag

	running        atomic.Bool
	passive        atomic.Bool
	entriesEnabled atomic.Bool

	startMu   sync.Mutex
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

func NewEngine(cfg *config.Config, api restAPI, pub marketData, priv *wss.PrivateStream, gate *wss.Gate, emit notify.Emitter, tg *notify.Telegram, journal *Journal) *Engine {
	e := &Engine{
		cfg:           cfg,
		api:           api,
		pub:           pub,
		priv:          priv,
		gate:          gate,
		emit:          emit,
		tg:            tg,
		journal:       journal,
		sides:         map[models.Side]*sideState{},
		pending:       map[string]*models.PendingEntry{},
		confirmTimers: map[string]*time.Timer{},
		seenFills:     map[string]bool{},
	}
	for _, s := range models.Sides() {
		e.sides[s] = &sideState{state: models.StateFlat}
		e.sides[s].pos.Side = s
	}
	return e
}

func (e *Engine) config() *config.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

func (e *Engine) symbol() string { return e.config().Symbol }

func (e *Engine) instrument() models.Instrument {
	e.instMu.RLock()
	defer e.instMu.RUnlock()
	return e.inst
}

// CheckCredentials — лёгкая проверка ключей запросом баланса.
func (e *Engine) CheckCredentials(ctx context.Context) error {
	if _, _, err := e.api.GetBalanceEquity(ctx); err != nil {
		return errors.Wrap(err, "credentials check")
	}
	return nil
}

// Stop — выключает только входы. Управляющий цикл и открытые позиции живут.
func (e *Engine) Stop() {
	e.entriesEnabled.Store(false)
	logger.Info("entries disabled")
	e.emitStatus("entries disabled")
}

// Shutdown — полная остановка. Безопасен без предшествующего Start.
func (e *Engine) Shutdown() {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.entriesEnabled.Store(false)
	if !e.running.Swap(false) {
		return
	}

	// Dead-man switch: даже если процесс умрёт до отмен, биржа снимет
	// ордера сама через 10 секунд.
	if !e.passive.Load() {
		dmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.api.CancelAllAfter(dmCtx, 10); err != nil {
			logger.Debug("cancel-all-after: %v", err)
		}
		cancel()
	}

	if e.cancelRun != nil {
		e.cancelRun()
	}
	if e.pub != nil {
		e.pub.Close()
	}
	if e.priv != nil {
		e.priv.Close()
	}

	e.posMu.Lock()
	for id, t := range e.confirmTimers {
		t.Stop()
		delete(e.confirmTimers, id)
	}
	e.posMu.Unlock()

	e.wg.Wait()
	logger.Info("engine stopped")
	e.emitStatus("stopped")
}

func (e *Engine) emitStatus(msg string) {
	cfg := e.config()
	e.emit.Emit(models.EventBotStatus, models.BotStatusEvent{
		Running:  e.running.Load(),
		Passive:  e.passive.Load(),
		Symbol:   cfg.Symbol,
		DemoMode: cfg.DemoMode,
		Message:  msg,
	})
}

func (e *Engine) emitError(format string, args ...any) {
	logger.Error(format, args...)
	e.emit.Emit(models.EventError, models.NoticeEvent{Message: errors.Errorf(format, args...).Error()})
}

func (e *Engine) emitWarning(format string, args ...any) {
	logger.Warn(format, args...)
	e.emit.Emit(models.EventWarning, models.NoticeEvent{Message: errors.Errorf(format, args...).Error()})
}

func (e *Engine) emitSuccess(format string, args ...any) {
	logger.Info(format, args...)
	e.emit.Emit(models.EventSuccess, models.NoticeEvent{Message: errors.Errorf(format, args...).Error()})
}
