package models

import "time"

// SideState — фаза жизненного цикла стороны.
type SideState string

const (
	StateFlat         SideState = "flat"
	StateEntryPending SideState = "entry_pending"
	StateActive       SideState = "active"
	StateClosingTP    SideState = "closing_tp"
	StateClosingSL    SideState = "closing_sl"
	StateClosingAuth  SideState = "closing_auth"
)

// Position — подтверждённое биржей состояние одной стороны.
// Пишет сюда только реконсайлер, по данным пушей/поллов OKX.
// Инвариант: InPosition == (Qty != 0).
type Position struct {
	Side          Side
	InPosition    bool
	EntryPrice    float64
	Qty           float64 // контракты * contractSize; знак имеет смысл только в net-режиме
	Notional      float64 // notionalUsd биржи; 0 — считаем Qty*EntryPrice
	LiqPrice      float64
	UnrealizedPnl float64
	Leverage      float64
	MgnMode       string // cross / isolated
	TakeProfit    float64
	StopLoss      float64
}

// ExitOrderSet — живые TP/SL algo-ордера стороны. Не больше одного каждого вида.
type ExitOrderSet struct {
	TPAlgoID string
	SLAlgoID string
}

func (e ExitOrderSet) Empty() bool { return e.TPAlgoID == "" && e.SLAlgoID == "" }

// Статусы OKX для лимитного входа.
const (
	EntryStatusNew       = "live"
	EntryStatusPartially = "partially_filled"
	EntryStatusFilled    = "filled"
	EntryStatusCanceled  = "canceled"
	EntryStatusFailed    = "failed"
)

// PendingEntry — отслеживаемый лимитный вход. Мапа ordId -> PendingEntry —
// единственный источник правды "какие ордера мы ждём".
type PendingEntry struct {
	OrderID    string
	Signal     int // +1 long, -1 short
	LimitPrice float64
	Qty        float64 // контракты * contractSize
	PlacedAt   time.Time
	Status     string
	CumFilled  float64
}

func (p PendingEntry) Side() Side { return SideFromSignal(p.Signal) }

// CloseReason — классификация закрытия позиции (best-effort).
type CloseReason string

const (
	CloseByTP     CloseReason = "tp"
	CloseBySL     CloseReason = "sl"
	CloseByAuth   CloseReason = "authoritative"
	CloseByManual CloseReason = "manual"
)

// OpenPosition — сырые данные позиции с биржи (poll или push).
type OpenPosition struct {
	InstID      string
	PosSide     string // long/short/net
	Qty         float64
	AvgPx       float64
	LiqPx       float64
	Upl         float64
	Lever       float64
	MgnMode     string
	NotionalUsd float64
}

// PendingOrder — сырые данные отложенного ордера с биржи.
type PendingOrder struct {
	OrdID      string
	InstID     string
	Side       string // buy/sell
	PosSide    string
	Px         float64
	Sz         float64
	AccFillSz  float64
	State      string
	OrdType    string
	ReduceOnly bool
	CTime      time.Time
}

// AlgoOrder — сырые данные условного (TP/SL) ордера.
type AlgoOrder struct {
	AlgoID      string
	InstID      string
	Side        string
	PosSide     string
	TpTriggerPx float64
	SlTriggerPx float64
	Sz          float64
}

// Fill — исполнение сделки (для realized-PnL свипа и журнала).
type Fill struct {
	TradeID string
	OrdID   string
	InstID  string
	Side    string
	PosSide string
	Px      float64
	Sz      float64
	Pnl     float64
	Fee     float64 // у OKX отрицательная
	Ts      time.Time
}
