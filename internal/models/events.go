package models

import "time"

// Имена событий на границе UI. Контракт с фронтом, не переименовывать.
const (
	EventConsoleLog     = "console_log"
	EventBotStatus      = "bot_status"
	EventAccountUpdate  = "account_update"
	EventTradesUpdate   = "trades_update"
	EventPositionUpdate = "position_update"
	EventError          = "error"
	EventWarning        = "warning"
	EventSuccess        = "success"
)

type ConsoleLogEvent struct {
	Message   string `json:"message"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
}

type BotStatusEvent struct {
	Running  bool   `json:"running"`
	Passive  bool   `json:"passive"`
	Symbol   string `json:"symbol"`
	DemoMode bool   `json:"demo_mode"`
	Message  string `json:"message,omitempty"`
}

type AccountUpdateEvent struct {
	TotalEquity      float64 `json:"total_equity"`
	AvailableBalance float64 `json:"available_balance"`
	UsedAmount       float64 `json:"used_amount"`
	RemainingAmount  float64 `json:"remaining_amount"`
	MaxAmount        float64 `json:"max_amount"`
	TradeFees        float64 `json:"trade_fees"`
	NetProfit        float64 `json:"net_profit"`
	ActivePositions  int     `json:"active_positions"`
	PendingOrders    int     `json:"pending_orders"`
}

type PositionUpdateEvent struct {
	Side          string  `json:"side"`
	InPosition    bool    `json:"in_position"`
	EntryPrice    float64 `json:"entry_price"`
	Qty           float64 `json:"qty"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	LiqPrice      float64 `json:"liq_price"`
	TakeProfit    float64 `json:"take_profit"`
	StopLoss      float64 `json:"stop_loss"`
	State         string  `json:"state"`
}

type TradeRow struct {
	TradeID string  `json:"trade_id"`
	OrderID string  `json:"order_id"`
	Side    string  `json:"side"`
	PosSide string  `json:"pos_side"`
	Price   float64 `json:"price"`
	Qty     float64 `json:"qty"`
	Pnl     float64 `json:"pnl"`
	Fee     float64 `json:"fee"`
	Time    string  `json:"time"`
}

type TradesUpdateEvent struct {
	Trades      []TradeRow `json:"trades"`
	RealizedPnl float64    `json:"realized_pnl"`
	FeesPaid    float64    `json:"fees_paid"`
}

type NoticeEvent struct {
	Message string `json:"message"`
}

func NowStamp() string { return time.Now().UTC().Format("2006-01-02 15:04:05") }
