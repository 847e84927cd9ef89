package models

// CapitalSnapshot — производное состояние капитала, пересчитывается каждый цикл,
// нигде не персистится.
type CapitalSnapshot struct {
	TotalEquity      float64
	AvailableBalance float64

	// MaxAllowed — сконфигурированный лимит, зажатый по equity.
	MaxAllowed float64
	// MaxAmount — MaxAllowed / rate_divisor (маржа на один цикл).
	MaxAmount float64
	// Clamped — лимит был урезан по equity (для log-once).
	Clamped bool

	// UsedNotional — живые позиции + отложенные входы, в notional.
	UsedNotional float64
	// PosNotional — только живые позиции (база для fee-порогов).
	PosNotional float64
	// RemainingNotional = MaxAmount*leverage - UsedNotional (может быть < 0).
	RemainingNotional float64

	// SizeFee — PosNotional * fee% / 100 (одна нога).
	SizeFee float64
	// TradeFees — (used+remaining)*fee% — оценка для дашборда.
	TradeFees float64

	// Upl — суммарный нереализованный PnL открытых позиций.
	Upl float64
	// NetProfit — Upl минус комиссия за вход+выход.
	NetProfit float64

	ActivePositions int
	PendingCount    int
}

// RoundTripFee — комиссия за вход+выход. Все сравнения с профит-таргетами
// считаются от неё, не от одной ноги.
func (c CapitalSnapshot) RoundTripFee() float64 { return c.SizeFee * 2 }

// ExitRule — какое правило авто-выхода сработало.
type ExitRule string

const (
	ExitNone         ExitRule = ""
	ExitManualProfit ExitRule = "manual_profit"
	ExitCalProfit    ExitRule = "cal_profit"
	ExitCalLoss      ExitRule = "cal_loss"
	ExitSizeProfit   ExitRule = "size_profit"
	ExitSizeLoss     ExitRule = "size_loss"
	ExitAboveZero    ExitRule = "above_zero"
	ExitAddPosTarget ExitRule = "add_pos_target"
)

// ExitDecision — результат EvaluateAutoExit: первое сработавшее правило.
type ExitDecision struct {
	Rule      ExitRule
	Threshold float64
	Reason    string
}

// AddDecision — результат EvaluateAutoAdd.
type AddDecision struct {
	Side        Side
	NotionalUSD float64
	Step        int // номер добора (1 = первый)
	Reason      string
}
