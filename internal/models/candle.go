package models

import "time"

// Candle — свеча OHLC. Confirm=true — свеча закрыта.
type Candle struct {
	Ts      time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Vol     float64
	Confirm bool
}

// Range — максимальный разброс свечи.
func (c Candle) Range() float64 { return c.High - c.Low }

// Body — модуль тела свечи.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}
