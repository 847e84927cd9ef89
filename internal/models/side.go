package models

// Side — направление позиции. Всё состояние позиций/ордеров ключуется по нему.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

func Sides() []Side { return []Side{Long, Short} }

// Signal — +1 для long, -1 для short (формат сигнала входа).
func (s Side) Signal() int {
	if s == Short {
		return -1
	}
	return 1
}

// OrderSide — сторона ордера OKX ("buy"/"sell") для ОТКРЫТИЯ позиции этой стороны.
func (s Side) OrderSide() string {
	if s == Short {
		return "sell"
	}
	return "buy"
}

// CloseOrderSide — сторона ордера для ЗАКРЫТИЯ позиции этой стороны.
func (s Side) CloseOrderSide() string {
	if s == Short {
		return "buy"
	}
	return "sell"
}

func SideFromSignal(signal int) Side {
	if signal < 0 {
		return Short
	}
	return Long
}

// ResolveSide — единственное место, где "net" позиция маппится на long/short.
// В one-way режиме биржа отдаёт posSide="net": берём сконфигурированное
// направление; direction="both" при net-режиме неоднозначен — по умолчанию long
// (унаследованный tie-break, см. DESIGN.md).
func ResolveSide(posSide string, direction string) Side {
	switch posSide {
	case "long":
		return Long
	case "short":
		return Short
	}
	// net или пусто
	switch direction {
	case "short":
		return Short
	default:
		return Long
	}
}

// ResolveSideByQty — для net-позиций, когда знак размера достовернее конфига.
func ResolveSideByQty(posSide string, qty float64) Side {
	switch posSide {
	case "long":
		return Long
	case "short":
		return Short
	}
	if qty < 0 {
		return Short
	}
	return Long
}
