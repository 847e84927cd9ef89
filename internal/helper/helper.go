package helper

import (
	"math"
	"strconv"
	"strings"
)

// PrecisionFromStep — число знаков после точки у шага ("0.01" -> 2, "1" -> 0).
// Шаги вида "1e-8" биржа не отдаёт, но на всякий случай парсим через float.
func PrecisionFromStep(step string) int {
	step = strings.TrimRight(strings.TrimSpace(step), "0")
	if i := strings.IndexByte(step, '.'); i >= 0 {
		return len(step) - i - 1
	}
	if f, err := strconv.ParseFloat(step, 64); err == nil && f > 0 && f < 1 {
		return int(math.Ceil(-math.Log10(f)))
	}
	return 0
}

// RoundToStep — округление вниз к ближайшему кратному шага.
// Деньги считаем во float64, поэтому добавляем эпсилон перед floor,
// чтобы 0.30000000000000004 не резался до 0.2 при шаге 0.1.
func RoundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := math.Floor(v/step + 1e-9)
	return roundPrec(n*step, PrecisionFromStepF(step))
}

// RoundToTick — округление цены к тику, к ближайшему (не вниз).
func RoundToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	n := math.Round(px / tick)
	return roundPrec(n*tick, PrecisionFromStepF(tick))
}

// PrecisionFromStepF — то же, что PrecisionFromStep, для уже распарсенного шага.
func PrecisionFromStepF(step float64) int {
	if step <= 0 || step >= 1 {
		return 0
	}
	return int(math.Ceil(-math.Log10(step) - 1e-9))
}

func roundPrec(v float64, prec int) float64 {
	p := math.Pow10(prec)
	return math.Round(v*p) / p
}

// FormatFloat — компактная запись числа для тел запросов ("2978" вместо "2978.000000").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFloat — OKX отдаёт числа строками; пустая строка это 0.
func ParseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
