package models

// Instrument — торговые правила инструмента с /api/v5/public/instruments.
// Неизменен после загрузки, перечитывается при смене символа.
type Instrument struct {
	InstID       string
	TickSz       float64
	LotSz        float64
	MinSz        float64
	CtVal        float64 // эффективный ctVal*ctMult
	MaxMktSz     float64
	PricePrec    int
	QtyPrec      int
	State        string
}
