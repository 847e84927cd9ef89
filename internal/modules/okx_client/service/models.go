package service

// Сырые структуры ответов OKX. Числа — строками, парсим на границе.

type rawPosition struct {
	InstID      string `json:"instId"`
	PosSide     string `json:"posSide"`
	Pos         string `json:"pos"`
	AvgPx       string `json:"avgPx"`
	LiqPx       string `json:"liqPx"`
	Upl         string `json:"upl"`
	UplLastPx   string `json:"uplLastPx"`
	Lever       string `json:"lever"`
	MgnMode     string `json:"mgnMode"`
	NotionalUsd string `json:"notionalUsd"`
}

type rawOrder struct {
	OrdID      string `json:"ordId"`
	InstID     string `json:"instId"`
	Side       string `json:"side"`
	PosSide    string `json:"posSide"`
	Px         string `json:"px"`
	Sz         string `json:"sz"`
	AccFillSz  string `json:"accFillSz"`
	AvgPx      string `json:"avgPx"`
	State      string `json:"state"`
	OrdType    string `json:"ordType"`
	ReduceOnly string `json:"reduceOnly"`
	CTime      string `json:"cTime"`
}

type rawAlgo struct {
	AlgoID      string `json:"algoId"`
	InstID      string `json:"instId"`
	Side        string `json:"side"`
	PosSide     string `json:"posSide"`
	TpTriggerPx string `json:"tpTriggerPx"`
	SlTriggerPx string `json:"slTriggerPx"`
	Sz          string `json:"sz"`
	State       string `json:"state"`
}

type rawFill struct {
	TradeID string `json:"tradeId"`
	OrdID   string `json:"ordId"`
	InstID  string `json:"instId"`
	Side    string `json:"side"`
	PosSide string `json:"posSide"`
	FillPx  string `json:"fillPx"`
	FillSz  string `json:"fillSz"`
	FillPnl string `json:"fillPnl"`
	Fee     string `json:"fee"`
	Ts      string `json:"ts"`
}

type rawInstrument struct {
	InstID   string `json:"instId"`
	TickSz   string `json:"tickSz"`
	LotSz    string `json:"lotSz"`
	MinSz    string `json:"minSz"`
	CtVal    string `json:"ctVal"`
	CtMult   string `json:"ctMult"`
	MaxMktSz string `json:"maxMktSz"`
	State    string `json:"state"`
}

// tradeAck — per-order статус в ответах /trade/*.
type tradeAck struct {
	OrdID  string `json:"ordId"`
	AlgoID string `json:"algoId"`
	SCode  string `json:"sCode"`
	SMsg   string `json:"sMsg"`
}
