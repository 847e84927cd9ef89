package service

import (
	"context"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
)

// AlgoExitReq — условный ордер выхода. Всегда reduceOnly.
type AlgoExitReq struct {
	InstID        string
	TdMode        string
	PosSide       string
	Sz            float64
	TpTriggerPx   float64 // 0 — без TP
	SlTriggerPx   float64 // 0 — без SL
	TriggerPxType string
}

// PlaceAlgoExit — ставит conditional TP и/или SL на позицию.
func (c *Client) PlaceAlgoExit(ctx context.Context, r AlgoExitReq) (string, error) {
	side := "sell"
	if r.PosSide == "short" {
		side = "buy"
	}

	body := map[string]any{
		"instId":     r.InstID,
		"tdMode":     r.TdMode,
		"side":       side,
		"posSide":    r.PosSide,
		"ordType":    "conditional",
		"sz":         helper.FormatFloat(r.Sz),
		"reduceOnly": true,
	}
	if r.TpTriggerPx > 0 {
		body["tpTriggerPx"] = helper.FormatFloat(r.TpTriggerPx)
		body["tpOrdPx"] = "-1"
		body["tpTriggerPxType"] = r.TriggerPxType
	}
	if r.SlTriggerPx > 0 {
		body["slTriggerPx"] = helper.FormatFloat(r.SlTriggerPx)
		body["slOrdPx"] = "-1"
		body["slTriggerPxType"] = r.TriggerPxType
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/trade/order-algo", nil, body, 1)
	if apiErr != nil {
		return "", apiErr
	}

	var data []tradeAck
	if err := env.Into(&data); err != nil {
		return "", errors.Wrap(err, "algo ack decode")
	}
	if len(data) == 0 {
		return "", errors.Errorf("algo: empty data code=%s msg=%s", env.Code, env.Msg)
	}
	d := data[0]
	if !env.Ok() || d.SCode != "0" {
		return "", errors.Errorf("algo reject: code=%s msg=%s sCode=%s sMsg=%s", env.Code, env.Msg, d.SCode, d.SMsg)
	}
	return d.AlgoID, nil
}
