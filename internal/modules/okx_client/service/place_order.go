package service

import (
	"context"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// AttachedTPSL — TP/SL, прикрепляемые к лимитному входу при размещении.
type AttachedTPSL struct {
	TpTriggerPx   float64
	SlTriggerPx   float64
	TriggerPxType string // last | mark | index
}

// LimitOrderReq — параметры лимитного входа.
type LimitOrderReq struct {
	InstID  string
	TdMode  string // cross | isolated
	Side    string // buy | sell
	PosSide string // long | short | net
	Px      float64
	Sz      float64 // контракты
	Attach  *AttachedTPSL
}

// PlaceLimitOrder — лимитный вход, опционально с прикреплённым TP/SL.
func (c *Client) PlaceLimitOrder(ctx context.Context, r LimitOrderReq) (string, error) {
	body := map[string]any{
		"instId":  r.InstID,
		"tdMode":  r.TdMode,
		"side":    r.Side,
		"posSide": r.PosSide,
		"ordType": "limit",
		"px":      helper.FormatFloat(r.Px),
		"sz":      helper.FormatFloat(r.Sz),
	}
	if r.Attach != nil {
		attach := map[string]any{}
		if r.Attach.TpTriggerPx > 0 {
			attach["tpTriggerPx"] = helper.FormatFloat(r.Attach.TpTriggerPx)
			attach["tpOrdPx"] = "-1"
			attach["tpTriggerPxType"] = r.Attach.TriggerPxType
		}
		if r.Attach.SlTriggerPx > 0 {
			attach["slTriggerPx"] = helper.FormatFloat(r.Attach.SlTriggerPx)
			attach["slOrdPx"] = "-1"
			attach["slTriggerPxType"] = r.Attach.TriggerPxType
		}
		body["attachAlgoOrds"] = []map[string]any{attach}
	}

	return c.placeOrder(ctx, body)
}

// PlaceMarketClose — рыночное закрытие позиции, всегда reduceOnly.
// sz со знаком: у net-позиции сторона закрытия видна только по нему.
func (c *Client) PlaceMarketClose(ctx context.Context, instID, tdMode, posSide string, sz float64) (string, error) {
	side := models.ResolveSideByQty(posSide, sz).CloseOrderSide()
	if sz < 0 {
		sz = -sz
	}
	body := map[string]any{
		"instId":     instID,
		"tdMode":     tdMode,
		"side":       side,
		"posSide":    posSide,
		"ordType":    "market",
		"sz":         helper.FormatFloat(sz),
		"reduceOnly": true,
	}
	return c.placeOrder(ctx, body)
}

func (c *Client) placeOrder(ctx context.Context, body map[string]any) (string, error) {
	env, apiErr := c.Request(ctx, "POST", "/api/v5/trade/order", nil, body, 1)
	if apiErr != nil {
		return "", apiErr
	}

	var data []tradeAck
	if err := env.Into(&data); err != nil {
		return "", errors.Wrap(err, "order ack decode")
	}
	if len(data) == 0 {
		return "", errors.Errorf("order: empty data code=%s msg=%s", env.Code, env.Msg)
	}
	d := data[0]
	if !env.Ok() || d.SCode != "0" {
		return "", errors.Errorf("order reject: code=%s msg=%s sCode=%s sMsg=%s", env.Code, env.Msg, d.SCode, d.SMsg)
	}
	return d.OrdID, nil
}
