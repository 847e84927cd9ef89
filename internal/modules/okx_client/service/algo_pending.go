package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// GetPendingAlgos — живые условные (TP/SL) ордера по инструменту.
func (c *Client) GetPendingAlgos(ctx context.Context, instID string) ([]models.AlgoOrder, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("ordType", "conditional")
	if instID != "" {
		q.Set("instId", instID)
	}

	env, apiErr := c.Request(ctx, "GET", "/api/v5/trade/orders-algo-pending", q, nil, 2)
	if apiErr != nil {
		return nil, apiErr
	}
	if !env.Ok() {
		return nil, errors.Errorf("orders-algo-pending: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []rawAlgo
	if err := env.Into(&data); err != nil {
		return nil, errors.Wrap(err, "orders-algo-pending decode")
	}

	res := make([]models.AlgoOrder, 0, len(data))
	for _, d := range data {
		res = append(res, models.AlgoOrder{
			AlgoID:      d.AlgoID,
			InstID:      d.InstID,
			Side:        d.Side,
			PosSide:     d.PosSide,
			TpTriggerPx: helper.ParseFloat(d.TpTriggerPx),
			SlTriggerPx: helper.ParseFloat(d.SlTriggerPx),
			Sz:          helper.ParseFloat(d.Sz),
		})
	}
	return res, nil
}
