package service

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// GetPendingOrders — неисполненные обычные ордера по инструменту.
func (c *Client) GetPendingOrders(ctx context.Context, instID string) ([]models.PendingOrder, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	if instID != "" {
		q.Set("instId", instID)
	}

	env, apiErr := c.Request(ctx, "GET", "/api/v5/trade/orders-pending", q, nil, 2)
	if apiErr != nil {
		return nil, apiErr
	}
	if !env.Ok() {
		return nil, errors.Errorf("orders-pending: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []rawOrder
	if err := env.Into(&data); err != nil {
		return nil, errors.Wrap(err, "orders-pending decode")
	}

	res := make([]models.PendingOrder, 0, len(data))
	for _, d := range data {
		res = append(res, toPendingOrder(d))
	}
	return res, nil
}

func toPendingOrder(d rawOrder) models.PendingOrder {
	var ctime time.Time
	if ms := helper.ParseFloat(d.CTime); ms > 0 {
		ctime = time.UnixMilli(int64(ms))
	}
	return models.PendingOrder{
		OrdID:      d.OrdID,
		InstID:     d.InstID,
		Side:       d.Side,
		PosSide:    d.PosSide,
		Px:         helper.ParseFloat(d.Px),
		Sz:         helper.ParseFloat(d.Sz),
		AccFillSz:  helper.ParseFloat(d.AccFillSz),
		State:      d.State,
		OrdType:    d.OrdType,
		ReduceOnly: d.ReduceOnly == "true",
		CTime:      ctime,
	}
}

// GetOrder — состояние конкретного ордера (подтверждающий полл).
func (c *Client) GetOrder(ctx context.Context, instID, ordID string) (models.PendingOrder, error) {
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("ordId", ordID)

	env, apiErr := c.Request(ctx, "GET", "/api/v5/trade/order", q, nil, 2)
	if apiErr != nil {
		return models.PendingOrder{}, apiErr
	}
	if !env.Ok() {
		return models.PendingOrder{}, errors.Errorf("order %s: code=%s msg=%s", ordID, env.Code, env.Msg)
	}

	var data []rawOrder
	if err := env.Into(&data); err != nil {
		return models.PendingOrder{}, errors.Wrap(err, "order decode")
	}
	if len(data) == 0 {
		return models.PendingOrder{}, errors.Errorf("order %s not found", ordID)
	}
	return toPendingOrder(data[0]), nil
}
