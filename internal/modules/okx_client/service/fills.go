package service

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// GetFills — исполнения за период (свип реализованного PnL).
// begin нулевой — вся доступная история (последние 3 дня у OKX).
func (c *Client) GetFills(ctx context.Context, instID string, begin time.Time) ([]models.Fill, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	if instID != "" {
		q.Set("instId", instID)
	}
	if !begin.IsZero() {
		q.Set("begin", strconv.FormatInt(begin.UnixMilli(), 10))
	}

	env, apiErr := c.Request(ctx, "GET", "/api/v5/trade/fills", q, nil, 2)
	if apiErr != nil {
		return nil, apiErr
	}
	if !env.Ok() {
		return nil, errors.Errorf("fills: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []rawFill
	if err := env.Into(&data); err != nil {
		return nil, errors.Wrap(err, "fills decode")
	}

	res := make([]models.Fill, 0, len(data))
	for _, d := range data {
		var ts time.Time
		if ms := helper.ParseFloat(d.Ts); ms > 0 {
			ts = time.UnixMilli(int64(ms))
		}
		res = append(res, models.Fill{
			TradeID: d.TradeID,
			OrdID:   d.OrdID,
			InstID:  d.InstID,
			Side:    d.Side,
			PosSide: d.PosSide,
			Px:      helper.ParseFloat(d.FillPx),
			Sz:      helper.ParseFloat(d.FillSz),
			Pnl:     helper.ParseFloat(d.FillPnl),
			Fee:     helper.ParseFloat(d.Fee),
			Ts:      ts,
		})
	}
	return res, nil
}
