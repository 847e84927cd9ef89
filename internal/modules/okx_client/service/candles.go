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

// GetCandles — последние свечи таймфрейма, новые первыми (как отдаёт биржа).
// bar в нотации OKX: 1m, 5m, 15m, 1H ...
func (c *Client) GetCandles(ctx context.Context, instID, bar string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	env, apiErr := c.Request(ctx, "GET", "/api/v5/market/candles", q, nil, 2)
	if apiErr != nil {
		return nil, apiErr
	}
	if !env.Ok() {
		return nil, errors.Errorf("candles %s %s: code=%s msg=%s", instID, bar, env.Code, env.Msg)
	}

	// Строки вида [ts, o, h, l, c, vol, ..., confirm]
	var data [][]string
	if err := env.Into(&data); err != nil {
		return nil, errors.Wrap(err, "candles decode")
	}

	res := make([]models.Candle, 0, len(data))
	for _, row := range data {
		if len(row) < 6 {
			continue
		}
		var ts time.Time
		if ms := helper.ParseFloat(row[0]); ms > 0 {
			ts = time.UnixMilli(int64(ms))
		}
		cd := models.Candle{
			Ts:    ts,
			Open:  helper.ParseFloat(row[1]),
			High:  helper.ParseFloat(row[2]),
			Low:   helper.ParseFloat(row[3]),
			Close: helper.ParseFloat(row[4]),
			Vol:   helper.ParseFloat(row[5]),
		}
		cd.Confirm = row[len(row)-1] == "1"
		res = append(res, cd)
	}
	return res, nil
}
