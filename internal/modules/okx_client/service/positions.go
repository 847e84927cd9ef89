package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// GetPositions — открытые позиции по инструменту. Нулевые записи отфильтрованы.
func (c *Client) GetPositions(ctx context.Context, instID string) ([]models.OpenPosition, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	if instID != "" {
		q.Set("instId", instID)
	}

	env, apiErr := c.Request(ctx, "GET", "/api/v5/account/positions", q, nil, 2)
	if apiErr != nil {
		return nil, apiErr
	}
	if !env.Ok() {
		return nil, errors.Errorf("positions: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []rawPosition
	if err := env.Into(&data); err != nil {
		return nil, errors.Wrap(err, "positions decode")
	}

	res := make([]models.OpenPosition, 0, len(data))
	for _, d := range data {
		pos := helper.ParseFloat(d.Pos)
		if pos == 0 {
			continue
		}
		upl := helper.ParseFloat(d.UplLastPx)
		if upl == 0 {
			upl = helper.ParseFloat(d.Upl)
		}
		res = append(res, models.OpenPosition{
			InstID:      d.InstID,
			PosSide:     d.PosSide,
			Qty:         pos,
			AvgPx:       helper.ParseFloat(d.AvgPx),
			LiqPx:       helper.ParseFloat(d.LiqPx),
			Upl:         upl,
			Lever:       helper.ParseFloat(d.Lever),
			MgnMode:     d.MgnMode,
			NotionalUsd: helper.ParseFloat(d.NotionalUsd),
		})
	}
	return res, nil
}
