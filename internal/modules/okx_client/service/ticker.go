package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
)

// GetLastPrice — последняя цена сделки по инструменту.
func (c *Client) GetLastPrice(ctx context.Context, instID string) (float64, error) {
	q := url.Values{}
	q.Set("instId", instID)

	env, apiErr := c.Request(ctx, "GET", "/api/v5/market/ticker", q, nil, 2)
	if apiErr != nil {
		return 0, apiErr
	}
	if !env.Ok() {
		return 0, errors.Errorf("ticker %s: code=%s msg=%s", instID, env.Code, env.Msg)
	}

	var data []struct {
		Last string `json:"last"`
	}
	if err := env.Into(&data); err != nil {
		return 0, errors.Wrap(err, "ticker decode")
	}
	if len(data) == 0 {
		return 0, errors.Errorf("ticker %s: empty data", instID)
	}

	px := helper.ParseFloat(data[0].Last)
	if px <= 0 {
		return 0, errors.Errorf("ticker %s: bad last price %q", instID, data[0].Last)
	}
	return px, nil
}
