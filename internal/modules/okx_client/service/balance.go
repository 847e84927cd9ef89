package service

import (
	"context"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
)

// Balance — сводка по счёту в USDT.
type Balance struct {
	TotalEquity      float64
	AvailableBalance float64
}

func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	env, apiErr := c.Request(ctx, "GET", "/api/v5/account/balance", nil, nil, 2)
	if apiErr != nil {
		return Balance{}, apiErr
	}
	if !env.Ok() {
		return Balance{}, errors.Errorf("balance: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []struct {
		TotalEq string `json:"totalEq"`
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
			AvailEq  string `json:"availEq"`
			Eq       string `json:"eq"`
		} `json:"details"`
	}
	if err := env.Into(&data); err != nil {
		return Balance{}, errors.Wrap(err, "balance decode")
	}
	if len(data) == 0 {
		return Balance{}, errors.New("balance: empty data")
	}

	b := Balance{TotalEquity: helper.ParseFloat(data[0].TotalEq)}
	for _, d := range data[0].Details {
		if d.Ccy != "USDT" {
			continue
		}
		b.AvailableBalance = helper.ParseFloat(d.AvailBal)
		if b.AvailableBalance == 0 {
			b.AvailableBalance = helper.ParseFloat(d.AvailEq)
		}
	}
	return b, nil
}
