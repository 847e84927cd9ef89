package service

import (
	"context"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
)

// SetLeverage — плечо на инструмент. posSide обязателен в long_short_mode
// при изолированной марже, в остальных случаях пустой.
func (c *Client) SetLeverage(ctx context.Context, instID, mgnMode, posSide string, lever float64) error {
	body := map[string]any{
		"instId":  instID,
		"lever":   helper.FormatFloat(lever),
		"mgnMode": mgnMode,
	}
	if posSide != "" {
		body["posSide"] = posSide
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/account/set-leverage", nil, body, 1)
	if apiErr != nil {
		return apiErr
	}
	if !env.Ok() {
		return errors.Errorf("set-leverage: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}
