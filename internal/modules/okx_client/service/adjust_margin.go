package service

import (
	"context"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
)

// AdjustMargin — добавить/снять маржу изолированной позиции.
// amtType: "add" | "reduce".
func (c *Client) AdjustMargin(ctx context.Context, instID, posSide, amtType string, amt float64) error {
	body := map[string]any{
		"instId":  instID,
		"posSide": posSide,
		"type":    amtType,
		"amt":     helper.FormatFloat(amt),
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/account/position/margin-balance", nil, body, 1)
	if apiErr != nil {
		return apiErr
	}
	if !env.Ok() {
		return errors.Errorf("margin-balance: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}
