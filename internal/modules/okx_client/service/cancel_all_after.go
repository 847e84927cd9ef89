package service

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// CancelAllAfter — dead-man switch биржи: отменить все ордера через timeout
// секунд, если таймер не продлить. timeout=0 снимает таймер.
func (c *Client) CancelAllAfter(ctx context.Context, timeoutSec int) error {
	body := map[string]any{
		"timeOut": strconv.Itoa(timeoutSec),
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/trade/cancel-all-after", nil, body, 1)
	if apiErr != nil {
		return apiErr
	}
	if !env.Ok() {
		return errors.Errorf("cancel-all-after: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}
