package service

import (
	"context"

	"github.com/pkg/errors"
)

// Код OKX "режим уже установлен" — не ошибка для нас.
const codePosModeUnchanged = "59000"

// SetPositionMode — long_short_mode либо net_mode, на весь аккаунт.
func (c *Client) SetPositionMode(ctx context.Context, posMode string) error {
	body := map[string]any{
		"posMode": posMode,
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/account/set-position-mode", nil, body, 1)
	if apiErr != nil {
		return apiErr
	}
	if !env.Ok() && env.Code != codePosModeUnchanged {
		return errors.Errorf("set-position-mode: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}
