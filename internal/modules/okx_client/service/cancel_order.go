package service

import (
	"context"

	"github.com/pkg/errors"
)

// Код OKX "ордер уже исполнен или отменён".
const CodeAlreadyGone = "51001"

// CancelOrder — отмена обычного ордера. Возвращает sCode, чтобы вызывающий
// мог отличить 51001 (гонка с исполнением) от настоящего отказа.
func (c *Client) CancelOrder(ctx context.Context, instID, ordID string) (string, error) {
	body := map[string]any{
		"instId": instID,
		"ordId":  ordID,
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/trade/cancel-order", nil, body, 1)
	if apiErr != nil {
		return "", apiErr
	}

	var data []tradeAck
	if err := env.Into(&data); err != nil {
		return "", errors.Wrap(err, "cancel ack decode")
	}
	if len(data) == 0 {
		return env.Code, errors.Errorf("cancel %s: empty data code=%s msg=%s", ordID, env.Code, env.Msg)
	}
	d := data[0]
	if !env.Ok() && d.SCode == "" {
		return env.Code, errors.Errorf("cancel %s: code=%s msg=%s", ordID, env.Code, env.Msg)
	}
	if d.SCode != "0" {
		return d.SCode, errors.Errorf("cancel %s reject: sCode=%s sMsg=%s", ordID, d.SCode, d.SMsg)
	}
	return "0", nil
}
