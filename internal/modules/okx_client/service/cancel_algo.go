package service

import (
	"context"

	"github.com/pkg/errors"
)

// CancelAlgos — отмена пачки условных ордеров одним запросом.
func (c *Client) CancelAlgos(ctx context.Context, instID string, algoIDs []string) error {
	if len(algoIDs) == 0 {
		return nil
	}

	body := make([]map[string]string, 0, len(algoIDs))
	for _, id := range algoIDs {
		body = append(body, map[string]string{"instId": instID, "algoId": id})
	}

	env, apiErr := c.Request(ctx, "POST", "/api/v5/trade/cancel-algos", nil, body, 1)
	if apiErr != nil {
		return apiErr
	}

	var data []tradeAck
	if err := env.Into(&data); err != nil {
		return errors.Wrap(err, "cancel-algos decode")
	}
	for _, d := range data {
		if d.SCode != "0" && d.SCode != CodeAlreadyGone {
			return errors.Errorf("cancel algo %s reject: sCode=%s sMsg=%s", d.AlgoID, d.SCode, d.SMsg)
		}
	}
	if !env.Ok() && len(data) == 0 {
		return errors.Errorf("cancel-algos: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}
