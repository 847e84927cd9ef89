package service

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"swap_bot/pkg/logger"
)

// SyncServerTime — подтягивает серверное время и запоминает смещение.
// Все подписи дальше считаются по скорректированным часам.
func (c *Client) SyncServerTime(ctx context.Context) error {
	env, apiErr := c.Request(ctx, "GET", "/api/v5/public/time", nil, nil, 2)
	if apiErr != nil {
		return apiErr
	}
	if !env.Ok() {
		return errors.Errorf("server time: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []struct {
		Ts string `json:"ts"`
	}
	if err := env.Into(&data); err != nil {
		return errors.Wrap(err, "server time decode")
	}
	if len(data) == 0 {
		return errors.New("server time: empty data")
	}

	ms, err := strconv.ParseInt(data[0].Ts, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "server time parse %q", data[0].Ts)
	}

	offset := time.UnixMilli(ms).Sub(time.Now())
	c.timeOffset.Store(int64(offset))
	logger.Debug("server time offset: %s", offset)
	return nil
}
