package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
)

// GetInstrumentMeta — торговые правила инструмента. Вызывается на старте и при
// смене символа, до первого ордера по новому символу.
func (c *Client) GetInstrumentMeta(ctx context.Context, instID string) (models.Instrument, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", instID)

	env, apiErr := c.Request(ctx, "GET", "/api/v5/public/instruments", q, nil, 2)
	if apiErr != nil {
		return models.Instrument{}, apiErr
	}
	if !env.Ok() {
		return models.Instrument{}, errors.Errorf("instruments: code=%s msg=%s", env.Code, env.Msg)
	}

	var data []rawInstrument
	if err := env.Into(&data); err != nil {
		return models.Instrument{}, errors.Wrap(err, "instruments decode")
	}
	if len(data) == 0 {
		return models.Instrument{}, errors.Errorf("instrument %s not found", instID)
	}

	inst := data[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, errors.Errorf("instrument %s not live: state=%s", instID, inst.State)
	}

	tickSz := helper.ParseFloat(inst.TickSz)
	lotSz := helper.ParseFloat(inst.LotSz)
	minSz := helper.ParseFloat(inst.MinSz)
	ctVal := helper.ParseFloat(inst.CtVal)
	if tickSz <= 0 || lotSz <= 0 || minSz <= 0 || ctVal <= 0 {
		return models.Instrument{}, errors.Errorf("instrument %s: bad steps tickSz=%q lotSz=%q minSz=%q ctVal=%q",
			instID, inst.TickSz, inst.LotSz, inst.MinSz, inst.CtVal)
	}

	ctMult := helper.ParseFloat(inst.CtMult)
	if ctMult <= 0 {
		ctMult = 1
	}

	return models.Instrument{
		InstID:    inst.InstID,
		TickSz:    tickSz,
		LotSz:     lotSz,
		MinSz:     minSz,
		CtVal:     ctVal * ctMult,
		MaxMktSz:  helper.ParseFloat(inst.MaxMktSz),
		PricePrec: helper.PrecisionFromStep(inst.TickSz),
		QtyPrec:   helper.PrecisionFromStep(inst.LotSz),
		State:     inst.State,
	}, nil
}
