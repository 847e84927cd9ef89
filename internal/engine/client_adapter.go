package engine

import (
	"context"

	okx "swap_bot/internal/modules/okx_client/service"
)

// apiAdapter — мост от REST-клиента к интерфейсу движка.
type apiAdapter struct {
	*okx.Client
}

func NewAPIAdapter(c *okx.Client) *apiAdapter { return &apiAdapter{Client: c} }

func (a *apiAdapter) GetBalanceEquity(ctx context.Context) (float64, float64, error) {
	b, err := a.Client.GetBalance(ctx)
	if err != nil {
		return 0, 0, err
	}
	return b.TotalEquity, b.AvailableBalance, nil
}

func (a *apiAdapter) PlaceLimit(ctx context.Context, r LimitReq) (string, error) {
	req := okx.LimitOrderReq{
		InstID:  r.InstID,
		TdMode:  r.TdMode,
		Side:    r.Side,
		PosSide: r.PosSide,
		Px:      r.Px,
		Sz:      r.Sz,
	}
	if r.TpTriggerPx > 0 || r.SlTriggerPx > 0 {
		req.Attach = &okx.AttachedTPSL{
			TpTriggerPx:   r.TpTriggerPx,
			SlTriggerPx:   r.SlTriggerPx,
			TriggerPxType: r.TriggerPxType,
		}
	}
	return a.Client.PlaceLimitOrder(ctx, req)
}

func (a *apiAdapter) PlaceAlgo(ctx context.Context, r AlgoReq) (string, error) {
	return a.Client.PlaceAlgoExit(ctx, okx.AlgoExitReq{
		InstID:        r.InstID,
		TdMode:        r.TdMode,
		PosSide:       r.PosSide,
		Sz:            r.Sz,
		TpTriggerPx:   r.TpTriggerPx,
		SlTriggerPx:   r.SlTriggerPx,
		TriggerPxType: r.TriggerPxType,
	})
}
