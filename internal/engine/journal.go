package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"swap_bot/internal/models"
	"swap_bot/pkg/db"
	"swap_bot/pkg/logger"
)

// Journal — опциональная запись сделок и дневных срезов в Postgres.
// Движок работает и без него: nil-журнал просто не пишет.
type Journal struct {
	tx *db.PgTxManager

	mu         sync.Mutex
	lastReport time.Time
}

func NewJournal(tx *db.PgTxManager) *Journal {
	return &Journal{tx: tx}
}

const createJournalSchema = `
CREATE TABLE IF NOT EXISTS fills (
	trade_id  TEXT PRIMARY KEY,
	order_id  TEXT NOT NULL,
	inst_id   TEXT NOT NULL,
	side      TEXT NOT NULL,
	pos_side  TEXT NOT NULL,
	px        DOUBLE PRECISION NOT NULL,
	sz        DOUBLE PRECISION NOT NULL,
	pnl       DOUBLE PRECISION NOT NULL,
	fee       DOUBLE PRECISION NOT NULL,
	ts        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_reports (
	day              DATE PRIMARY KEY,
	total_equity     DOUBLE PRECISION NOT NULL,
	used_notional    DOUBLE PRECISION NOT NULL,
	net_profit       DOUBLE PRECISION NOT NULL,
	active_positions INT NOT NULL
);`

// Init — схема журнала. Идемпотентен.
func (j *Journal) Init(ctx context.Context) error {
	return j.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createJournalSchema)
		return err
	})
}

// RecordFills — батч исполнений одной транзакцией. Повторы гасятся по trade_id.
func (j *Journal) RecordFills(ctx context.Context, fills []models.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	return j.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, f := range fills {
			_, err := tx.Exec(ctx, `
				INSERT INTO fills (trade_id, order_id, inst_id, side, pos_side, px, sz, pnl, fee, ts)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (trade_id) DO NOTHING`,
				f.TradeID, f.OrdID, f.InstID, f.Side, f.PosSide, f.Px, f.Sz, f.Pnl, f.Fee, f.Ts)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MaybeDailyReport — срез на смену суток UTC, не чаще раза в день.
func (j *Journal) MaybeDailyReport(ctx context.Context, snap models.CapitalSnapshot) {
	day := time.Now().UTC().Truncate(24 * time.Hour)

	j.mu.Lock()
	if !j.lastReport.Before(day) {
		j.mu.Unlock()
		return
	}
	j.lastReport = day
	j.mu.Unlock()

	err := j.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO daily_reports (day, total_equity, used_notional, net_profit, active_positions)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (day) DO UPDATE SET
				total_equity = EXCLUDED.total_equity,
				used_notional = EXCLUDED.used_notional,
				net_profit = EXCLUDED.net_profit,
				active_positions = EXCLUDED.active_positions`,
			day, snap.TotalEquity, snap.UsedNotional, snap.NetProfit, snap.ActivePositions)
		return err
	})
	if err != nil {
		logger.Error("daily report: %v", err)
	}
}
