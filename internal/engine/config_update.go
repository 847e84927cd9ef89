package engine

import (
	"fmt"

	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

// ApplyLiveConfigUpdate — применить новый конфиг без перезапуска.
// Поля, требующие рестарта, не применяются и возвращаются предупреждениями.
func (e *Engine) ApplyLiveConfigUpdate(newCfg *config.Config) config.UpdateResult {
	e.cfgMu.Lock()
	old := e.cfg

	changes := config.Diff(old, newCfg)
	if len(changes) == 0 {
		e.cfgMu.Unlock()
		return config.UpdateResult{Success: true}
	}

	merged := *newCfg
	// Личность сессии и инфраструктура остаются прежними до рестарта.
	merged.Symbol = old.Symbol
	merged.DemoMode = old.DemoMode
	merged.PositionMode = old.PositionMode
	merged.MarginMode = old.MarginMode
	merged.UseDevKeys = old.UseDevKeys
	merged.Leverage = old.Leverage
	merged.Telegram = old.Telegram
	merged.DB = old.DB
	merged.Jaeger = old.Jaeger
	merged.RestBaseURL = old.RestBaseURL
	merged.LogLevel = old.LogLevel
	merged.DevDemo = old.DevDemo
	merged.DevLive = old.DevLive
	merged.UserDemo = old.UserDemo
	merged.UserLive = old.UserLive

	var warnings []string
	applied := 0
	for _, c := range changes {
		if c.RequiresRestart {
			warnings = append(warnings, fmt.Sprintf("%s requires restart, not applied", c.Field))
			continue
		}
		applied++
	}

	if err := merged.Validate(); err != nil {
		e.cfgMu.Unlock()
		return config.UpdateResult{
			Success:  false,
			Warnings: append(warnings, fmt.Sprintf("config rejected: %v", err)),
		}
	}

	e.cfg = &merged
	e.cfgMu.Unlock()

	for _, c := range changes {
		if !c.RequiresRestart {
			logger.Info("config updated: %s", c)
		}
	}
	if applied > 0 {
		e.emitSuccess("config updated: %d field(s) applied", applied)
	}
	return config.UpdateResult{Success: true, Warnings: warnings}
}
