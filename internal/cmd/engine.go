package cmd

import (
	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/engine"
	"github.com/MeKo-Tech/capstripeviz/internal/fetchsim"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/spf13/viper"
)

// buildEngine assembles an Engine wired against internal/fetchsim, the only
// FetchYear collaborator this repo ships. containerWidthPx seeds the
// navigator's initial viewport width.
func buildEngine(containerWidthPx int) *engine.Engine {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		logger.Warn("falling back to default config", "error", err)
		cfg = config.Default()
	}
	if viper.IsSet("earliest_year") {
		cfg.EarliestYear = viper.GetInt("earliest_year")
	}

	simCfg := fetchsim.DefaultConfig()
	if viper.IsSet("fetchsim.seed") {
		simCfg.Seed = viper.GetInt64("fetchsim.seed")
	}
	if viper.IsSet("fetchsim.failure_rate") {
		simCfg.FailureRate = viper.GetFloat64("fetchsim.failure_rate")
	}
	sim := fetchsim.New(simCfg)

	bounds := navigator.Bounds{
		Min: 0,
		Max: calendar.DayToOffset(cfg.EarliestYear, calendar.Yesterday()),
	}

	return engine.New(cfg, sim.FetchYear, bounds, containerWidthPx, logger)
}
