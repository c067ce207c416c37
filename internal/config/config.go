// Package config loads and validates runtime configuration from a YAML
// file, KNOLDECK_* environment variables, and command-line flags, in that
// order of precedence (later sources win). Validation happens here, at load
// time: a deck config with an empty learning-step table can never reach the
// scheduler.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knoldeck/internal/scheduler"
)

const envPrefix = "KNOLDECK_"

// Config is the application's runtime configuration.
type Config struct {
	HTTPAddress  string       `koanf:"http_address" validate:"required"`
	DatabasePath string       `koanf:"database_path" validate:"required"`
	LogLevel     string       `koanf:"log_level" validate:"oneof=debug info warn error"`
	Scheduler    DeckConfig   `koanf:"scheduler" validate:"required"`
	DeckConfigs  []DeckConfig `koanf:"deck_configs" validate:"dive"`
}

// DeckConfig is the on-disk shape of one named deck configuration.
// Learning steps are whole seconds; they are converted to durations exactly
// once, in Resolve.
type DeckConfig struct {
	Name                 string  `koanf:"name"`
	LearningStepsSeconds []int   `koanf:"learning_steps_seconds" validate:"required,min=1,dive,gt=0"`
	NewPerDay            int     `koanf:"new_per_day" validate:"gte=0"`
	ReviewPerDay         int     `koanf:"review_per_day" validate:"gte=0"`
	DayStartOffsetMins   int     `koanf:"day_start_offset_minutes" validate:"gte=0,lt=1440"`
	ReviewDelayMins      int     `koanf:"review_delay_minutes" validate:"gte=0"`
	NewCardOrder         string  `koanf:"new_card_order" validate:"oneof=sequential random"`
	HardStepPolicy       string  `koanf:"hard_step_policy" validate:"oneof=last first"`
	DesiredRetention     float64 `koanf:"desired_retention" validate:"gt=0,lte=1"`
	MaximumIntervalDays  int     `koanf:"maximum_interval_days" validate:"gt=0"`
	DisableFuzzing       bool    `koanf:"disable_fuzzing"`
}

// Default returns the configuration used when no source overrides a key.
func Default() Config {
	return Config{
		HTTPAddress:  "127.0.0.1:8484",
		DatabasePath: "knoldeck.db",
		LogLevel:     "info",
		Scheduler:    DefaultDeckConfig("default"),
	}
}

// DefaultDeckConfig returns a named deck configuration with the stock
// learning steps (1m, 10m) and caps.
func DefaultDeckConfig(name string) DeckConfig {
	return DeckConfig{
		Name:                 name,
		LearningStepsSeconds: []int{60, 600},
		NewPerDay:            20,
		ReviewPerDay:         200,
		DayStartOffsetMins:   4 * 60,
		ReviewDelayMins:      20,
		NewCardOrder:         "sequential",
		HardStepPolicy:       "last",
		DesiredRetention:     0.9,
		MaximumIntervalDays:  36500,
	}
}

// Load reads configuration from path (optional), the environment, and the
// given flag set, then validates the result.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs struct validation plus the cross-field checks the tags
// cannot express.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := map[string]bool{}
	for _, dc := range cfg.DeckConfigs {
		if dc.Name == "" {
			return fmt.Errorf("invalid configuration: deck config with empty name")
		}
		if seen[dc.Name] {
			return fmt.Errorf("invalid configuration: duplicate deck config %q", dc.Name)
		}
		seen[dc.Name] = true
		// The day boundary is global: dashboard aggregation classifies
		// every deck under one offset, so per-config offsets must agree.
		if dc.DayStartOffsetMins != cfg.Scheduler.DayStartOffsetMins {
			return fmt.Errorf("invalid configuration: deck config %q day_start_offset_minutes %d differs from the scheduler's %d",
				dc.Name, dc.DayStartOffsetMins, cfg.Scheduler.DayStartOffsetMins)
		}
	}
	return nil
}

// Resolve converts a named deck configuration into the scheduler's form,
// performing the seconds-to-duration conversion in one place. Unknown names
// fall back to the standard scheduler config.
func (c Config) Resolve(name string) *scheduler.DeckConfig {
	dc := c.Scheduler
	for _, cand := range c.DeckConfigs {
		if cand.Name == name {
			dc = cand
			break
		}
	}
	return dc.toScheduler()
}

func (dc DeckConfig) toScheduler() *scheduler.DeckConfig {
	steps := make([]time.Duration, len(dc.LearningStepsSeconds))
	for i, s := range dc.LearningStepsSeconds {
		steps[i] = time.Duration(s) * time.Second
	}

	order := scheduler.OrderSequential
	if dc.NewCardOrder == "random" {
		order = scheduler.OrderRandom
	}
	hard := scheduler.HardRepeatLast
	if dc.HardStepPolicy == "first" {
		hard = scheduler.HardRepeatFirst
	}

	return &scheduler.DeckConfig{
		Name:             dc.Name,
		LearningSteps:    steps,
		NewPerDay:        dc.NewPerDay,
		ReviewPerDay:     dc.ReviewPerDay,
		DayStartOffset:   time.Duration(dc.DayStartOffsetMins) * time.Minute,
		ReviewDelay:      time.Duration(dc.ReviewDelayMins) * time.Minute,
		NewCardOrder:     order,
		HardStepPolicy:   hard,
		DesiredRetention: dc.DesiredRetention,
		MaximumInterval:  dc.MaximumIntervalDays,
		DisableFuzzing:   dc.DisableFuzzing,
	}
}
