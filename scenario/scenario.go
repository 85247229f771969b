// Package scenario binds limits, feature toggles, and the rule set into
// runnable engine parameters. All configuration is validated at build;
// nothing downstream re-checks it.
package scenario

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"loadgate/engine"
	"loadgate/money"
)

// ErrInvalid marks a configuration rejected at scenario build.
var ErrInvalid = errors.New("scenario: invalid configuration")

// Config mirrors the YAML representation of a scenario.
type Config struct {
	Name        string       `yaml:"name"`
	Limits      LimitsConfig `yaml:"limits"`
	Multiplier  string       `yaml:"multiplier"`
	Tags        []TagConfig  `yaml:"tags"`
	Gates       []GateConfig `yaml:"gates"`
	MultiReason bool         `yaml:"multi_reason"`
}

// LimitsConfig holds the per-customer caps. An absent field is unlimited.
type LimitsConfig struct {
	DailyAttempts *int64 `yaml:"daily_attempts"`
	DailyAmount   string `yaml:"daily_amount"`
	WeeklyAmount  string `yaml:"weekly_amount"`
}

// TagConfig declares one boolean feature label and the deriver computing it.
type TagConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// GateConfig declares one global per-day gate keyed on a tag.
type GateConfig struct {
	Name               string `yaml:"name"`
	Tag                string `yaml:"tag"`
	AmountCap          string `yaml:"amount_cap"`
	AmountCapCode      string `yaml:"amount_cap_code"`
	DailyAcceptCap     *int64 `yaml:"daily_accept_cap"`
	DailyAcceptCapCode string `yaml:"daily_accept_cap_code"`
}

var tagKinds = map[string]engine.TagFunc{
	"prime_id": engine.PrimeID,
}

// Load reads a scenario from the provided YAML file on disk.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode scenario: %w", err)
	}
	return cfg, nil
}

// Baseline returns the default scenario: three attempts, 5000.00 daily and
// 20000.00 weekly, identity multiplier, no tags or gates, short-circuit
// evaluation.
func Baseline() Config {
	attempts := int64(3)
	return Config{
		Name: "baseline",
		Limits: LimitsConfig{
			DailyAttempts: &attempts,
			DailyAmount:   "5000.00",
			WeeklyAmount:  "20000.00",
		},
	}
}

// Build validates the configuration and assembles the engine parameters.
func (c Config) Build() (engine.Params, error) {
	var params engine.Params

	if c.Limits.DailyAttempts != nil && *c.Limits.DailyAttempts <= 0 {
		return params, fmt.Errorf("%w: daily attempt limit must be positive", ErrInvalid)
	}
	params.Evaluator.Limits.DailyAttempts = c.Limits.DailyAttempts

	dailyAmount, err := parseLimitAmount(c.Limits.DailyAmount, "daily_amount")
	if err != nil {
		return params, err
	}
	params.Evaluator.Limits.DailyAmount = dailyAmount
	weeklyAmount, err := parseLimitAmount(c.Limits.WeeklyAmount, "weekly_amount")
	if err != nil {
		return params, err
	}
	params.Evaluator.Limits.WeeklyAmount = weeklyAmount

	if trimmed := strings.TrimSpace(c.Multiplier); trimmed != "" {
		rat, ok := new(big.Rat).SetString(trimmed)
		if !ok || rat.Sign() < 0 {
			return params, fmt.Errorf("%w: multiplier %q", ErrInvalid, c.Multiplier)
		}
		params.Deriver.Multiplier = rat
	}

	tags := make(map[string]engine.TagFunc, len(c.Tags))
	for _, tag := range c.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			return params, fmt.Errorf("%w: tag name required", ErrInvalid)
		}
		if _, dup := tags[name]; dup {
			return params, fmt.Errorf("%w: duplicate tag %q", ErrInvalid, name)
		}
		fn, ok := tagKinds[strings.TrimSpace(tag.Kind)]
		if !ok {
			return params, fmt.Errorf("%w: unknown tag kind %q", ErrInvalid, tag.Kind)
		}
		tags[name] = fn
	}
	params.Deriver.Tags = tags

	seen := make(map[string]struct{}, len(c.Gates))
	for _, gate := range c.Gates {
		name := strings.TrimSpace(gate.Name)
		if name == "" {
			return params, fmt.Errorf("%w: gate name required", ErrInvalid)
		}
		if _, dup := seen[name]; dup {
			return params, fmt.Errorf("%w: duplicate gate %q", ErrInvalid, name)
		}
		seen[name] = struct{}{}
		tag := strings.TrimSpace(gate.Tag)
		if _, ok := tags[tag]; !ok {
			return params, fmt.Errorf("%w: gate %q references unknown tag %q", ErrInvalid, name, gate.Tag)
		}
		rule := engine.GateRule{Name: name, Tag: tag}
		if strings.TrimSpace(gate.AmountCap) != "" {
			capAmount, err := money.Parse(gate.AmountCap)
			if err != nil {
				return params, fmt.Errorf("%w: gate %q amount_cap: %v", ErrInvalid, name, err)
			}
			rule.AmountCap = &capAmount
			rule.AmountCapCode = gateCode(gate.AmountCapCode, name, "AMOUNT_CAP")
		}
		if gate.DailyAcceptCap != nil {
			if *gate.DailyAcceptCap <= 0 {
				return params, fmt.Errorf("%w: gate %q daily_accept_cap must be positive", ErrInvalid, name)
			}
			rule.DailyAcceptCap = gate.DailyAcceptCap
			rule.DailyAcceptCapCode = gateCode(gate.DailyAcceptCapCode, name, "DAILY_GLOBAL_LIMIT")
		}
		if rule.AmountCap == nil && rule.DailyAcceptCap == nil {
			return params, fmt.Errorf("%w: gate %q has no conditions", ErrInvalid, name)
		}
		params.Evaluator.Gates = append(params.Evaluator.Gates, rule)
	}

	params.Evaluator.MultiReason = c.MultiReason
	return params, nil
}

func parseLimitAmount(raw, field string) (*money.Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, err := money.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	return &amount, nil
}

func gateCode(configured, gateName, suffix string) engine.Reason {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return engine.Reason(trimmed)
	}
	return engine.Reason(strings.ToUpper(gateName) + "_" + suffix)
}
