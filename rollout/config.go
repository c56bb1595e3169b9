package rollout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the config file envelope: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config holds the parameters of a rollout run: which track, how many parallel
// environments, how long to run them, and which policy drives them.
// Keys are snake_case since viper lowercases everything it reads.
type Config struct {
	// TrackPath is an integer track resource; empty selects a built-in track.
	TrackPath string `yaml:"track_path"`
	// Seed is the base seed; worker i seeds its environment with Seed+i.
	Seed int64 `yaml:"seed"`
	// Workers is the number of environments run in parallel.
	Workers int `yaml:"workers"`
	// Episodes is the number of episodes each worker runs.
	Episodes int `yaml:"episodes"`
	// MaxSteps truncates episodes that have not reached a goal.
	MaxSteps int `yaml:"max_steps"`
	// Policy selects the policy: "random" or "fixed".
	Policy string `yaml:"policy"`
	// Params is a list of key-val policy parameters.
	Params []Parameter `yaml:"params"`
	// Deadline is a fixed duration describing when to stop the run.
	Deadline map[string]string `yaml:"deadline"`
}

type Parameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

const (
	RolloutKind     = "rollout"
	defaultEpisodes = 150
	defaultMaxSteps = 10000
)

var ErrUnknownKind error = errors.New("unknown config kind")

// DefaultConfig returns the config used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Seed:     1,
		Workers:  1,
		Episodes: defaultEpisodes,
		MaxSteps: defaultMaxSteps,
		Policy:   "random",
	}
}

func (cfg *Config) GetParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.Params {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithDeadline returns a context extended by the run deadline, if one is specified.
func (cfg *Config) WithDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.Deadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// fillDefaults replaces zero values with the defaults.
func (cfg *Config) fillDefaults() {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Episodes <= 0 {
		cfg.Episodes = def.Episodes
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
}

// FromYaml reads a rollout config. Viper reads the envelope, and the definition is
// round-tripped through yaml into the Config.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if outerConfig.Kind != RolloutKind {
		return nil, fmt.Errorf("%w %q, expected %q", ErrUnknownKind, outerConfig.Kind, RolloutKind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &Config{}
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, fmt.Errorf("decode %s def: %w", outerConfig.Kind, err)
	}
	innerConfig.fillDefaults()

	return innerConfig, nil
}
