// Package config maps viper settings onto verifier options.
package config

import (
	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"prp-proof/modarith"
	"prp-proof/proof"
	"prp-proof/roots"
)

// EnvPrefix is prepended to every environment override, e.g.
// PRPVERIFY_VERIFY_HALVING.
const EnvPrefix = "prpverify"

type Verify struct {
	Halving       string `mapstructure:"halving"`
	Partial       bool   `mapstructure:"partial"`
	Rerandomize   bool   `mapstructure:"rerandomize"`
	Strict        bool   `mapstructure:"strict"`
	CheckInterval uint64 `mapstructure:"check-interval"`
	Progress      bool   `mapstructure:"progress"`
}

type Ledger struct {
	Path      string `mapstructure:"path"`
	SkipKnown bool   `mapstructure:"skip-known"`
}

type Watch struct {
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
}

type Roots struct {
	CacheSize int `mapstructure:"cache-size"`
}

// Config is the full prpverify configuration.
type Config struct {
	Verify Verify `mapstructure:"verify"`
	Ledger Ledger `mapstructure:"ledger"`
	Watch  Watch  `mapstructure:"watch"`
	Roots  Roots  `mapstructure:"roots"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verify.halving", proof.SquareB.String())
	v.SetDefault("verify.partial", false)
	v.SetDefault("verify.rerandomize", false)
	v.SetDefault("verify.strict", false)
	v.SetDefault("verify.check-interval", modarith.DefaultCheckInterval)
	v.SetDefault("verify.progress", true)
	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.skip-known", false)
	v.SetDefault("watch.dir", ".")
	v.SetDefault("watch.pattern", "*.proof")
	v.SetDefault("roots.cache-size", 64)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if _, err := proof.ParseHalving(c.Verify.Halving); err != nil {
		return nil, errors.Wrap(err, "config: verify.halving")
	}
	if c.Roots.CacheSize < 0 {
		return nil, errors.Errorf("config: roots.cache-size %d is negative", c.Roots.CacheSize)
	}
	return &c, nil
}

// ProofOptions builds verifier options from c.
func (c *Config) ProofOptions(logger log.Interface) (proof.Options, error) {
	halving, err := proof.ParseHalving(c.Verify.Halving)
	if err != nil {
		return proof.Options{}, err
	}
	hardener, err := roots.NewHardener(nil, c.Roots.CacheSize, roots.DefaultCapacity)
	if err != nil {
		return proof.Options{}, err
	}
	interval := c.Verify.CheckInterval
	return proof.Options{
		Strategy:    halving,
		Partial:     c.Verify.Partial,
		Rerandomize: c.Verify.Rerandomize,
		Strict:      c.Verify.Strict,
		Logger:      logger,
		Hardener:    hardener,
		NewEngine: func(m modarith.Modulus) (modarith.Engine, error) {
			return modarith.NewBigEngine(m, modarith.WithCheckInterval(interval))
		},
	}, nil
}
