package inference

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config controls the waterfall order and the address lists it tries.
type Config struct {
	Strategies        []string `yaml:"strategies"`
	FallbackTemplates []string `yaml:"fallback_templates"`
	// GenericMailboxes are tried when the domain has a known pattern.
	GenericMailboxes []string `yaml:"generic_mailboxes"`
	// UnknownMailboxes are tried when it does not.
	UnknownMailboxes   []string      `yaml:"unknown_mailboxes"`
	ValidationInterval time.Duration `yaml:"validation_interval"`
}

// DefaultConfig returns the standard waterfall.
func DefaultConfig() Config {
	return Config{
		Strategies:         []string{StrategyDominantPattern, StrategyFallbackTemplates, StrategyGenericMailbox},
		FallbackTemplates:  []string{PatternFirstDotLast, PatternFirstLast, PatternFirst, PatternFDotLast},
		GenericMailboxes:   []string{"info", "contact", "support", "sales", "hello"},
		UnknownMailboxes:   []string{"info", "contact"},
		ValidationInterval: 100 * time.Millisecond,
	}
}

// LoadConfig reads a waterfall config from a YAML file with a top-level
// "inference" key. Missing fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: read config %s", path)
	}

	var wrapper struct {
		Inference Config `yaml:"inference"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "inference: parse config")
	}

	cfg := wrapper.Inference.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown strategy names and template patterns.
func (c Config) Validate() error {
	for _, name := range c.Strategies {
		switch name {
		case StrategyDominantPattern, StrategyFallbackTemplates, StrategyGenericMailbox:
		default:
			return eris.Errorf("inference: unknown strategy %q", name)
		}
	}
	for _, p := range c.FallbackTemplates {
		if !KnownPattern(p) {
			return eris.Errorf("inference: unknown template %q", p)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Strategies) == 0 {
		c.Strategies = def.Strategies
	}
	if len(c.FallbackTemplates) == 0 {
		c.FallbackTemplates = def.FallbackTemplates
	}
	if len(c.GenericMailboxes) == 0 {
		c.GenericMailboxes = def.GenericMailboxes
	}
	if len(c.UnknownMailboxes) == 0 {
		c.UnknownMailboxes = def.UnknownMailboxes
	}
	if c.ValidationInterval <= 0 {
		c.ValidationInterval = def.ValidationInterval
	}
	return c
}

func (c Config) strategies() []strategy {
	out := make([]strategy, 0, len(c.Strategies))
	for _, name := range c.Strategies {
		switch name {
		case StrategyDominantPattern:
			out = append(out, dominantPattern{})
		case StrategyFallbackTemplates:
			out = append(out, fallbackTemplates{patterns: c.FallbackTemplates})
		case StrategyGenericMailbox:
			out = append(out, genericMailbox{known: c.GenericMailboxes, unknown: c.UnknownMailboxes})
		}
	}
	return out
}
