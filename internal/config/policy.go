package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// PolicyConfig is the static enforcement configuration, loaded once at
// startup and validated before use. A config that fails validation must never
// reach the policy engine.
type PolicyConfig struct {
	Enabled       bool              `yaml:"enabled"`
	DefaultMode   domain.PolicyMode `yaml:"default_mode"`
	Authorization struct {
		ChannelBased bool `yaml:"channel_based"`
		SourceBased  bool `yaml:"source_based"`
		DateBased    bool `yaml:"date_based"`
	} `yaml:"authorization"`
	ProhibitedContent []string           `yaml:"prohibited_content"`
	SensitivePatterns []SensitivePattern `yaml:"sensitive_patterns"`
	Audit             struct {
		Enabled       bool `yaml:"enabled"`
		LogViolations bool `yaml:"log_violations"`
	} `yaml:"audit"`

	rules []RedactionRule
}

type SensitivePattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// RedactionRule is a validated, compiled sensitive-data pattern.
type RedactionRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPolicyConfig, "read policy config", err)
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, domain.WrapError(domain.ErrPolicyConfig, "parse policy config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *PolicyConfig) Validate() error {
	if c.DefaultMode == "" {
		c.DefaultMode = domain.PolicyModeFilter
	}
	if !c.DefaultMode.Valid() {
		return domain.WrapError(domain.ErrPolicyConfig, "validate policy config",
			fmt.Errorf("unknown default_mode %q", c.DefaultMode))
	}

	c.rules = make([]RedactionRule, 0, len(c.SensitivePatterns))
	for _, p := range c.SensitivePatterns {
		if p.Pattern == "" {
			return domain.WrapError(domain.ErrPolicyConfig, "validate policy config",
				fmt.Errorf("sensitive pattern %q has empty regex", p.Name))
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return domain.WrapError(domain.ErrPolicyConfig, "validate policy config",
				fmt.Errorf("compile pattern %q: %w", p.Name, err))
		}
		c.rules = append(c.rules, RedactionRule{
			Name:        p.Name,
			Pattern:     re,
			Replacement: p.Replacement,
		})
	}
	return nil
}

// RedactionRules returns the compiled pattern set. Empty until Validate has
// run.
func (c *PolicyConfig) RedactionRules() []RedactionRule {
	return c.rules
}
