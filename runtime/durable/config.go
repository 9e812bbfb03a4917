package durable

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// ToolConfig is the per-tool activity configuration: either a record of
	// option overrides or the explicit disabled marker. Disabled tools run
	// in-process even inside a workflow, which is only legal for replay-safe
	// handlers.
	ToolConfig struct {
		// Disabled marks the tool as never running as an activity.
		Disabled bool
		// Options override the toolset-wide defaults; tool-specific keys win.
		Options ActivityOptions
	}

	// Config is the file-borne activity configuration for one durable
	// toolset: toolset-wide defaults plus per-tool entries. In YAML a tool
	// entry of literal false is the disabled marker:
	//
	//	default:
	//	  timeout: 30s
	//	  retry:
	//	    max_attempts: 3
	//	tools:
	//	  fetch_page:
	//	    timeout: 2m
	//	  local_math: false
	Config struct {
		// Default applies to every tool without a per-tool entry.
		Default ActivityOptions `yaml:"default"`
		// Tools maps tool names to per-tool configuration.
		Tools map[string]ToolConfig `yaml:"tools"`
	}

	// yamlActivityOptions is the YAML wire form of ActivityOptions with
	// human-friendly duration strings.
	yamlActivityOptions struct {
		Queue   string `yaml:"queue"`
		Timeout string `yaml:"timeout"`
		Retry   struct {
			MaxAttempts        int     `yaml:"max_attempts"`
			InitialInterval    string  `yaml:"initial_interval"`
			BackoffCoefficient float64 `yaml:"backoff_coefficient"`
		} `yaml:"retry"`
	}
)

// ParseConfig decodes a YAML activity configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse activity config: %w", err)
	}
	return &cfg, nil
}

// UnmarshalYAML decodes either a mapping of option overrides or the literal
// false disabled marker.
func (c *ToolConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var enabled bool
		if err := value.Decode(&enabled); err != nil {
			return fmt.Errorf("tool activity config must be a mapping or false, got %q", value.Value)
		}
		if enabled {
			return fmt.Errorf("tool activity config must be a mapping or false, got true")
		}
		*c = ToolConfig{Disabled: true}
		return nil
	}
	var opts ActivityOptions
	if err := value.Decode(&opts); err != nil {
		return err
	}
	*c = ToolConfig{Options: opts}
	return nil
}

// UnmarshalYAML decodes activity options with duration strings such as "30s".
func (o *ActivityOptions) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlActivityOptions
	if err := value.Decode(&raw); err != nil {
		return err
	}
	out := ActivityOptions{Queue: raw.Queue}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		out.Timeout = d
	}
	out.RetryPolicy.MaxAttempts = raw.Retry.MaxAttempts
	out.RetryPolicy.BackoffCoefficient = raw.Retry.BackoffCoefficient
	if raw.Retry.InitialInterval != "" {
		d, err := time.ParseDuration(raw.Retry.InitialInterval)
		if err != nil {
			return fmt.Errorf("parse retry initial interval: %w", err)
		}
		out.RetryPolicy.InitialInterval = d
	}
	*o = out
	return nil
}

// MergeActivityOptions overlays override on base; override keys win.
func MergeActivityOptions(base, override ActivityOptions) ActivityOptions {
	out := base
	if override.Queue != "" {
		out.Queue = override.Queue
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.RetryPolicy.MaxAttempts != 0 {
		out.RetryPolicy.MaxAttempts = override.RetryPolicy.MaxAttempts
	}
	if override.RetryPolicy.InitialInterval != 0 {
		out.RetryPolicy.InitialInterval = override.RetryPolicy.InitialInterval
	}
	if override.RetryPolicy.BackoffCoefficient != 0 {
		out.RetryPolicy.BackoffCoefficient = override.RetryPolicy.BackoffCoefficient
	}
	return out
}
