package modules

import "fmt"

// FailurePolicy decides what the Loader does when a module fails to activate.
type FailurePolicy string

const (
	// PolicyAbort unloads everything and fails startup.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip logs the failure and continues with the remaining modules.
	PolicySkip FailurePolicy = "skip"
)

// Config holds module loading configuration.
type Config struct {
	OnFailure FailurePolicy `yaml:"on_failure"`
	Disabled  []string      `yaml:"disabled"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.OnFailure == "" {
		c.OnFailure = PolicyAbort
	}
}

// Validate reports an unknown failure policy.
func (c Config) Validate() error {
	switch c.OnFailure {
	case PolicyAbort, PolicySkip:
		return nil
	default:
		return fmt.Errorf("modules: unknown on_failure policy %q (want %q or %q)", c.OnFailure, PolicyAbort, PolicySkip)
	}
}
