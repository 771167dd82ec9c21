package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Runtime holds process settings read from the environment. They never affect
// ledger state.
type Runtime struct {
	LogLevel     string `env:"POLLING_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"POLLING_LOG_FORMAT" envDefault:"text"`
	OTelEndpoint string `env:"POLLING_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"POLLING_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadRuntime parses and validates Runtime from the environment.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := ParseEnv(&rt); err != nil {
		return Runtime{}, err
	}
	switch rt.LogFormat {
	case "text", "json":
	default:
		return Runtime{}, fmt.Errorf("POLLING_LOG_FORMAT must be text or json, got %q", rt.LogFormat)
	}
	return rt, nil
}
