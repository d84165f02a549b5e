// internal/config/config.go
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration, parsed from the environment.
type Config struct {
	Addr         string        `env:"ADDR" envDefault:":3001"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	GraceDelay   time.Duration `env:"GRACE_DELAY" envDefault:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
