package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr    string `env:"DUEL_ADDR" envDefault:":9000"`
	WSAddr  string `env:"DUEL_WS_ADDR" envDefault:":8080"`
	StartHP int    `env:"DUEL_START_HP" envDefault:"14"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
