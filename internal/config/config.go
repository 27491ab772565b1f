package config

import "github.com/caarlos0/env/v11"

// Config is the full externally visible configuration, read from the
// environment (a .env file is loaded first when present).
type Config struct {
	// Port the client-facing HTTP/websocket server listens on.
	Port int `env:"PORT" envDefault:"3000"`
	// Debug switches logging to debug level.
	Debug bool `env:"DEBUG" envDefault:"false"`
	// StaticDir holds the page shells and client assets.
	StaticDir string `env:"STATIC_DIR" envDefault:"./web"`

	// HistoryReplayLimit caps how many trailing messages are replayed to a
	// new connection. Zero replays the entire log.
	HistoryReplayLimit int `env:"HISTORY_REPLAY_LIMIT" envDefault:"0"`

	// RedisAddr enables the cross-instance event bridge when non-empty.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// MonitoringPort enables the metrics/pprof server when non-zero.
	MonitoringPort int `env:"MONITORING_PORT" envDefault:"0"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
