package tap

import "github.com/kelseyhightower/envconfig"

// RedisConfig holds connection settings for the Redis event tap.
type RedisConfig struct {
	Enabled  bool   `envconfig:"TAP_ENABLED" default:"false"`
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	Prefix   string `envconfig:"PREFIX" default:"relay:tap:"`
	Buffer   int    `envconfig:"BUFFER" default:"1024"`
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "relay:tap:",
		Buffer: 1024,
	}
}

// RedisConfigFromEnv loads the tap configuration from REDIS_* variables.
func RedisConfigFromEnv() (*RedisConfig, error) {
	cfg := DefaultRedisConfig()
	if err := envconfig.Process("redis", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
