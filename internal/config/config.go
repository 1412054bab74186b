package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	LogLevel      string `yaml:"log-level" env-default:"info"`
	HTTPPort      string `yaml:"http-port" env-default:"9090"`
	SocketPort    string `yaml:"socket-port" env-default:"8080"`
	PublicBaseURL string `yaml:"public-base-url" env-default:""`
	Storage       string `yaml:"storage" env-default:"memory"`
	Redis         Redis  `yaml:"redis"`
	Rooms         Rooms  `yaml:"rooms"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Rooms holds duration strings ("1h", "90s"); yaml cannot decode into
// time.Duration directly.
type Rooms struct {
	TTL           string `yaml:"ttl" env-default:"1h"`
	SweepInterval string `yaml:"sweep-interval" env-default:"1m"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if _, err := time.ParseDuration(config.Rooms.TTL); err != nil {
		panic(fmt.Errorf("invalid rooms.ttl: %w", err))
	}

	if _, err := time.ParseDuration(config.Rooms.SweepInterval); err != nil {
		panic(fmt.Errorf("invalid rooms.sweep-interval: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// GetTTL - the room retention window. Validity is checked in MustLoad.
func (that *Rooms) GetTTL() time.Duration {
	ttl, _ := time.ParseDuration(that.TTL)
	return ttl
}

func (that *Rooms) GetSweepInterval() time.Duration {
	interval, _ := time.ParseDuration(that.SweepInterval)
	return interval
}
