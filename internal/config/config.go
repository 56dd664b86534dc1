package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	HTTPServer  `yaml:"http_server"`
	Scheduling  `yaml:"scheduling"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Scheduling struct {
	// MaxReschedules is the per-booking quota of student-initiated moves.
	MaxReschedules int `yaml:"max_reschedules" env-default:"2"`
	// RescheduleLeadTime is the minimum gap to class start for a reschedule.
	RescheduleLeadTime time.Duration `yaml:"reschedule_lead_time" env-default:"24h"`
	// DefaultClassDuration applies when the course catalog has no entry.
	DefaultClassDuration int           `yaml:"default_class_duration" env-default:"60"`
	JoinableBefore       time.Duration `yaml:"joinable_before" env-default:"10m"`
	JoinableAfter        time.Duration `yaml:"joinable_after" env-default:"60m"`
	LockTTL              time.Duration `yaml:"lock_ttl" env-default:"10s"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}
