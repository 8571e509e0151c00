package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ICEConfig struct {
	STUNURLs       []string `mapstructure:"stun_urls"`
	TURNURL        string   `mapstructure:"turn_url"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	SQLitePath string `mapstructure:"sqlite_path"`

	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	CallTTL     time.Duration `mapstructure:"call_ttl"`

	SignalRateLimit  int           `mapstructure:"signal_rate_limit"`
	SignalRateWindow time.Duration `mapstructure:"signal_rate_window"`

	ICE ICEConfig `mapstructure:"ice"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("sqlite_path", "whiskr.db")
	v.SetDefault("presence_ttl", "2m")
	v.SetDefault("call_ttl", "2m")
	v.SetDefault("signal_rate_limit", 30)
	v.SetDefault("signal_rate_window", "10s")
	v.SetDefault("ice.stun_urls", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
	})

	// TURN credentials and the signing secret come from the environment in
	// deployed setups; the yaml values are dev conveniences.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Redis: %s\n", cfg.Mode, cfg.Port, cfg.RedisAddr)
	return &cfg, nil
}
