package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	managerNameENV    = "MANAGER_NAME"
)

// Config ...
type Config struct {
	DB       string `yaml:"db_dsn"`
	LogLevel string `yaml:"log_level"`

	// Identity воркера; по нему раздаются боты (bots.managed_by).
	ManagerName string `yaml:"manager_name"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	MarketData struct {
		Exchange    string   `yaml:"exchange"` // provider tag, напр. "binance"
		WSURL       string   `yaml:"ws_url"`
		RestURL     string   `yaml:"rest_url"`
		Symbols     []string `yaml:"symbols"`
		DepthOffset int      `yaml:"depth_offset"`
	} `yaml:"market_data"`

	// Кадансы ядра
	WatchTick      time.Duration `yaml:"watch_tick"`
	ReconcileEvery time.Duration `yaml:"reconcile_every"`
	HeartbeatEvery time.Duration `yaml:"heartbeat_every"`
	LockTTL        time.Duration `yaml:"lock_ttl"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		WatchTick:      durationFromEnv("WATCH_TICK", "1s"),
		ReconcileEvery: durationFromEnv("RECONCILE_EVERY", "30s"),
		HeartbeatEvery: durationFromEnv("HEARTBEAT_EVERY", "5m"),
		LockTTL:        durationFromEnv("LOCK_TTL", "5m"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if name := os.Getenv(managerNameENV); name != "" {
		config.ManagerName = name
	}
	if config.ManagerName == "" {
		host, _ := os.Hostname()
		config.ManagerName = host
	}
	if config.MarketData.Exchange == "" {
		config.MarketData.Exchange = "binance"
	}
	config.MarketData.DepthOffset = intFromEnv("DEPTH_OFFSET", config.MarketData.DepthOffset)

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
