package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Redis struct {
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		TTL           string `yaml:"ttl"`
		ChannelPrefix string `yaml:"channel_prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		Set  string `yaml:"set"`
		File string `yaml:"file"`
		TTL  string `yaml:"ttl"`
	} `yaml:"questions"`
	Game      Game      `yaml:"game"`
	Transport Transport `yaml:"transport"`
	Log       struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Game holds the room rules.
type Game struct {
	ManagerPassword     string `yaml:"manager_password"`
	ManagerPasswordHash string `yaml:"manager_password_hash"`
	CodeLength          int    `yaml:"code_length"`
	MinPlayers          int    `yaml:"min_players"`
	QuestionCooldown    string `yaml:"question_cooldown"`
	ManagerGracePeriod  string `yaml:"manager_grace_period"`
	ResultsAutoAdvance  string `yaml:"results_auto_advance"`
	FinishedRoomTTL     string `yaml:"finished_room_ttl"`
}

// Transport holds limits for client connections.
type Transport struct {
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.PublicURL = "http://localhost:3000"
	cfg.Redis.TTL = "2h"
	cfg.Redis.ChannelPrefix = "trivia"
	cfg.Questions.Set = "default"
	cfg.Questions.File = "config/questions.yaml"
	cfg.Questions.TTL = "10m"
	cfg.Game = Game{
		ManagerPassword:    "PASSWORD",
		CodeLength:         6,
		MinPlayers:         1,
		QuestionCooldown:   "3s",
		ManagerGracePeriod: "10s",
		ResultsAutoAdvance: "0s",
		FinishedRoomTTL:    "5m",
	}
	cfg.Transport = Transport{RateLimit: 20, RateBurst: 40, AllowedOrigins: []string{"*"}}
	cfg.Log.Level = "info"
	cfg.Log.Pretty = true
	return cfg
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
