package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"toolsite/backend/internal/session"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	Pomodoro      Pomodoro
}

// Pomodoro holds engine defaults. Any field can come from the YAML file named
// by CONFIG_FILE; environment variables win over the file.
type Pomodoro struct {
	WorkMinutes       int    `yaml:"work_minutes"`
	ShortBreakMinutes int    `yaml:"short_break_minutes"`
	LongBreakMinutes  int    `yaml:"long_break_minutes"`
	LongBreakInterval int    `yaml:"long_break_interval"`
	Timezone          string `yaml:"timezone"`
	RetentionDays     int    `yaml:"retention_days"`
	RetentionCron     string `yaml:"retention_cron"`
}

func DefaultPomodoro() Pomodoro {
	return Pomodoro{
		WorkMinutes:       25,
		ShortBreakMinutes: 5,
		LongBreakMinutes:  15,
		LongBreakInterval: 4,
		RetentionCron:     "@daily",
	}
}

func Load() (Config, error) {
	pomodoro := DefaultPomodoro()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &pomodoro); err != nil {
			return Config{}, err
		}
	}

	pomodoro.WorkMinutes = getEnvInt("POMODORO_WORK_MINUTES", pomodoro.WorkMinutes)
	pomodoro.ShortBreakMinutes = getEnvInt("POMODORO_SHORT_BREAK_MINUTES", pomodoro.ShortBreakMinutes)
	pomodoro.LongBreakMinutes = getEnvInt("POMODORO_LONG_BREAK_MINUTES", pomodoro.LongBreakMinutes)
	pomodoro.LongBreakInterval = getEnvInt("POMODORO_LONG_BREAK_INTERVAL", pomodoro.LongBreakInterval)
	pomodoro.Timezone = getEnv("POMODORO_TIMEZONE", pomodoro.Timezone)
	pomodoro.RetentionDays = getEnvInt("POMODORO_RETENTION_DAYS", pomodoro.RetentionDays)
	pomodoro.RetentionCron = getEnv("POMODORO_RETENTION_CRON", pomodoro.RetentionCron)

	if err := pomodoro.Validate(); err != nil {
		return Config{}, err
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/toolsite.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		Pomodoro:      pomodoro,
	}, nil
}

func (p Pomodoro) Validate() error {
	if p.WorkMinutes <= 0 || p.ShortBreakMinutes <= 0 || p.LongBreakMinutes <= 0 {
		return errors.New("config: pomodoro durations must be positive minutes")
	}
	if p.LongBreakInterval <= 0 {
		return errors.New("config: long_break_interval must be positive")
	}
	if p.RetentionDays < 0 {
		return errors.New("config: retention_days must not be negative")
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to the process's local zone.
func (p Pomodoro) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// EngineOptions carries the configured defaults, long-break interval and
// timezone into session engine options.
func (p Pomodoro) EngineOptions() (session.Options, error) {
	loc, err := p.Location()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		LongBreakInterval: p.LongBreakInterval,
		Defaults: session.Settings{
			WorkMinutes:       p.WorkMinutes,
			ShortBreakMinutes: p.ShortBreakMinutes,
			LongBreakMinutes:  p.LongBreakMinutes,
		},
		Location: loc,
	}, nil
}

func loadFile(path string, into *Pomodoro) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file struct {
		Pomodoro *Pomodoro `yaml:"pomodoro"`
	}
	file.Pomodoro = into
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
