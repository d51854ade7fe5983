package config

import (
	"errors"
	"fmt"
	"os"

	"campusrooms/internal/models"
	"campusrooms/internal/timeslot"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Facility   FacilityConfig   `yaml:"facility"`
	Approvers  []int64          `yaml:"approvers"`
	Blacklist  []int64          `yaml:"blacklist"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// FacilityConfig describes the bookable grid: operating hours, slot step and
// permitted reservation durations, all in day-local minutes.
type FacilityConfig struct {
	OpenTime           string `yaml:"open_time"`
	CloseTime          string `yaml:"close_time"`
	SlotStepMinutes    int    `yaml:"slot_step_minutes"`
	MinDurationMinutes int    `yaml:"min_duration_minutes"`
	MaxDurationMinutes int    `yaml:"max_duration_minutes"`
	BulkConcurrency    int    `yaml:"bulk_concurrency"`
}

// Open parses the facility opening time.
func (f FacilityConfig) Open() (timeslot.TimeOfDay, error) {
	return timeslot.Parse(f.OpenTime)
}

// Close parses the facility closing time.
func (f FacilityConfig) Close() (timeslot.TimeOfDay, error) {
	return timeslot.Parse(f.CloseTime)
}

func Load(configPath string) (*Config, error) {
	// .env is optional; when present its values feed the YAML expansion.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	open, err := c.Facility.Open()
	if err != nil {
		return fmt.Errorf("facility open_time: %w", err)
	}
	close, err := c.Facility.Close()
	if err != nil {
		return fmt.Errorf("facility close_time: %w", err)
	}
	if close <= open {
		return errors.New("facility close_time must be after open_time")
	}
	if c.Facility.SlotStepMinutes <= 0 {
		return errors.New("facility slot_step_minutes must be positive")
	}
	if c.Facility.MinDurationMinutes <= 0 {
		return errors.New("facility min_duration_minutes must be positive")
	}
	if c.Facility.MaxDurationMinutes < c.Facility.MinDurationMinutes {
		return errors.New("facility max_duration_minutes must be >= min_duration_minutes")
	}
	if int(close-open) < c.Facility.MinDurationMinutes {
		return errors.New("operating hours too short for the minimum duration")
	}

	return nil
}

// ValidateRooms checks the rooms catalog for usable entries.
func ValidateRooms(rooms []models.Room) error {
	roomIDs := make(map[string]bool)
	for _, room := range rooms {
		if room.ID == "" {
			return fmt.Errorf("room '%s' has empty ID", room.Name)
		}
		if roomIDs[room.ID] {
			return fmt.Errorf("duplicate room ID found: %s", room.ID)
		}
		roomIDs[room.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled && c.API.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	// Facility defaults: 08:00-22:00, 30-minute grid, bookings between 30
	// minutes and 4 hours.
	if c.Facility.OpenTime == "" {
		c.Facility.OpenTime = "08:00"
	}
	if c.Facility.CloseTime == "" {
		c.Facility.CloseTime = "22:00"
	}
	if c.Facility.SlotStepMinutes == 0 {
		c.Facility.SlotStepMinutes = 30
	}
	if c.Facility.MinDurationMinutes == 0 {
		c.Facility.MinDurationMinutes = 30
	}
	if c.Facility.MaxDurationMinutes == 0 {
		c.Facility.MaxDurationMinutes = 240
	}
	if c.Facility.BulkConcurrency == 0 {
		c.Facility.BulkConcurrency = models.DefaultBulkConcurrency
	}
}
