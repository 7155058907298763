// Package config loads runtime configuration from YAML and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/mqttpub"
	"github.com/mrcode/nightscout-engine/internal/profile"
	"github.com/mrcode/nightscout-engine/internal/statistics"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// defaultConfigPath is read when CONFIG_PATH is unset and the file exists
const defaultConfigPath = "configs/config.yaml"

// Config aggregates runtime configuration
type Config struct {
	Nightscout NightscoutConfig `yaml:"nightscout"`
	Display    DisplayConfig    `yaml:"display"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	BWP        BWPConfig        `yaml:"bwp"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Profile    profile.Defaults `yaml:"profile"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	HTTP       HTTPConfig       `yaml:"http"`
	MQTT       mqttpub.Config   `yaml:"mqtt"`
}

// NightscoutConfig describes the upstream server
type NightscoutConfig struct {
	URL       string        `yaml:"url"`
	APISecret string        `yaml:"apiSecret"`
	APIToken  string        `yaml:"apiToken"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cacheTtl"`
	// Lookback is how much recent history a status evaluation fetches
	Lookback time.Duration `yaml:"lookback"`
	// RefreshInterval is how often watch mode re-evaluates
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// DisplayConfig controls how values are rendered
type DisplayConfig struct {
	Units string `yaml:"units"`
}

// ThresholdsConfig holds the alarm bands in mg/dL
type ThresholdsConfig struct {
	UrgentLow    int `yaml:"urgentLow"`
	Low          int `yaml:"low"`
	High         int `yaml:"high"`
	UrgentHigh   int `yaml:"urgentHigh"`
	StaleMinutes int `yaml:"staleMinutes"`
}

// BWPConfig holds the bolus wizard preview thresholds in units
type BWPConfig struct {
	Snooze float64 `yaml:"snooze"`
	Warn   float64 `yaml:"warn"`
	Urgent float64 `yaml:"urgent"`
}

// StatisticsConfig controls report generation
type StatisticsConfig struct {
	Days     int                   `yaml:"days"`
	Timezone string                `yaml:"timezone"`
	Ranges   statistics.Thresholds `yaml:"ranges"`
}

// AlertsConfig toggles individual alarms
type AlertsConfig struct {
	High          bool `yaml:"high"`
	Low           bool `yaml:"low"`
	UrgentHigh    bool `yaml:"urgentHigh"`
	UrgentLow     bool `yaml:"urgentLow"`
	BWP           bool `yaml:"bwp"`
	RepeatMinutes int  `yaml:"repeatMinutes"`
}

// HTTPConfig controls the API server
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(defaultConfigPath); err == nil {
		if err := hydrateFromFile(cfg, defaultConfigPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIGHTSCOUT_URL"); v != "" {
		cfg.Nightscout.URL = v
	}
	if v := os.Getenv("NIGHTSCOUT_API_SECRET"); v != "" {
		cfg.Nightscout.APISecret = v
	}
	if v := os.Getenv("NIGHTSCOUT_API_TOKEN"); v != "" {
		cfg.Nightscout.APIToken = v
	}
	if v := os.Getenv("DISPLAY_UNITS"); v != "" {
		cfg.Display.Units = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("BWP_SNOOZE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BWP.Snooze = parsed
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Nightscout.CacheTTL = parsed
		}
	}
}

// Default returns the built-in configuration
func Default() *Config {
	settings := models.DefaultSettings()
	return &Config{
		Nightscout: NightscoutConfig{
			Timeout:  30 * time.Second,
			CacheTTL: time.Minute,
			Lookback: 3 * time.Hour,

			RefreshInterval: time.Minute,
		},
		Display: DisplayConfig{
			Units: settings.Units,
		},
		Thresholds: ThresholdsConfig{
			UrgentLow:    settings.UrgentLow,
			Low:          settings.TargetLow,
			High:         settings.TargetHigh,
			UrgentHigh:   settings.UrgentHigh,
			StaleMinutes: settings.StaleMinutes,
		},
		BWP: BWPConfig{
			Snooze: settings.SnoozeBWP,
			Warn:   settings.WarnBWP,
			Urgent: settings.UrgentBWP,
		},
		Statistics: StatisticsConfig{
			Days:     14,
			Timezone: "UTC",
			Ranges:   statistics.DefaultThresholds(),
		},
		Profile: profile.DefaultValues(),
		Alerts: AlertsConfig{
			High:          settings.EnableHighAlert,
			Low:           settings.EnableLowAlert,
			UrgentHigh:    settings.EnableUrgentHighAlert,
			UrgentLow:     settings.EnableUrgentLowAlert,
			BWP:           settings.EnableBWPAlert,
			RepeatMinutes: settings.RepeatAlertMinutes,
		},
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		MQTT: mqttpub.Config{
			ClientID:    "nightscout-engine",
			TopicPrefix: "nightscout",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Nightscout.URL) == "" {
		return errors.New("nightscout.url cannot be empty")
	}
	if !strings.HasPrefix(c.Nightscout.URL, "http://") && !strings.HasPrefix(c.Nightscout.URL, "https://") {
		return errors.New("nightscout.url must be an http or https URL")
	}
	if c.Nightscout.Timeout <= 0 {
		return errors.New("nightscout.timeout must be positive")
	}
	if c.Nightscout.CacheTTL < 0 {
		return errors.New("nightscout.cacheTtl cannot be negative")
	}
	if c.Nightscout.Lookback <= 0 {
		return errors.New("nightscout.lookback must be positive")
	}
	if c.Nightscout.RefreshInterval < 10*time.Second {
		return errors.New("nightscout.refreshInterval must be at least 10s")
	}
	if !units.IsMmol(c.Display.Units) && !strings.EqualFold(c.Display.Units, units.MgdlUnits) {
		return fmt.Errorf("display.units %q must be mg/dl or mmol", c.Display.Units)
	}
	t := c.Thresholds
	if !(t.UrgentLow > 0 && t.UrgentLow < t.Low && t.Low < t.High && t.High < t.UrgentHigh) {
		return errors.New("thresholds must satisfy 0 < urgentLow < low < high < urgentHigh")
	}
	if t.StaleMinutes <= 0 {
		return errors.New("thresholds.staleMinutes must be positive")
	}
	if c.BWP.Snooze < 0 || c.BWP.Warn <= 0 || c.BWP.Urgent < c.BWP.Warn {
		return errors.New("bwp thresholds must satisfy 0 <= snooze, 0 < warn <= urgent")
	}
	if c.Statistics.Days <= 0 {
		return errors.New("statistics.days must be positive")
	}
	if _, err := time.LoadLocation(c.Statistics.Timezone); err != nil {
		return fmt.Errorf("statistics.timezone: %w", err)
	}
	r := c.Statistics.Ranges
	if !(r.SevereLow < r.Low && r.Low < r.High && r.High < r.SevereHigh) {
		return errors.New("statistics.ranges must be increasing")
	}
	if c.Profile.Sensitivity <= 0 || c.Profile.CarbRatio <= 0 || c.Profile.CarbsHr <= 0 {
		return errors.New("profile.sens, profile.carbRatio and profile.carbsHr must be positive")
	}
	if c.Alerts.RepeatMinutes < 0 {
		return errors.New("alerts.repeatMinutes cannot be negative")
	}
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.MQTT.Enabled() && c.MQTT.ClientID == "" {
		return errors.New("mqtt.clientId cannot be empty when mqtt.broker is set")
	}
	return nil
}

// Location returns the timezone reports are bucketed in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Statistics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Settings converts the configuration into runtime alarm settings
func (c *Config) Settings() *models.Settings {
	s := models.DefaultSettings()
	s.Units = c.Display.Units
	s.UrgentLow = c.Thresholds.UrgentLow
	s.TargetLow = c.Thresholds.Low
	s.TargetHigh = c.Thresholds.High
	s.UrgentHigh = c.Thresholds.UrgentHigh
	s.StaleMinutes = c.Thresholds.StaleMinutes
	s.EnableHighAlert = c.Alerts.High
	s.EnableLowAlert = c.Alerts.Low
	s.EnableUrgentHighAlert = c.Alerts.UrgentHigh
	s.EnableUrgentLowAlert = c.Alerts.UrgentLow
	s.EnableBWPAlert = c.Alerts.BWP
	s.RepeatAlertMinutes = c.Alerts.RepeatMinutes
	s.SnoozeBWP = c.BWP.Snooze
	s.WarnBWP = c.BWP.Warn
	s.UrgentBWP = c.BWP.Urgent
	return s
}
