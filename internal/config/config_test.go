package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
nightscout:
  url: https://ns.example.com
  apiSecret: from-file
display:
  units: mmol
thresholds:
  urgentLow: 60
  low: 72
  high: 170
  urgentHigh: 240
  staleMinutes: 20
statistics:
  days: 7
  timezone: Europe/Vienna
profile:
  sens: 40
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("NIGHTSCOUT_API_SECRET", "from-env")
	t.Setenv("BWP_SNOOZE", "0.25")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ns.example.com", cfg.Nightscout.URL)
	assert.Equal(t, "from-env", cfg.Nightscout.APISecret)
	assert.Equal(t, 2*time.Minute, cfg.Nightscout.CacheTTL)
	assert.Equal(t, "mmol", cfg.Display.Units)
	assert.Equal(t, 0.25, cfg.BWP.Snooze)
	assert.Equal(t, 0.5, cfg.BWP.Warn)
	assert.Equal(t, 7, cfg.Statistics.Days)
	assert.Equal(t, 40.0, cfg.Profile.Sensitivity)
	assert.Equal(t, 18.0, cfg.Profile.CarbRatio, "unset keys keep defaults")
	assert.Equal(t, "Europe/Vienna", cfg.Location().String())
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "nightscout", cfg.MQTT.TopicPrefix)

	settings := cfg.Settings()
	assert.Equal(t, 72, settings.TargetLow)
	assert.Equal(t, 240, settings.UrgentHigh)
	assert.Equal(t, 20, settings.StaleMinutes)
	assert.True(t, settings.IsMmol())
	snooze, warn, urgent := settings.BWPThresholds()
	assert.Equal(t, []float64{0.25, 0.5, 1.0}, []float64{snooze, warn, urgent})
}

func TestLoadRequiresURL(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "display:\n  units: mg/dl\n"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nightscout.url")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "nightscout: ["))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Nightscout.URL = "https://ns.example.com"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Nightscout.URL = "ftp://ns" }},
		{"bad units", func(c *Config) { c.Display.Units = "mg" }},
		{"unordered thresholds", func(c *Config) { c.Thresholds.Low = 200 }},
		{"warn above urgent", func(c *Config) { c.BWP.Warn = 2 }},
		{"no days", func(c *Config) { c.Statistics.Days = 0 }},
		{"bad timezone", func(c *Config) { c.Statistics.Timezone = "Mars/Olympus" }},
		{"zero carb ratio", func(c *Config) { c.Profile.CarbRatio = 0 }},
		{"no address", func(c *Config) { c.HTTP.Address = "" }},
		{"mqtt without client id", func(c *Config) { c.MQTT.Broker = "tcp://b:1883"; c.MQTT.ClientID = "" }},
		{"refresh too fast", func(c *Config) { c.Nightscout.RefreshInterval = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
