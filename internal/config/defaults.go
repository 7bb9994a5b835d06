package config

import "strings"

const (
	DefaultSchedule        = "*/5 * * * *"
	DefaultDisplayTimezone = "America/Santiago"
	DefaultDisplayLabel    = "Chile"
	DefaultStoragePath     = "./data/econbot"
)

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	m := &c.Monitor
	if len(m.Countries) == 0 {
		m.Countries = []string{"USD"}
	}
	if len(m.Impacts) == 0 {
		m.Impacts = []string{"High"}
	}
	if m.LookaheadMinutes == 0 {
		m.LookaheadMinutes = 30
	}
	if m.AlertSlackMinutes == 0 {
		m.AlertSlackMinutes = 5
	}
	if m.ResultGraceMinutes == 0 {
		m.ResultGraceMinutes = 5
	}
	if m.ResultExpiryHours == 0 {
		m.ResultExpiryHours = 3
	}
	if strings.TrimSpace(m.Retention) == "" {
		m.Retention = "48h"
	}
	if m.IDTitleLength == 0 {
		m.IDTitleLength = 24
	}
	if m.FetchDays == 0 {
		m.FetchDays = 2
	}
	if strings.TrimSpace(m.ProviderTimezone) == "" {
		m.ProviderTimezone = "America/New_York"
	}

	if strings.TrimSpace(c.Display.Timezone) == "" {
		c.Display.Timezone = DefaultDisplayTimezone
		if strings.TrimSpace(c.Display.Label) == "" {
			c.Display.Label = DefaultDisplayLabel
		}
	}

	if len(c.Sources) == 0 {
		c.Sources = []SourceConfig{{Type: "ffjson"}, {Type: "ffhtml"}, {Type: "investing"}}
	}

	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStoragePath
	}

	if c.Notify.RatePerSec == 0 {
		c.Notify.RatePerSec = 1
	}
	if strings.TrimSpace(c.Notify.SendTimeout) == "" {
		c.Notify.SendTimeout = "30s"
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = DefaultSchedule
	}
}
