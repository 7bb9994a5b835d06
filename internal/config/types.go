package config

// Config is the on-disk configuration (JSON or YAML). All durations are Go
// duration strings ("30s", "48h"). Zero values mean "use the default".
type Config struct {
	Monitor  MonitorConfig  `json:"monitor"`
	Display  DisplayConfig  `json:"display"`
	Sources  []SourceConfig `json:"sources"`
	Storage  StorageConfig  `json:"storage"`
	Notify   NotifyConfig   `json:"notify"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Schedule string         `json:"schedule,omitempty"`
}

// MonitorConfig selects events and sets the alert timing rules.
//
// Defaults:
//   - countries: [USD]
//   - impacts: [High]
//   - lookahead_minutes: 30
//   - alert_slack_minutes: 5
//   - result_grace_minutes: 5
//   - result_expiry_hours: 3
//   - retention: "48h"
//   - id_title_length: 24 (20..30)
//   - fetch_days: 2
//   - provider_timezone: America/New_York
type MonitorConfig struct {
	Countries          []string `json:"countries,omitempty"`
	Impacts            []string `json:"impacts,omitempty"`
	LookaheadMinutes   int      `json:"lookahead_minutes,omitempty"`
	AlertSlackMinutes  int      `json:"alert_slack_minutes,omitempty"`
	ResultGraceMinutes int      `json:"result_grace_minutes,omitempty"`
	ResultExpiryHours  int      `json:"result_expiry_hours,omitempty"`
	Retention          string   `json:"retention,omitempty"`
	IDTitleLength      int      `json:"id_title_length,omitempty"`
	FetchDays          int      `json:"fetch_days,omitempty"`
	ProviderTimezone   string   `json:"provider_timezone,omitempty"`
}

type DisplayConfig struct {
	Timezone string `json:"timezone,omitempty"` // default America/Santiago
	Label    string `json:"label,omitempty"`    // default Chile
}

// SourceConfig is one entry of the provider chain, tried in file order.
type SourceConfig struct {
	Type      string   `json:"type"`
	BaseURL   string   `json:"base_url,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
	Timeout   string   `json:"timeout,omitempty"` // default 30s
	Countries []string `json:"countries,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // file (default), sqlite, redis, memory
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"`
	KeyPrefix   string `json:"key_prefix,omitempty"`
}

type NotifyConfig struct {
	Recipients  []string       `json:"recipients"`
	RatePerSec  float64        `json:"rate_per_sec,omitempty"`
	SendTimeout string         `json:"send_timeout,omitempty"`
	Twilio      TwilioConfig   `json:"twilio"`
	Telegram    TelegramConfig `json:"telegram"`
}

type TwilioConfig struct {
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	From       string `json:"from,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty"`
}
