package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"econbot/internal/calendar"
	"econbot/internal/notify"
	"econbot/internal/scheduler"
	"econbot/internal/source"
	"econbot/internal/storage"
	logx "econbot/pkg/logx"
)

// Runtime is the validated, typed form of Config that components take at
// construction.
type Runtime struct {
	Normalizer      calendar.NormalizerConfig
	Scheduler       scheduler.Config
	Sources         []source.Config
	SourceTimeout   time.Duration
	FetchDays       int
	Retention       time.Duration
	Storage         storage.Config
	Notify          notify.Config
	Transports      notify.TransportConfig
	Display         *time.Location
	DisplayLabel    string
	Logging         logx.Config
	MetricsTextfile string
	Schedule        string
}

// Runtime validates c and converts it. Call ApplyDefaults first. Every
// problem found is reported, joined.
func (c *Config) Runtime() (Runtime, error) {
	var (
		rt   Runtime
		errs []error
	)
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	m := c.Monitor
	for _, f := range []struct {
		field string
		v     int
	}{
		{"monitor.lookahead_minutes", m.LookaheadMinutes},
		{"monitor.alert_slack_minutes", m.AlertSlackMinutes},
		{"monitor.result_grace_minutes", m.ResultGraceMinutes},
		{"monitor.result_expiry_hours", m.ResultExpiryHours},
		{"monitor.fetch_days", m.FetchDays},
	} {
		if f.v < 0 {
			fail("%s: must be >= 0", f.field)
		}
	}
	if m.IDTitleLength < 20 || m.IDTitleLength > 30 {
		fail("monitor.id_title_length: must be within 20..30, got %d", m.IDTitleLength)
	}
	if m.ResultExpiryHours*60 <= m.ResultGraceMinutes {
		fail("monitor.result_expiry_hours: must be later than result_grace_minutes")
	}
	rt.Scheduler = scheduler.Config{
		LookaheadMinutes:   m.LookaheadMinutes,
		AlertSlackMinutes:  m.AlertSlackMinutes,
		ResultGraceMinutes: m.ResultGraceMinutes,
		ResultExpiryHours:  m.ResultExpiryHours,
	}
	rt.FetchDays = m.FetchDays

	var err error
	if rt.Retention, err = parseDurationOrDefault("monitor.retention", m.Retention, storage.DefaultRetention); err != nil {
		errs = append(errs, err)
	} else {
		// A record evicted while its event can still match would be sent again.
		window := time.Duration(m.LookaheadMinutes+m.AlertSlackMinutes) * time.Minute
		expiry := time.Duration(m.ResultExpiryHours) * time.Hour
		if rt.Retention <= window || rt.Retention < expiry {
			fail("monitor.retention: must exceed lookahead+slack (%v) and cover result_expiry_hours (%v), got %v",
				window, expiry, rt.Retention)
		}
	}

	countries := make([]string, 0, len(m.Countries))
	for _, cc := range m.Countries {
		cc = strings.ToUpper(strings.TrimSpace(cc))
		if cc == "" {
			continue
		}
		countries = append(countries, cc)
	}
	if len(countries) == 0 {
		fail("monitor.countries: at least one country is required")
	}
	impacts := make([]calendar.Impact, 0, len(m.Impacts))
	for _, s := range m.Impacts {
		imp, ok := calendar.ParseImpact(s)
		if !ok {
			fail("monitor.impacts: unsupported impact %q (High, Holiday)", s)
			continue
		}
		impacts = append(impacts, imp)
	}
	providerTZ, err := time.LoadLocation(strings.TrimSpace(m.ProviderTimezone))
	if err != nil {
		fail("monitor.provider_timezone: %v", err)
	}
	rt.Normalizer = calendar.NormalizerConfig{
		Countries:     countries,
		Impacts:       impacts,
		ProviderTZ:    providerTZ,
		IDTitleLength: m.IDTitleLength,
	}

	if rt.Display, err = time.LoadLocation(strings.TrimSpace(c.Display.Timezone)); err != nil {
		fail("display.timezone: %v", err)
	}
	rt.DisplayLabel = strings.TrimSpace(c.Display.Label)

	if len(c.Sources) == 0 {
		fail("sources: at least one source is required")
	}
	// Each source carries its own budget; this is the chain's fallback.
	rt.SourceTimeout = source.DefaultTimeout
	for i, sc := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		timeout, err := parseDurationOrDefault(field+".timeout", sc.Timeout, source.DefaultTimeout)
		if err != nil {
			errs = append(errs, err)
		}
		cfg := source.Config{
			Type:      strings.ToLower(strings.TrimSpace(sc.Type)),
			BaseURL:   sc.BaseURL,
			UserAgent: sc.UserAgent,
			Timeout:   timeout,
			Countries: sc.Countries,
		}
		if _, err := source.NewFromConfig(cfg); err != nil {
			fail("%s: %v", field, err)
			continue
		}
		rt.Sources = append(rt.Sources, cfg)
	}

	busy, err := parseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 0)
	if err != nil {
		errs = append(errs, err)
	}
	rt.Storage = storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(c.Storage.Driver)),
		Path:        strings.TrimSpace(c.Storage.Path),
		BusyTimeout: busy,
		RedisURL:    strings.TrimSpace(c.Storage.RedisURL),
		KeyPrefix:   strings.TrimSpace(c.Storage.KeyPrefix),
	}
	switch rt.Storage.Driver {
	case "file", "sqlite", "sqlite3", "memory":
	case "redis":
		if rt.Storage.RedisURL == "" {
			fail("storage.redis_url: required for the redis driver")
		}
	default:
		fail("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	recipients, err := notify.ParseRecipients(c.Notify.Recipients)
	if err != nil {
		fail("notify.recipients: %v", err)
	}
	if len(c.Notify.Recipients) == 0 {
		fail("notify.recipients: at least one recipient is required")
	}
	sendTimeout, err := parseDurationOrDefault("notify.send_timeout", c.Notify.SendTimeout, 30*time.Second)
	if err != nil {
		errs = append(errs, err)
	}
	rt.Notify = notify.Config{Recipients: recipients, RatePerSec: c.Notify.RatePerSec, SendTimeout: sendTimeout}
	rt.Transports = notify.TransportConfig{
		Twilio: notify.TwilioConfig{
			AccountSID: c.Notify.Twilio.AccountSID,
			AuthToken:  c.Notify.Twilio.AuthToken,
			From:       c.Notify.Twilio.From,
			BaseURL:    c.Notify.Twilio.BaseURL,
		},
		Telegram: notify.TelegramConfig{Token: c.Notify.Telegram.Token, URL: c.Notify.Telegram.URL},
	}

	rt.Logging = logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
	rt.MetricsTextfile = strings.TrimSpace(c.Metrics.Textfile)

	rt.Schedule = strings.TrimSpace(c.Schedule)
	if _, err := cron.ParseStandard(rt.Schedule); err != nil {
		fail("schedule: %v", err)
	}

	if len(errs) > 0 {
		return Runtime{}, errors.Join(errs...)
	}
	return rt, nil
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
