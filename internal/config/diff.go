package config

import (
	"reflect"
	"sort"
	"strings"

	logx "econbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging. Credentials and recipient addresses are never logged.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		m := newCfg.Monitor
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.Strs("monitor.countries", m.Countries),
			logx.Strs("monitor.impacts", m.Impacts),
			logx.Int("monitor.lookahead_minutes", m.LookaheadMinutes),
			logx.Int("monitor.result_expiry_hours", m.ResultExpiryHours),
			logx.String("monitor.retention", m.Retention),
		)
	}

	if oldCfg.Display != newCfg.Display {
		changed = append(changed, "display")
		attrs = append(attrs, logx.String("display.timezone", newCfg.Display.Timezone))
	}

	if !reflect.DeepEqual(oldCfg.Sources, newCfg.Sources) {
		changed = append(changed, "sources")
		types := make([]string, 0, len(newCfg.Sources))
		for _, s := range newCfg.Sources {
			types = append(types, strings.TrimSpace(s.Type))
		}
		attrs = append(attrs, logx.Strs("sources.chain", types))
	}

	// Storage changes take effect on restart only; the redis URL may hold a password.
	oS, nS := oldCfg.Storage, newCfg.Storage
	if oS.Driver != nS.Driver || oS.Path != nS.Path || oS.BusyTimeout != nS.BusyTimeout ||
		oS.KeyPrefix != nS.KeyPrefix || oS.RedisURL != nS.RedisURL {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nS.Driver),
			logx.Bool("storage.redis_url_set", strings.TrimSpace(nS.RedisURL) != ""),
		)
	}

	oN, nN := oldCfg.Notify, newCfg.Notify
	if !reflect.DeepEqual(oN.Recipients, nN.Recipients) || oN.RatePerSec != nN.RatePerSec ||
		oN.SendTimeout != nN.SendTimeout || oN.Twilio != nN.Twilio || oN.Telegram != nN.Telegram {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.recipient_count", len(nN.Recipients)),
			logx.Any("notify.rate_per_sec", nN.RatePerSec),
			logx.Bool("notify.twilio_set", nN.Twilio.AccountSID != "" && nN.Twilio.AuthToken != ""),
			logx.Bool("notify.telegram_set", nN.Telegram.Token != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.textfile_set", newCfg.Metrics.Textfile != ""))
	}

	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule", strings.TrimSpace(newCfg.Schedule)))
	}

	sort.Strings(changed)
	return changed, attrs
}
