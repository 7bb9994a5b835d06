package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds secrets and deployment overrides read from the environment.
// Non-empty values win over the file.
type Env struct {
	TwilioAccountSID   string   `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string   `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom         string   `env:"TWILIO_WHATSAPP_FROM"`
	WhatsAppRecipients []string `env:"WHATSAPP_RECIPIENTS" envSeparator:","`
	TelegramToken      string   `env:"TELEGRAM_TOKEN"`
	RedisURL           string   `env:"ECONBOT_REDIS_URL"`
	DisplayTimezone    string   `env:"ECONBOT_DISPLAY_TIMEZONE"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ReadEnv parses the overrides from environ, or from the process
// environment when environ is nil.
func ReadEnv(environ map[string]string) (Env, error) {
	var e Env
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, err
	}
	return e, nil
}

// Overlay copies the non-empty overrides into c.
func (c *Config) Overlay(e Env) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Notify.Twilio.AccountSID, e.TwilioAccountSID)
	set(&c.Notify.Twilio.AuthToken, e.TwilioAuthToken)
	set(&c.Notify.Twilio.From, e.TwilioFrom)
	set(&c.Notify.Telegram.Token, e.TelegramToken)
	set(&c.Storage.RedisURL, e.RedisURL)
	if tz := strings.TrimSpace(e.DisplayTimezone); tz != "" && tz != c.Display.Timezone {
		c.Display.Timezone = tz
		c.Display.Label = ""
	}

	var rs []string
	for _, r := range e.WhatsAppRecipients {
		if r = strings.TrimSpace(r); r != "" {
			rs = append(rs, r)
		}
	}
	if len(rs) > 0 {
		c.Notify.Recipients = rs
	}
}
