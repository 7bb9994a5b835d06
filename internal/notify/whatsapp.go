package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	twilioDefaultURL  = "https://api.twilio.com"
	twilioDefaultFrom = "whatsapp:+14155238886"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // default is the Twilio sandbox number
	BaseURL    string
}

// WhatsApp sends through the Twilio Messages API.
type WhatsApp struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewWhatsApp(cfg TwilioConfig) (*WhatsApp, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = twilioDefaultFrom
	}
	cfg.From = whatsappAddr(cfg.From)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioDefaultURL
	}
	return &WhatsApp{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (w *WhatsApp) Send(ctx context.Context, r Recipient, message string) error {
	endpoint := w.cfg.BaseURL + "/2010-04-01/Accounts/" + url.PathEscape(w.cfg.AccountSID) + "/Messages.json"
	form := url.Values{}
	form.Set("From", w.cfg.From)
	form.Set("To", whatsappAddr(r.Address))
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(w.cfg.AccountSID, w.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	return fmt.Errorf("twilio: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func whatsappAddr(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "whatsapp:") {
		return s
	}
	return "whatsapp:" + s
}
