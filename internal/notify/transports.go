package notify

import (
	"fmt"

	"econbot/pkg/logx"
)

// TransportConfig carries the credentials of every transport.
type TransportConfig struct {
	Twilio   TwilioConfig
	Telegram TelegramConfig
}

// BuildTransports creates the transports the recipients need. A channel
// without recipients is not built, so its credentials may be absent.
func BuildTransports(recipients []Recipient, cfg TransportConfig, log logx.Logger) (map[Channel]Notifier, error) {
	out := map[Channel]Notifier{}
	for _, r := range recipients {
		if _, done := out[r.Channel]; done {
			continue
		}
		switch r.Channel {
		case ChannelWhatsApp:
			w, err := NewWhatsApp(cfg.Twilio)
			if err != nil {
				return nil, fmt.Errorf("whatsapp transport: %w", err)
			}
			out[r.Channel] = w
		case ChannelTelegram:
			t, err := NewTelegram(cfg.Telegram)
			if err != nil {
				return nil, fmt.Errorf("telegram transport: %w", err)
			}
			out[r.Channel] = t
		case ChannelLog:
			out[r.Channel] = NewLogNotifier(log)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, r.Channel)
		}
	}
	return out, nil
}

// LogTransports routes every channel to the log.
func LogTransports(log logx.Logger) map[Channel]Notifier {
	n := NewLogNotifier(log)
	return map[Channel]Notifier{ChannelWhatsApp: n, ChannelTelegram: n, ChannelLog: n}
}
