package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownChannel is returned for a recipient whose channel has no
// transport.
var ErrUnknownChannel = errors.New("notify: unknown channel")

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelLog      Channel = "log"
)

// Recipient is one delivery target, written "<channel>:<address>" in
// configuration. Telegram addresses may carry a forum thread: "-100123/42".
type Recipient struct {
	Channel  Channel
	Address  string
	ThreadID int
}

func (r Recipient) String() string {
	s := string(r.Channel) + ":" + r.Address
	if r.ThreadID != 0 {
		s += "/" + strconv.Itoa(r.ThreadID)
	}
	return s
}

// ParseRecipient parses "whatsapp:+56912345678", "telegram:-1001234/7" or
// "log:stdout". A bare phone number means whatsapp.
func ParseRecipient(s string) (Recipient, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Recipient{}, errors.New("empty recipient")
	}
	ch, addr, ok := strings.Cut(s, ":")
	if !ok {
		ch, addr = string(ChannelWhatsApp), s
	}
	r := Recipient{Channel: Channel(strings.ToLower(strings.TrimSpace(ch))), Address: strings.TrimSpace(addr)}
	if r.Address == "" {
		return Recipient{}, fmt.Errorf("recipient %q: empty address", s)
	}

	switch r.Channel {
	case ChannelWhatsApp, ChannelLog:
	case ChannelTelegram:
		chat, thread, hasThread := strings.Cut(r.Address, "/")
		if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
			return Recipient{}, fmt.Errorf("recipient %q: chat id must be numeric", s)
		}
		r.Address = chat
		if hasThread {
			n, err := strconv.Atoi(thread)
			if err != nil || n <= 0 {
				return Recipient{}, fmt.Errorf("recipient %q: bad thread id", s)
			}
			r.ThreadID = n
		}
	default:
		return Recipient{}, fmt.Errorf("recipient %q: %w", s, ErrUnknownChannel)
	}
	return r, nil
}

// ParseRecipients parses every entry and de-duplicates them, keeping order.
func ParseRecipients(in []string) ([]Recipient, error) {
	out := make([]Recipient, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		r, err := ParseRecipient(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r.String()]; dup {
			continue
		}
		seen[r.String()] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
