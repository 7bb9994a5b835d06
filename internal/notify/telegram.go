package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const telegramTextLimit = 4000

type TelegramConfig struct {
	Token string
	URL   string // Bot API endpoint; empty means the public one
}

// Telegram sends through a bot. Updates are never polled.
type Telegram struct {
	bot *tele.Bot
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(cfg.URL, "/"),
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

// Send delivers message, split on line boundaries when it is too long for a
// single Telegram message.
func (t *Telegram) Send(ctx context.Context, r Recipient, message string) error {
	id, err := strconv.ParseInt(r.Address, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q", r.Address)
	}
	chat := &tele.Chat{ID: id}
	opt := &tele.SendOptions{ThreadID: r.ThreadID, DisableWebPagePreview: true}
	for _, chunk := range splitText(plainText(message), telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(chat, chunk, opt); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}
	return nil
}

// plainText drops the *bold* markers the formatter writes for WhatsApp.
// Telegram messages go out without a parse mode and would show them as is.
func plainText(s string) string {
	return strings.ReplaceAll(s, "*", "")
}

// splitText cuts s into chunks of at most limit runes, preferring a newline
// near the end of each window.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Skip cuts that would leave a tiny chunk.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
