package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"econbot/pkg/logx"
)

func TestParseRecipient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Recipient
	}{
		{"whatsapp:+56912345678", Recipient{Channel: ChannelWhatsApp, Address: "+56912345678"}},
		{" +56912345678 ", Recipient{Channel: ChannelWhatsApp, Address: "+56912345678"}},
		{"Telegram:-1001234567890", Recipient{Channel: ChannelTelegram, Address: "-1001234567890"}},
		{"telegram:-1001234567890/42", Recipient{Channel: ChannelTelegram, Address: "-1001234567890", ThreadID: 42}},
		{"log:stdout", Recipient{Channel: ChannelLog, Address: "stdout"}},
	}
	for _, tt := range tests {
		got, err := ParseRecipient(tt.in)
		if err != nil {
			t.Fatalf("ParseRecipient(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseRecipient(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseRecipientErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "whatsapp:", "telegram:@channel", "telegram:-100/x", "telegram:-100/0"} {
		if _, err := ParseRecipient(in); err == nil {
			t.Fatalf("ParseRecipient(%q) should fail", in)
		}
	}
	if _, err := ParseRecipient("sms:+1555"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("err = %v, want ErrUnknownChannel", err)
	}
}

func TestParseRecipientsDedupes(t *testing.T) {
	t.Parallel()
	rs, err := ParseRecipients([]string{"+56911111111", "whatsapp:+56911111111", "telegram:-1/2", "telegram:-1"})
	if err != nil {
		t.Fatalf("ParseRecipients: %v", err)
	}
	if len(rs) != 3 {
		t.Fatalf("recipients = %v", rs)
	}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, r Recipient, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r.Address)
	if f.fail[r.Address] {
		return errors.New("unreachable")
	}
	return nil
}

func TestDispatcherFireAndContinue(t *testing.T) {
	t.Parallel()
	wa := &fakeNotifier{fail: map[string]bool{"+1": true}}
	recipients := []Recipient{
		{Channel: ChannelWhatsApp, Address: "+1"},
		{Channel: "pager", Address: "x"},
		{Channel: ChannelWhatsApp, Address: "+2"},
	}
	d := NewDispatcher(Config{Recipients: recipients, RatePerSec: -1}, map[Channel]Notifier{ChannelWhatsApp: wa}, logx.Nop())
	var observed int
	d.OnResult(func(Result) { observed++ })

	res := d.Broadcast(context.Background(), recipients, "hello")
	if len(res) != 3 || observed != 3 {
		t.Fatalf("results = %d, observed = %d", len(res), observed)
	}
	if res[0].Err == nil || !errors.Is(res[1].Err, ErrUnknownChannel) || res[2].Err != nil {
		t.Fatalf("unexpected results: %+v", res)
	}
	if strings.Join(wa.sent, ",") != "+1,+2" {
		t.Fatalf("sent = %v", wa.sent)
	}
	if failed := d.Deliver(context.Background(), "again"); failed != 2 {
		t.Fatalf("Deliver failed = %d, want 2", failed)
	}
}

type slowNotifier struct{}

func (slowNotifier) Send(ctx context.Context, _ Recipient, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherSendTimeout(t *testing.T) {
	t.Parallel()
	r := Recipient{Channel: ChannelLog, Address: "x"}
	d := NewDispatcher(Config{Recipients: []Recipient{r}, RatePerSec: -1, SendTimeout: 20 * time.Millisecond},
		map[Channel]Notifier{ChannelLog: slowNotifier{}}, logx.Nop())
	res := d.Broadcast(context.Background(), []Recipient{r}, "x")
	if !errors.Is(res[0].Err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", res[0].Err)
	}
}

func TestWhatsAppSend(t *testing.T) {
	t.Parallel()
	type call struct {
		path, user, pass, from, to, body string
	}
	calls := make(chan call, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		_ = r.ParseForm()
		calls <- call{r.URL.Path, user, pass, r.PostForm.Get("From"), r.PostForm.Get("To"), r.PostForm.Get("Body")}
		if r.PostForm.Get("To") == "whatsapp:+999" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	wa, err := NewWhatsApp(TwilioConfig{AccountSID: "AC1", AuthToken: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhatsApp: %v", err)
	}
	if err := wa.Send(context.Background(), Recipient{Channel: ChannelWhatsApp, Address: "+56912345678"}, "hola"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	c := <-calls
	want := call{"/2010-04-01/Accounts/AC1/Messages.json", "AC1", "secret", "whatsapp:+14155238886", "whatsapp:+56912345678", "hola"}
	if c != want {
		t.Fatalf("call = %+v, want %+v", c, want)
	}

	err = wa.Send(context.Background(), Recipient{Channel: ChannelWhatsApp, Address: "whatsapp:+999"}, "hola")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want http 400", err)
	}
	<-calls
}

func TestNewWhatsAppRequiresCredentials(t *testing.T) {
	t.Parallel()
	if _, err := NewWhatsApp(TwilioConfig{AccountSID: "AC1"}); err == nil {
		t.Fatal("missing auth token accepted")
	}
}

type telegramRequests struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *telegramRequests) field(i int, key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.bodies[i][key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

func (r *telegramRequests) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func newTelegramServer(t *testing.T) (*Telegram, *telegramRequests) {
	t.Helper()
	reqs := &telegramRequests{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var body map[string]any
		_ = dec.Decode(&body)
		reqs.mu.Lock()
		reqs.bodies = append(reqs.bodies, body)
		reqs.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100123,"type":"supergroup"},"text":"x"}}`))
	}))
	t.Cleanup(srv.Close)

	tg, err := NewTelegram(TelegramConfig{Token: "123:abc", URL: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	return tg, reqs
}

func TestTelegramSendSplitsLongMessages(t *testing.T) {
	t.Parallel()
	tg, reqs := newTelegramServer(t)

	long := strings.Repeat(strings.Repeat("a", 99)+"\n", 50) // 5000 runes
	if err := tg.Send(context.Background(), Recipient{Channel: ChannelTelegram, Address: "-100123"}, long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := reqs.count(); n != 2 {
		t.Fatalf("messages = %d, want 2", n)
	}
	if chat := reqs.field(0, "chat_id"); chat != "-100123" {
		t.Fatalf("chat_id = %q", chat)
	}
	if joined := reqs.field(0, "text") + "\n" + reqs.field(1, "text"); joined != strings.TrimRight(long, "\n") {
		t.Fatal("chunks do not reassemble to the original message")
	}
}

func TestTelegramSendStripsBoldMarkers(t *testing.T) {
	t.Parallel()
	tg, reqs := newTelegramServer(t)

	msg := "🔴 *EVENTO ALTO IMPACTO*\n\n📊 Non-Farm Payrolls\n📈 *Actual:* 256K"
	if err := tg.Send(context.Background(), Recipient{Channel: ChannelTelegram, Address: "-100123"}, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := reqs.count(); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
	want := "🔴 EVENTO ALTO IMPACTO\n\n📊 Non-Farm Payrolls\n📈 Actual: 256K"
	if got := reqs.field(0, "text"); got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	if mode := reqs.field(0, "parse_mode"); mode != "" {
		t.Fatalf("parse_mode = %q, want none", mode)
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got %q", got)
	}
	got := splitText("aaaa\nbbbb\ncccc", 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Fatalf("got %q", got)
	}
	got = splitText(strings.Repeat("x", 25), 10)
	if len(got) != 3 || got[2] != "xxxxx" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildTransports(t *testing.T) {
	t.Parallel()
	rs := []Recipient{{Channel: ChannelLog, Address: "stdout"}}
	tr, err := BuildTransports(rs, TransportConfig{}, logx.Nop())
	if err != nil || len(tr) != 1 {
		t.Fatalf("BuildTransports = %v, %v", tr, err)
	}
	rs = append(rs, Recipient{Channel: ChannelWhatsApp, Address: "+1"})
	if _, err := BuildTransports(rs, TransportConfig{}, logx.Nop()); err == nil {
		t.Fatal("whatsapp without credentials must fail")
	}
}
