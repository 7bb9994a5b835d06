// Package message renders alert bodies. Times are shown in the configured
// display zone; the layout follows WhatsApp markdown (*bold*).
package message

import (
	"strings"
	"time"

	"econbot/internal/calendar"
)

type Formatter struct {
	loc   *time.Location
	label string
}

// New returns a Formatter for loc. label is shown next to local times and
// defaults to the zone name.
func New(loc *time.Location, label string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = loc.String()
	}
	return &Formatter{loc: loc, label: label}
}

func (f *Formatter) PreAlert(ev calendar.Event) string {
	local := ev.ScheduledAt.In(f.loc)

	var b strings.Builder
	if ev.Impact == calendar.ImpactHoliday {
		b.WriteString("🏦 *FERIADO BANCARIO*\n\n")
	} else {
		b.WriteString("🔴 *EVENTO ALTO IMPACTO*\n\n")
	}
	b.WriteString("📅 " + local.Format("02/01/2006") + "\n")
	b.WriteString("⏰ " + local.Format("15:04") + " (" + f.label + ")\n")
	b.WriteString("💱 " + ev.Country + "\n")
	b.WriteString("📊 " + ev.Title + "\n")
	if ev.Impact != calendar.ImpactHoliday {
		b.WriteString("\n⚠️ Considerar cerrar/reducir posiciones\n")
	}
	if ev.Estimate != "" {
		b.WriteString("\n📈 Forecast: " + ev.Estimate)
	}
	if ev.Previous != "" {
		b.WriteString("\n📉 Previous: " + ev.Previous)
	}
	return strings.TrimSpace(b.String())
}

// PostAlert renders the published result. s is omitted when it is
// SentimentNone.
func (f *Formatter) PostAlert(ev calendar.Event, s calendar.Sentiment) string {
	local := ev.ScheduledAt.In(f.loc)

	var b strings.Builder
	b.WriteString(sentimentIcon(s) + " *RESULTADO PUBLICADO*\n\n")
	b.WriteString("📊 " + ev.Title + " (" + ev.Country + ")\n")
	b.WriteString("⏰ " + local.Format("15:04") + " (" + f.label + ")\n")
	b.WriteString("\n✅ Actual: " + ev.Actual)
	if ev.Estimate != "" {
		b.WriteString("\n📈 Forecast: " + ev.Estimate)
	}
	if ev.Previous != "" {
		b.WriteString("\n📉 Previous: " + ev.Previous)
	}
	if tag := SentimentTag(s); tag != "" {
		b.WriteString("\n\n📌 " + tag)
	}
	return strings.TrimSpace(b.String())
}

// SentimentTag is the human label of s, empty for SentimentNone.
func SentimentTag(s calendar.Sentiment) string {
	switch s {
	case calendar.SentimentBetter:
		return "Mejor de lo esperado"
	case calendar.SentimentWorse:
		return "Peor de lo esperado"
	case calendar.SentimentInline:
		return "En línea con lo esperado"
	default:
		return ""
	}
}

func sentimentIcon(s calendar.Sentiment) string {
	switch s {
	case calendar.SentimentBetter:
		return "🟢"
	case calendar.SentimentWorse:
		return "🔴"
	case calendar.SentimentInline:
		return "⚪"
	default:
		return "🔵"
	}
}
