// Package alerting turns Alertmanager webhook payloads into Discord messages.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxEmbeds = 10

var ErrNotConfigured = errors.New("alerting: discord webhook url not configured")

const (
	colorCritical = 0xFF0000
	colorWarning  = 0xFFA500
	colorInfo     = 0x0099FF
	colorResolved = 0x00FF00
)

var severityColors = map[string]int{
	"critical": colorCritical,
	"warning":  colorWarning,
	"info":     colorInfo,
}

var severityEmoji = map[string]string{
	"critical": "🚨",
	"warning":  "⚠️",
	"info":     "📊",
}

// Payload is the Alertmanager webhook body; only the fields we render are decoded.
type Payload struct {
	Status string  `json:"status"`
	Alerts []Alert `json:"alerts"`
}

type Alert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt"`
	EndsAt      string            `json:"endsAt"`
}

type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields"`
	Footer      Footer  `json:"footer"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Footer struct {
	Text string `json:"text"`
}

// Format builds the Discord message for p. It returns nil when p carries no alerts.
func Format(p Payload, now time.Time) *Message {
	if len(p.Alerts) == 0 {
		return nil
	}
	alerts := p.Alerts
	if len(alerts) > maxEmbeds {
		alerts = alerts[:maxEmbeds]
	}

	msg := &Message{Embeds: make([]Embed, 0, len(alerts))}
	footer := Footer{Text: "TailorJob Monitoring • " + now.UTC().Format("2006-01-02 15:04:05") + " UTC"}
	for _, a := range alerts {
		msg.Embeds = append(msg.Embeds, embed(a, footer))
	}

	// every alert counts for the mention, not just the rendered ones
	for _, a := range p.Alerts {
		if a.Labels["severity"] == "critical" && a.status() == "firing" {
			msg.Content = "@everyone **CRITICAL ALERT**"
			break
		}
	}
	return msg
}

func (a Alert) status() string {
	if a.Status == "" {
		return "firing"
	}
	return a.Status
}

func embed(a Alert, footer Footer) Embed {
	severity := a.Labels["severity"]
	if severity == "" {
		severity = "info"
	}

	var color int
	var emoji, prefix string
	if a.status() == "resolved" {
		color, emoji, prefix = colorResolved, "✅", "RESOLVED"
	} else {
		var ok bool
		if color, ok = severityColors[severity]; !ok {
			color = colorInfo
		}
		if emoji, ok = severityEmoji[severity]; !ok {
			emoji = "❓"
		}
		prefix = strings.ToUpper(severity)
	}

	summary := a.Annotations["summary"]
	if summary == "" {
		summary = a.Labels["alertname"]
	}
	if summary == "" {
		summary = "Unknown Alert"
	}
	desc := a.Annotations["description"]
	if desc == "" {
		desc = "No description provided"
	}

	e := Embed{
		Title:       fmt.Sprintf("%s %s: %s", emoji, prefix, summary),
		Description: desc,
		Color:       color,
		Fields:      []Field{},
		Footer:      footer,
	}
	if v, ok := a.Annotations["action"]; ok {
		e.Fields = append(e.Fields, Field{Name: "🔧 Action Required", Value: v})
	}
	if v, ok := a.Labels["job"]; ok {
		e.Fields = append(e.Fields, Field{Name: "Service", Value: v, Inline: true})
	}
	if v, ok := a.Labels["endpoint"]; ok {
		e.Fields = append(e.Fields, Field{Name: "Endpoint", Value: v, Inline: true})
	}
	if a.status() == "firing" {
		if a.StartsAt != "" {
			e.Fields = append(e.Fields, Field{Name: "Started", Value: shortTime(a.StartsAt), Inline: true})
		}
	} else if a.EndsAt != "" {
		e.Fields = append(e.Fields, Field{Name: "Resolved", Value: shortTime(a.EndsAt), Inline: true})
	}
	return e
}

// shortTime turns 2025-01-02T03:04:05.123Z into 2025-01-02 03:04:05.
func shortTime(ts string) string {
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		ts = ts[:i]
	}
	ts = strings.TrimSuffix(ts, "Z")
	return strings.Replace(ts, "T", " ", 1)
}

// Forwarder posts messages to a Discord webhook.
type Forwarder struct {
	http *resty.Client
	url  string
}

func NewForwarder(webhookURL string) *Forwarder {
	return &Forwarder{
		http: resty.New().SetTimeout(10 * time.Second),
		url:  webhookURL,
	}
}

func (f *Forwarder) Configured() bool { return f.url != "" }

func (f *Forwarder) Send(ctx context.Context, msg *Message) error {
	if !f.Configured() {
		return ErrNotConfigured
	}
	resp, err := f.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(f.url)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
