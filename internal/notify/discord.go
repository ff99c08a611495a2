package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
)

const (
	colorGreen  = 0x2ECC71 // recovered
	colorOrange = 0xE67E22 // first failure
	colorRed    = 0xE74C3C // repeated failures
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendFailure reports a failed refresh as a Discord embed.
func (d *DiscordNotifier) SendFailure(ctx context.Context, f *RefreshFailure) error {
	color := colorOrange
	if f.ConsecutiveFailures > 1 {
		color = colorRed
	}

	fields := []discordEmbedField{
		{Name: "App Key", Value: f.AppKey, Inline: true},
		{Name: "Kind", Value: f.Kind, Inline: true},
		{Name: "Failures", Value: strconv.Itoa(f.ConsecutiveFailures), Inline: true},
	}
	if f.Code != 0 {
		fields = append(fields, discordEmbedField{Name: "Code", Value: strconv.Itoa(f.Code), Inline: true})
	}

	return d.post(ctx, EventFailure, discordEmbed{
		Title:       "Access token refresh failed",
		Color:       color,
		Description: f.Message,
		Fields:      fields,
		Timestamp:   timestamp(f.At),
	})
}

// SendRecovery reports the first successful refresh after failures.
func (d *DiscordNotifier) SendRecovery(ctx context.Context, r *RefreshRecovery) error {
	return d.post(ctx, EventRecovery, discordEmbed{
		Title: "Access token refresh recovered",
		Color: colorGreen,
		Fields: []discordEmbedField{
			{Name: "App Key", Value: r.AppKey, Inline: true},
			{Name: "Failed Attempts", Value: strconv.Itoa(r.FailedAttempts), Inline: true},
			{Name: "Expires In", Value: strconv.Itoa(r.ExpiresIn) + "s", Inline: true},
		},
		Timestamp: timestamp(r.At),
	})
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (d *DiscordNotifier) post(ctx context.Context, event string, embed discordEmbed) (err error) {
	start := time.Now()
	defer func() {
		metrics.NotificationDuration.Observe(time.Since(start).Seconds())
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeTransport
		}
		metrics.NotificationsTotal.WithLabelValues(event, outcome).Inc()
	}()

	body, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
