package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

const sendgridSendURL = "https://api.sendgrid.com/v3/mail/send"

// SendgridOptions configures a SendgridNotifier.
type SendgridOptions struct {
	APIKey            string
	FromEmail         string
	AdminEmail        string
	SendSuccessEmails bool
	HTTPClient        *http.Client
	Logger            *infra.Logger
}

// SendgridNotifier delivers admin alerts through the SendGrid v3 mail API.
// Failures are logged and swallowed: alerting must never change a pipeline
// outcome.
type SendgridNotifier struct {
	apiKey      string
	fromEmail   string
	adminEmail  string
	sendSuccess bool
	httpClient  *http.Client
	logger      infra.Logger
	baseURL     string
}

// NewSendgrid builds a notifier. When the API key or admin address is
// missing it degrades to a Noop so callers never branch on configuration.
func NewSendgrid(opts SendgridOptions) Notifier {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.AdminEmail) == "" {
		logger.Warn().Msg("notify: sendgrid not configured, admin alerts disabled")
		return Noop{}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	from := opts.FromEmail
	if from == "" {
		from = "alerts@localhost"
	}

	return &SendgridNotifier{
		apiKey:      opts.APIKey,
		fromEmail:   from,
		adminEmail:  opts.AdminEmail,
		sendSuccess: opts.SendSuccessEmails,
		httpClient:  client,
		logger:      logger,
		baseURL:     sendgridSendURL,
	}
}

type sendgridMessage struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SendAdminAlert delivers one alert email.
func (n *SendgridNotifier) SendAdminAlert(ctx context.Context, alert AdminAlert) {
	msg := sendgridMessage{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: n.adminEmail}}}},
		From:             sendgridAddress{Email: n.fromEmail},
		Subject:          "🚨 " + alert.Subject,
		Content: []sendgridContent{
			{Type: "text/plain", Value: alert.Body},
			{Type: "text/html", Value: formatHTMLBody(alert)},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error().Err(err).Msg("notify: marshal alert")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error().Err(err).Msg("notify: create alert request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Str("subject", alert.Subject).Msg("notify: send alert failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		n.logger.Error().
			Int("status", resp.StatusCode).
			Str("subject", alert.Subject).
			Str("response", strings.TrimSpace(string(data))).
			Msg("notify: sendgrid rejected alert")
		return
	}

	n.logger.Info().Str("subject", alert.Subject).Msg("notify: alert sent")
}

// SendSuccessNotification reports a completed run when success emails are
// explicitly enabled.
func (n *SendgridNotifier) SendSuccessNotification(ctx context.Context, storyID string, durationMS int64) {
	if !n.sendSuccess {
		return
	}
	n.SendAdminAlert(ctx, AdminAlert{
		Subject: "Story Generated Successfully",
		Body:    fmt.Sprintf("Story %s was generated successfully in %dms", storyID, durationMS),
		StoryID: storyID,
	})
}

func formatHTMLBody(alert AdminAlert) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h2>Story Generation Alert</h2>")
	b.WriteString("<h3>" + html.EscapeString(alert.Subject) + "</h3>")
	if alert.StoryID != "" {
		b.WriteString("<p><strong>Story ID:</strong> " + html.EscapeString(alert.StoryID) + "</p>")
	}
	if alert.UserID != "" {
		b.WriteString("<p><strong>User ID:</strong> " + html.EscapeString(alert.UserID) + "</p>")
	}
	b.WriteString("<p><strong>Time:</strong> " + time.Now().UTC().Format(time.RFC3339) + "</p>")
	b.WriteString("<pre>" + html.EscapeString(alert.Body) + "</pre>")
	b.WriteString("</body></html>")
	return b.String()
}

var _ Notifier = (*SendgridNotifier)(nil)
