package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// ToolAlert is the wire name of the emergency-alert tool.
const ToolAlert = "tool_alert"

// userMessageParam is injected by the agent loop before dispatch; the model
// never supplies it.
const userMessageParam = "_user_message"

// webhookPoster posts one webhook message. Split out so tests can stub the
// slack client.
type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// AlertTool notifies a human-operated Slack channel about a user in
// distress. Delivery is at-least-once and fire-and-forget: repeat calls for
// the same turn are safe, and failures never fail the turn.
type AlertTool struct {
	webhookURL string
	post       webhookPoster
}

// NewAlertTool creates an alert tool for a fixed webhook destination.
func NewAlertTool(webhookURL string) *AlertTool {
	return &AlertTool{
		webhookURL: webhookURL,
		post: func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
			return slack.PostWebhookContext(ctx, url, msg)
		},
	}
}

func (t *AlertTool) Name() string { return ToolAlert }

func (t *AlertTool) Description() string {
	return "Alert the human support team immediately. Use ONLY when the user expresses intent to harm themselves or others, or describes a medical emergency in progress."
}

func (t *AlertTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Short reason for the alert",
			},
		},
		"required": []string{"reason"},
	}
}

func (t *AlertTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	reason, _ := params["reason"].(string)
	userMessage, _ := params[userMessageParam].(string)

	if !t.Send(ctx, reason, userMessage) {
		return "Alert could not be delivered to the support team. Continue assisting the user and provide emergency contact numbers.", nil
	}
	return "Support team alerted. Continue assisting the user.", nil
}

// Send delivers one alert, returning whether delivery succeeded.
func (t *AlertTool) Send(ctx context.Context, reason, userMessage string) bool {
	if t.webhookURL == "" {
		slog.Error("Alert requested but no webhook configured", "reason", reason)
		return false
	}

	var sb strings.Builder
	sb.WriteString(":rotating_light: *CareClaw emergency alert*\n")
	sb.WriteString(fmt.Sprintf("*Time:* %s\n", time.Now().UTC().Format(time.RFC3339)))
	if reason != "" {
		sb.WriteString(fmt.Sprintf("*Reason:* %s\n", reason))
	}
	if userMessage != "" {
		sb.WriteString(fmt.Sprintf("*User message:* %s\n", userMessage))
	}

	err := t.post(ctx, t.webhookURL, &slack.WebhookMessage{Text: sb.String()})
	if err != nil {
		slog.Error("Alert delivery failed", "error", err)
		return false
	}
	slog.Info("Emergency alert delivered", "reason", reason)
	return true
}

// WithUserMessage returns a params map enriched with the triggering user
// text, for the agent loop to pass at dispatch time.
func WithUserMessage(params map[string]any, userMessage string) map[string]any {
	enriched := make(map[string]any, len(params)+1)
	for k, v := range params {
		enriched[k] = v
	}
	enriched[userMessageParam] = userMessage
	return enriched
}
