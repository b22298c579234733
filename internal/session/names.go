package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/verina/internal/providers"
)

const displayNamePrompt = "Generate a concise, clear title (10-20 words) summarizing what this conversation is about. " +
	"Respond with the title only, no quotes, no punctuation at the end.\n\nFirst message:\n"

const displayNameMaxChars = 80

// synthesizeDisplayName asks the title model for a short session name.
// Any failure falls back to truncating the first message.
func (r *Registry) synthesizeDisplayName(ctx context.Context, firstMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := r.deps.Provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "user", Content: displayNamePrompt + firstMessage},
		},
		Model: r.deps.Config.Models.DisplayName,
		Options: map[string]interface{}{
			providers.OptTemperature: 0.3,
			providers.OptMaxTokens:   60,
		},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			slog.Debug("display name synthesis failed", "error", err)
		}
		return truncateTitle(firstMessage)
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return truncateTitle(firstMessage)
	}
	return truncateTitle(title)
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return "New conversation"
	}
	runes := []rune(s)
	if len(runes) <= displayNameMaxChars {
		return s
	}
	return strings.TrimSpace(string(runes[:displayNameMaxChars])) + "..."
}
