package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackPoster is the part of *slack.Client used for delivery.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackChannel delivers reminders as direct messages. Posting to a user ID
// opens the bot's DM with that user.
type SlackChannel struct {
	client SlackPoster
}

// NewSlackChannel returns a Channel backed by client.
func NewSlackChannel(client SlackPoster) *SlackChannel {
	return &SlackChannel{client: client}
}

// Send posts content to userID.
func (c *SlackChannel) Send(ctx context.Context, userID, content string) error {
	if userID == "" {
		return errors.New("slack: empty user id")
	}
	_, _, err := c.client.PostMessageContext(ctx, userID,
		slack.MsgOptionText(content, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	return err
}

// LogChannel writes reminders to a logger. It stands in for a chat platform
// when no token is configured.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel returns a Channel that logs every message at info level.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Send logs content.
func (c *LogChannel) Send(ctx context.Context, userID, content string) error {
	c.logger.InfoContext(ctx, "reminder", slog.String("user_id", userID), slog.String("content", content))
	return nil
}
