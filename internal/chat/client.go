// Package chat is the thin client for the chat platform's bot API. The
// core only needs one query from it: channel membership. Callers treat any
// failure as "not a member".
package chat

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient authenticates the bot against the API at apiBase. The endpoint
// is configurable so tests can point the client at a local server.
func NewClient(apiBase, botToken string, timeout time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, apiBase+"/bot%s/%s", &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("authenticating bot: %w", err)
	}
	return &Client{bot: bot}, nil
}

// IsMember resolves the user's membership in a channel. Statuses that count
// as joined: creator, administrator, member.
func (c *Client) IsMember(ctx context.Context, channelID, externalUserID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	userID, err := strconv.ParseInt(externalUserID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parsing user ID %q: %w", externalUserID, err)
	}

	// Channels are stored either as @username or as a numeric chat ID.
	target := tgbotapi.ChatConfigWithUser{UserID: userID}
	if chatID, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		target.ChatID = chatID
	} else {
		target.SuperGroupUsername = channelID
	}

	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: target})
	if err != nil {
		return false, fmt.Errorf("querying membership: %w", err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	}
	return false, nil
}
