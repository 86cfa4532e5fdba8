// Package gate implements the force-subscribe precondition: membership in
// every configured channel, re-evaluated on each gated action. It persists
// nothing and fails closed when membership cannot be resolved.
package gate

import (
	"context"
	"log/slog"

	"turnstile/internal/db"
	"turnstile/internal/models"
)

// MembershipChecker resolves whether a user is a member of a channel on the
// chat platform. Implementations may fail; failure is treated as not joined.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID, externalUserID string) (bool, error)
}

type ChannelStatus struct {
	Channel *models.RequiredChannel `json:"channel"`
	Joined  bool                    `json:"joined"`
}

type Gate struct {
	channels *db.ChannelRepository
	checker  MembershipChecker
}

func New(channels *db.ChannelRepository, checker MembershipChecker) *Gate {
	return &Gate{channels: channels, checker: checker}
}

// Check evaluates every rule for the user. The second return value lists
// the channels the user has not joined.
func (g *Gate) Check(ctx context.Context, externalUserID string) (bool, []ChannelStatus, error) {
	rules, err := g.channels.List(ctx)
	if err != nil {
		return false, nil, err
	}

	satisfied := true
	statuses := make([]ChannelStatus, 0, len(rules))
	for _, rule := range rules {
		joined, err := g.checker.IsMember(ctx, rule.ChannelID, externalUserID)
		if err != nil {
			// Fail closed: unresolved membership counts as not joined.
			slog.Warn("membership check failed", "channel", rule.ChannelID, "error", err)
			joined = false
		}
		if !joined {
			satisfied = false
		}
		statuses = append(statuses, ChannelStatus{Channel: rule, Joined: joined})
	}

	return satisfied, statuses, nil
}
