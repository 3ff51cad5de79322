// internal/notification/dispatcher.go

package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-matching/internal/matching"
)

// Publisher pushes frames to live connections
type Publisher interface {
	Publish(msg Message)
}

// Dispatcher stores match notifications for both participants and pushes
// them to connected clients
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. publisher may be nil.
func NewDispatcher(repo Repository, publisher Publisher) *Dispatcher {
	return &Dispatcher{repo: repo, publisher: publisher, now: time.Now}
}

// MatchCreated tells both users a new match awaits their decision
func (d *Dispatcher) MatchCreated(ctx context.Context, match *matching.Match) error {
	return d.notifyPair(ctx, match, TypeMatchCreated,
		"New match",
		"You have a new match with a compatibility score of %d. Respond within 24 hours.",
	)
}

// MutualMatch tells both users they accepted each other
func (d *Dispatcher) MutualMatch(ctx context.Context, match *matching.Match) error {
	return d.notifyPair(ctx, match, TypeMutualMatch,
		"It's a match!",
		"You both said yes. Your compatibility score is %d.",
	)
}

func (d *Dispatcher) notifyPair(ctx context.Context, match *matching.Match, kind Type, title, format string) error {
	now := d.now().UTC()
	notifications := make([]*Notification, 0, 2)
	for _, userID := range []int64{match.User1ID, match.User2ID} {
		notifications = append(notifications, &Notification{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    kind,
			Title:   title,
			Message: fmt.Sprintf(format, match.Score),
			Data: Data{
				"match_id":   match.ID,
				"partner_id": match.PartnerOf(userID),
				"score":      match.Score,
				"expires_at": match.ExpiresAt,
			},
			CreatedAt: now,
		})
	}

	if err := d.repo.CreateBatchNotifications(ctx, notifications); err != nil {
		return fmt.Errorf("store %s notifications: %w", kind, err)
	}

	if d.publisher != nil {
		for _, n := range notifications {
			d.publisher.Publish(Message{Type: n.Type, UserID: n.UserID, Data: n})
		}
	}
	return nil
}
