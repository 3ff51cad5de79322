package matching

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Decision is one participant's answer to a proposed match
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d may be submitted by a participant
func (d Decision) Valid() bool {
	return d == DecisionAccepted || d == DecisionRejected
}

// Status is the lifecycle state of a match
type Status string

const (
	StatusPending     Status = "pending"
	StatusMutualMatch Status = "mutual_match"
	StatusRejected    Status = "rejected"
	StatusExpired     Status = "expired"
)

// IsFinal reports whether no further transition is possible
func (s Status) IsFinal() bool {
	return s == StatusMutualMatch || s == StatusRejected || s == StatusExpired
}

// Tier buckets a compatibility score for display
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
	TierNone      Tier = "none"
)

// TierFor maps a 0-100 score onto its tier
func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierExcellent
	case score >= 60:
		return TierGood
	case score >= 40:
		return TierFair
	case score >= 20:
		return TierPoor
	default:
		return TierNone
	}
}

// Category names used as breakdown keys
const (
	CategoryInterests   = "interests"
	CategoryAge         = "age"
	CategoryGender      = "gender"
	CategoryLocation    = "location"
	CategoryBio         = "bio"
	CategoryLifestyle   = "lifestyle"
	CategoryPersonality = "personality"
	CategoryChemistry   = "chemistry"
)

// Breakdown maps a category to the points it contributed
type Breakdown map[string]int

// Scan implements the sql.Scanner interface for Breakdown
func (b *Breakdown) Scan(value interface{}) error {
	if value == nil {
		*b = Breakdown{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("breakdown: unsupported column type")
	}
	return json.Unmarshal(bytes, b)
}

// Value implements the driver.Valuer interface for Breakdown
func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

// Reasons is an ordered list of human readable explanations
type Reasons []string

// Scan implements the sql.Scanner interface for Reasons
func (r *Reasons) Scan(value interface{}) error {
	if value == nil {
		*r = Reasons{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("reasons: unsupported column type")
	}
	return json.Unmarshal(bytes, r)
}

// Value implements the driver.Valuer interface for Reasons
func (r Reasons) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// CompatibilityResult is the immutable outcome of scoring a pair
type CompatibilityResult struct {
	Score      int       `json:"score"`
	Tier       Tier      `json:"tier"`
	Reasons    Reasons   `json:"reasons"`
	Caveats    []string  `json:"caveats,omitempty"`
	Breakdown  Breakdown `json:"breakdown"`
	ComputedAt time.Time `json:"computed_at"`
}

// Match is a proposed pairing. User1ID is always the smaller id.
type Match struct {
	ID            string     `json:"id" db:"id"`
	User1ID       int64      `json:"user1_id" db:"user1_id"`
	User2ID       int64      `json:"user2_id" db:"user2_id"`
	Score         int        `json:"score" db:"score"`
	Reasons       Reasons    `json:"reasons" db:"reasons"`
	Breakdown     Breakdown  `json:"breakdown" db:"breakdown"`
	User1Decision Decision   `json:"user1_decision" db:"user1_decision"`
	User2Decision Decision   `json:"user2_decision" db:"user2_decision"`
	Status        Status     `json:"status" db:"status"`
	Version       int        `json:"-" db:"version"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// IsParticipant reports whether userID is one of the two users
func (m *Match) IsParticipant(userID int64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// PartnerOf returns the other participant
func (m *Match) PartnerOf(userID int64) int64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// DecisionOf returns userID's decision
func (m *Match) DecisionOf(userID int64) Decision {
	if m.User1ID == userID {
		return m.User1Decision
	}
	return m.User2Decision
}

// Clone returns a deep copy
func (m *Match) Clone() *Match {
	c := *m
	c.Reasons = append(Reasons(nil), m.Reasons...)
	if m.Breakdown != nil {
		c.Breakdown = make(Breakdown, len(m.Breakdown))
		for k, v := range m.Breakdown {
			c.Breakdown[k] = v
		}
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Stats summarizes the match table for monitoring
type Stats struct {
	Total        int `json:"total" db:"total"`
	Pending      int `json:"pending" db:"pending"`
	MutualMatch  int `json:"mutual_match" db:"mutual_match"`
	Rejected     int `json:"rejected" db:"rejected"`
	Expired      int `json:"expired" db:"expired"`
	WithDecision int `json:"with_decision" db:"with_decision"`
}
