// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accepted rejected"`
}

// MatchView is a match as seen by one participant
type MatchView struct {
	*Match
	PartnerID  int64    `json:"partner_id"`
	MyDecision Decision `json:"my_decision"`
}

func newMatchView(match *Match, userID int64) *MatchView {
	return &MatchView{
		Match:      match,
		PartnerID:  match.PartnerOf(userID),
		MyDecision: match.DecisionOf(userID),
	}
}

type FindMatchResponse struct {
	Match                *MatchView           `json:"match"`
	Compatibility        *CompatibilityResult `json:"compatibility,omitempty"`
	CandidatesConsidered int                  `json:"candidates_considered"`
}

type InvalidateResponse struct {
	UserID  int64 `json:"user_id"`
	Evicted int   `json:"evicted"`
}
