// internal/matching/service.go

package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/imadgeboyega/kiekky-matching/internal/cache"
	"github.com/imadgeboyega/kiekky-matching/internal/config"
	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchNotActive   = errors.New("match is no longer active")
	ErrMatchExpired     = errors.New("match has expired")
	ErrNotParticipant   = errors.New("user is not part of this match")
	ErrInvalidDecision  = errors.New("decision must be accepted or rejected")
	ErrInvalidStatus    = errors.New("unknown match status")
	ErrAlreadyDecided   = errors.New("decision already recorded")
	ErrConcurrentUpdate = errors.New("match was modified concurrently")
	ErrMatchExists      = errors.New("users already have a match")
	ErrSelfMatch        = errors.New("cannot match a user with themselves")
)

type Service interface {
	// Matching
	FindMatches(ctx context.Context, userID int64) (*FindResult, error)
	Compatibility(ctx context.Context, userID, otherID int64) (*CompatibilityResult, error)

	// Lifecycle
	Decide(ctx context.Context, matchID string, userID int64, decision Decision) (*Match, error)
	GetMatch(ctx context.Context, matchID string, userID int64) (*Match, error)
	ListMatches(ctx context.Context, userID int64, status Status) ([]*Match, error)

	// Cache and monitoring
	InvalidateUser(ctx context.Context, userID int64) (int, error)
	Stats(ctx context.Context) (*EngineStats, error)
}

// FindResult is the outcome of one matching request. Match is nil when no
// candidate qualified.
type FindResult struct {
	Match                *Match               `json:"match"`
	Compatibility        *CompatibilityResult `json:"compatibility,omitempty"`
	CandidatesConsidered int                  `json:"candidates_considered"`
}

// EngineStats is the monitoring view served on the stats endpoint
type EngineStats struct {
	Matches *Stats      `json:"matches"`
	Cache   cache.Stats `json:"cache"`
	Health  *Snapshot   `json:"health,omitempty"`
	Alerts  []*Alert    `json:"recent_alerts"`
}

// Dependencies are the collaborators an Engine is built from
type Dependencies struct {
	Profiles  profile.Repository
	Matches   Repository
	Alerts    AlertRepository
	Cache     *cache.Cache
	Notifier  Notifier
	Chemistry ChemistrySource
}

// Engine is the matching service: candidate selection, scoring through the
// cache, and match creation and resolution
type Engine struct {
	profiles   profile.Repository
	matches    Repository
	alerts     AlertRepository
	cache      *cache.Cache
	filter     *CandidateFilter
	scorer     *Scorer
	lifecycle  *Lifecycle
	monitor    *Monitor
	scoreFloor int
}

func NewEngine(deps Dependencies, cfg config.MatchingConfig, thresholds config.AlertThresholds) *Engine {
	return &Engine{
		profiles:   deps.Profiles,
		matches:    deps.Matches,
		alerts:     deps.Alerts,
		cache:      deps.Cache,
		filter:     NewCandidateFilter(deps.Profiles, deps.Matches, cfg.ActiveWindow),
		scorer:     NewScorer(deps.Chemistry),
		lifecycle:  NewLifecycle(deps.Matches, deps.Notifier, cfg.MatchTTL),
		monitor:    NewMonitor(thresholds, deps.Alerts),
		scoreFloor: cfg.ScoreFloor,
	}
}

type scoredCandidate struct {
	profile *profile.Profile
	result  *CompatibilityResult
}

// FindMatches pairs userID with the best scoring eligible candidate.
// Candidates already paired by a concurrent request are skipped.
func (e *Engine) FindMatches(ctx context.Context, userID int64) (result *FindResult, err error) {
	defer func(start time.Time) { e.monitor.Track("find_matches", start, err) }(time.Now())

	requester, err := e.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !requester.IsComplete {
		return nil, profile.ErrProfileIncomplete
	}

	prefs, err := e.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.filter.FilterCandidates(ctx, requester, prefs)
	if err != nil {
		return nil, fmt.Errorf("filter candidates: %w", err)
	}
	RecordCandidates(len(candidates))

	result = &FindResult{CandidatesConsidered: len(candidates)}
	if len(candidates) == 0 {
		RecordFindResult("no_candidates")
		return result, nil
	}

	ranked := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := e.compatibility(ctx, requester, c)
		if score.Score >= e.scoreFloor {
			ranked = append(ranked, scoredCandidate{profile: c, result: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].result.Score != ranked[j].result.Score {
			return ranked[i].result.Score > ranked[j].result.Score
		}
		return ranked[i].profile.UserID < ranked[j].profile.UserID
	})

	for _, best := range ranked {
		match, err := e.lifecycle.Create(ctx, userID, best.profile.UserID, best.result)
		if errors.Is(err, ErrMatchExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create match: %w", err)
		}
		RecordFindResult("matched")
		result.Match = match
		result.Compatibility = best.result
		return result, nil
	}

	RecordFindResult("no_match")
	return result, nil
}

func (e *Engine) Compatibility(ctx context.Context, userID, otherID int64) (result *CompatibilityResult, err error) {
	defer func(start time.Time) { e.monitor.Track("compatibility", start, err) }(time.Now())

	if userID == otherID {
		return nil, ErrSelfMatch
	}
	a, err := e.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, err := e.loadProfile(ctx, otherID)
	if err != nil {
		return nil, err
	}
	return e.compatibility(ctx, a, b), nil
}

func (e *Engine) Decide(ctx context.Context, matchID string, userID int64, decision Decision) (match *Match, err error) {
	defer func(start time.Time) { e.monitor.Track("decide", start, err) }(time.Now())
	return e.lifecycle.Decide(ctx, matchID, userID, decision)
}

func (e *Engine) GetMatch(ctx context.Context, matchID string, userID int64) (match *Match, err error) {
	defer func(start time.Time) { e.monitor.Track("get_match", start, err) }(time.Now())

	match, err = e.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return match, nil
}

func (e *Engine) ListMatches(ctx context.Context, userID int64, status Status) (matches []*Match, err error) {
	defer func(start time.Time) { e.monitor.Track("list_matches", start, err) }(time.Now())

	switch status {
	case "", StatusPending, StatusMutualMatch, StatusRejected, StatusExpired:
	default:
		return nil, ErrInvalidStatus
	}
	return e.matches.GetUserMatches(ctx, userID, status)
}

// InvalidateUser drops cached data for userID after a profile or
// preference change
func (e *Engine) InvalidateUser(ctx context.Context, userID int64) (int, error) {
	return e.cache.Invalidate(ctx, userID)
}

func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	matches, err := e.matches.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &EngineStats{
		Matches: matches,
		Cache:   e.cache.Stats(ctx),
		Health:  e.monitor.Last(),
		Alerts:  []*Alert{},
	}
	if e.alerts != nil {
		if stats.Alerts, err = e.alerts.GetRecentAlerts(ctx, 10); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// compatibility returns the cached pair result or scores and caches it
func (e *Engine) compatibility(ctx context.Context, a, b *profile.Profile) *CompatibilityResult {
	var cached CompatibilityResult
	if e.cache.GetCompatibility(ctx, a.UserID, b.UserID, &cached) {
		return &cached
	}
	result := e.scorer.Score(a, b)
	e.cache.SetCompatibility(ctx, a.UserID, b.UserID, result)
	return result
}

func (e *Engine) loadProfile(ctx context.Context, userID int64) (*profile.Profile, error) {
	var cached profile.Profile
	if e.cache.GetProfile(ctx, userID, &cached) {
		return &cached, nil
	}
	p, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.cache.SetProfile(ctx, userID, p)
	return p, nil
}

// loadPreferences returns the usable preferences for userID. Missing or
// invalid stored preferences resolve to the permissive defaults.
func (e *Engine) loadPreferences(ctx context.Context, userID int64) (*profile.SearchPreference, error) {
	var cached profile.SearchPreference
	if e.cache.GetPreferences(ctx, userID, &cached) {
		return &cached, nil
	}
	stored, err := e.profiles.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := profile.ResolvePreferences(userID, stored)
	e.cache.SetPreferences(ctx, userID, prefs)
	return prefs, nil
}
