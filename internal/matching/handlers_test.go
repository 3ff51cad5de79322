package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
	"github.com/imadgeboyega/kiekky-matching/internal/common/utils"
	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

const testSecret = "test-secret"

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(service Service) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(service), auth.NewMiddleware(testSecret))
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, userID int64, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		token, err := utils.GenerateJWT(userID, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestHandlersMatchFlow(t *testing.T) {
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles,
		requesterProfile(),
		newProfile(2, 30, "male", "Lagos", "music", "hiking"),
	)
	h := newTestRouter(te.Engine)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/matching/find", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/matching/find", 1, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var found struct {
		Match struct {
			ID         string `json:"id"`
			PartnerID  int64  `json:"partner_id"`
			MyDecision string `json:"my_decision"`
			Status     string `json:"status"`
		} `json:"match"`
		Compatibility        CompatibilityResult `json:"compatibility"`
		CandidatesConsidered int                 `json:"candidates_considered"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &found))
	assert.Equal(t, int64(2), found.Match.PartnerID)
	assert.Equal(t, "pending", found.Match.MyDecision)
	assert.Equal(t, "pending", found.Match.Status)
	assert.Equal(t, 76, found.Compatibility.Score)
	assert.Equal(t, 1, found.CandidatesConsidered)

	matchPath := "/api/v1/matching/matches/" + found.Match.ID

	rec, _ = doRequest(t, h, http.MethodGet, matchPath, 3, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, matchPath+"/decision", 2, `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, matchPath+"/decision", 2, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = doRequest(t, h, http.MethodPost, matchPath+"/decision", 2, `{"decision":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		MyDecision string `json:"my_decision"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "accepted", view.MyDecision)
	assert.Equal(t, "pending", view.Status)

	rec, resp = doRequest(t, h, http.MethodPost, matchPath+"/decision", 2, `{"decision":"rejected"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrAlreadyDecided.Error(), resp.Error)

	rec, resp = doRequest(t, h, http.MethodPost, matchPath+"/decision", 1, `{"decision":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "mutual_match", view.Status)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/matching/matches?status=mutual_match", 2, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(1), list[0]["partner_id"])

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/matching/matches?status=archived", 2, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/matching/matches/unknown", 2, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlersFindWithoutCandidates(t *testing.T) {
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles, requesterProfile())
	h := newTestRouter(te.Engine)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/matching/find", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"match":null,"candidates_considered":0}`, string(resp.Data))
}

func TestHandlersCompatibilityAndInvalidate(t *testing.T) {
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles,
		requesterProfile(),
		newProfile(2, 30, "male", "Lagos", "music", "hiking"),
	)
	h := newTestRouter(te.Engine)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/matching/compatibility/2", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result CompatibilityResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 76, result.Score)
	assert.Equal(t, TierGood, result.Tier)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/matching/compatibility/abc", 1, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/matching/compatibility/1", 1, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/matching/compatibility/99", 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/matching/users/2/invalidate", 1, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/matching/users/1/invalidate", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":1,"evicted":2}`, string(resp.Data))

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/matching/stats", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Matches Stats         `json:"matches"`
		Alerts  []interface{} `json:"recent_alerts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Zero(t, stats.Matches.Total)
	assert.NotNil(t, stats.Alerts)
}

// failingService returns err from every operation
type failingService struct {
	err error
}

func (s failingService) FindMatches(ctx context.Context, userID int64) (*FindResult, error) {
	return nil, s.err
}

func (s failingService) Compatibility(ctx context.Context, userID, otherID int64) (*CompatibilityResult, error) {
	return nil, s.err
}

func (s failingService) Decide(ctx context.Context, matchID string, userID int64, decision Decision) (*Match, error) {
	return nil, s.err
}

func (s failingService) GetMatch(ctx context.Context, matchID string, userID int64) (*Match, error) {
	return nil, s.err
}

func (s failingService) ListMatches(ctx context.Context, userID int64, status Status) ([]*Match, error) {
	return nil, s.err
}

func (s failingService) InvalidateUser(ctx context.Context, userID int64) (int, error) {
	return 0, s.err
}

func (s failingService) Stats(ctx context.Context) (*EngineStats, error) {
	return nil, s.err
}

func TestHandlersMapServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{profile.ErrProfileNotFound, http.StatusNotFound},
		{ErrMatchNotFound, http.StatusNotFound},
		{ErrNotParticipant, http.StatusForbidden},
		{ErrMatchExpired, http.StatusGone},
		{ErrAlreadyDecided, http.StatusConflict},
		{ErrMatchNotActive, http.StatusConflict},
		{ErrConcurrentUpdate, http.StatusConflict},
		{profile.ErrProfileIncomplete, http.StatusBadRequest},
		{ErrSelfMatch, http.StatusBadRequest},
		{fmt.Errorf("search profiles: %w", database.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestRouter(failingService{err: tt.err})

			rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/matching/matches/m-1/decision", 1, `{"decision":"accepted"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)

			if tt.want == http.StatusServiceUnavailable {
				assert.Equal(t, "5", rec.Header().Get("Retry-After"))
			}
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "Failed to record decision", resp.Error, "internal details stay private")
			}
		})
	}
}
