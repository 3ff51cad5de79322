package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
	"github.com/imadgeboyega/kiekky-matching/internal/common/utils"
)

func authedRequest(t *testing.T, method, path string, userID int64) *http.Request {
	t.Helper()
	token, err := utils.GenerateJWT(userID, "secret", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestNotificationHandlers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Now().UTC()
	require.NoError(t, repo.CreateBatchNotifications(ctx, []*Notification{
		{ID: "n-1", UserID: 1, Type: TypeMatchCreated, Title: "New match", CreatedAt: base.Add(-2 * time.Minute)},
		{ID: "n-2", UserID: 1, Type: TypeMutualMatch, Title: "It's a match!", CreatedAt: base.Add(-time.Minute)},
		{ID: "n-3", UserID: 2, Type: TypeMatchCreated, Title: "New match", CreatedAt: base},
	}))

	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(repo), auth.NewMiddleware("secret"))

	list := func(path string) []Notification {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(t, http.MethodGet, path, 1))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data []Notification `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Data
	}

	got := list("/api/v1/notifications")
	require.Len(t, got, 2)
	assert.Equal(t, "n-2", got[0].ID, "newest first")

	got = list("/api/v1/notifications?limit=1&offset=1")
	require.Len(t, got, 1)
	assert.Equal(t, "n-1", got[0].ID)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/notifications/n-2/read", 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	got = list("/api/v1/notifications?unread=true")
	require.Len(t, got, 1)
	assert.Equal(t, "n-1", got[0].ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/notifications/n-3/read", 1))
	assert.Equal(t, http.StatusNotFound, rec.Code, "cannot read another user's notification")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
