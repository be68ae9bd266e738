package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestNotifySendsAuthorizedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/notify", r.URL.Path)
		require.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var req struct {
			RequesterID string `json:"requester_id"`
			Title       string `json:"title"`
			Body        string `json:"body"`
			DeepLink    string `json:"deep_link"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.RequesterID)
		assert.Equal(t, "agora://tasks/t1", req.DeepLink)

		json.NewEncoder(w).Encode(map[string]interface{}{"delivered": true, "count": 2})
	}))
	defer server.Close()

	n := NewNotifier(config.PushConfig{ProviderURL: server.URL, APIKey: "secret-key"}, testLogger())
	result, err := n.Notify(context.Background(), "user-1", ports.Notification{
		Title:    "Your answer is ready",
		Body:     "short body",
		DeepLink: "agora://tasks/t1",
	})
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Equal(t, 2, result.Count)
}

func TestNotifyGoneSubscriptionsAreNotErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"delivered": true,
			"count":     1,
			"gone":      []string{"sub-dead-1", "sub-dead-2"},
		})
	}))
	defer server.Close()

	n := NewNotifier(config.PushConfig{ProviderURL: server.URL}, testLogger())
	result, err := n.Notify(context.Background(), "user-1", ports.Notification{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.True(t, result.Delivered)
}

func TestNotifyProviderErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNotifier(config.PushConfig{ProviderURL: server.URL}, testLogger())
	_, err := n.Notify(context.Background(), "user-1", ports.Notification{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
