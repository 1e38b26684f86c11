package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/srt-reserver/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlack_Delivers(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("content-type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	NewSlack(srv.URL, nil).Notify(context.Background(), "reservation booked")

	assert.Equal(t, map[string]string{"text": "reservation booked"}, got)
}

func TestSlack_FailureIsLoggedNotRaised(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo, "text")

	NewSlack(srv.URL, logger).Notify(context.Background(), "hello")

	assert.Contains(t, buf.String(), "slack notification not delivered")
	assert.Contains(t, buf.String(), "403")
	assert.Contains(t, buf.String(), "invalid_token")
}

func TestSlack_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo, "text")
	NewSlack(url, logger).Notify(context.Background(), "hello")

	assert.Contains(t, buf.String(), "notification delivery failed")
}

func TestNew_SelectsImplementation(t *testing.T) {
	_, isLog := New("", nil).(Log)
	assert.True(t, isLog)
	_, isSlack := New("https://hooks.example.test/x", nil).(*Slack)
	assert.True(t, isSlack)
}

func TestMulti(t *testing.T) {
	var got []string
	m := Multi{
		Func(func(_ context.Context, msg string) { got = append(got, "a:"+msg) }),
		nil,
		Func(func(_ context.Context, msg string) { got = append(got, "b:"+msg) }),
	}
	m.Notify(context.Background(), "x")
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}
