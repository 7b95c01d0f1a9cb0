package exercises

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"workout-mate-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/exercises", r.URL.Path)
		// 肌群名称发送前转为小写
		assert.Equal(t, "biceps", r.URL.Query().Get("muscle"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"Curl","type":"strength","muscle":"biceps","equipment":"dumbbell","difficulty":"beginner","instructions":"Curl the weight up."},
			{"name":"Chin-up","type":"strength","muscle":"biceps","equipment":"body_only","difficulty":"intermediate","instructions":"Pull yourself up."}
		]`))
	}))
	defer server.Close()

	client := NewClient(config.ExerciseAPIConfig{BaseURL: server.URL, APIKey: "test-key"})

	got, err := client.Lookup(context.Background(), "Biceps")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Curl", got[0].Name)
	assert.Equal(t, "Curl the weight up.", got[0].Instructions)
	assert.Equal(t, "intermediate", got[1].Difficulty)
}

func TestLookupEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(config.ExerciseAPIConfig{BaseURL: server.URL})

	got, err := client.Lookup(context.Background(), "forearms")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookupNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(config.ExerciseAPIConfig{BaseURL: server.URL})

	_, err := client.Lookup(context.Background(), "biceps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestLookupServerUnreachable(t *testing.T) {
	client := NewClient(config.ExerciseAPIConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Lookup(context.Background(), "biceps")
	assert.Error(t, err)
}
