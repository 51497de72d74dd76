package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint answers every chat completion with content
func fakeEndpoint(t *testing.T, content string, choices bool) *Extractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []interface{}{},
		}
		if choices {
			resp["choices"] = []interface{}{map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return New("test-key", srv.URL+"/v1", "test-model", 5*time.Second)
}

func TestSegmentJSON(t *testing.T) {
	e := fakeEndpoint(t, "```json\n[\"Boil water\", \"Cook the pasta for 8 minutes\"]\n```", true)
	steps, err := e.Segment(context.Background(), "Boil water and cook the pasta for 8 minutes.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Boil water", "Cook the pasta for 8 minutes"}, steps)
}

func TestSegmentListFallback(t *testing.T) {
	e := fakeEndpoint(t, "1. Boil water\n2. Cook the pasta\n- Drain", true)
	steps, err := e.Segment(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Equal(t, []string{"Boil water", "Cook the pasta", "Drain"}, steps)
}

func TestSegmentNoChoices(t *testing.T) {
	e := fakeEndpoint(t, "", false)
	_, err := e.Segment(context.Background(), "Boil water")
	assert.True(t, errors.Is(err, ErrNoResponse))
}

func TestIngredients(t *testing.T) {
	e := fakeEndpoint(t, `["macaroni", "cheddar", "butter"]`, true)
	got, err := e.Ingredients(context.Background(), "Mac and cheese")
	require.NoError(t, err)
	assert.Equal(t, []string{"macaroni", "cheddar", "butter"}, got)

	bad := fakeEndpoint(t, "macaroni and cheese", true)
	_, err = bad.Ingredients(context.Background(), "Mac and cheese")
	assert.Error(t, err)
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `["a"]`, cleanJSONResponse("```json\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, cleanJSONResponse("  [\"a\"]  "))
}
