package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/piggy-devil/prompt-v1.0/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamChatAssemblesDeltas(t *testing.T) {
	srv := ndjsonServer(t,
		`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	)

	client := llm.NewClient(srv.URL)

	var deltas []string
	answer, err := client.StreamChat(context.Background(), "llama3.2",
		[]llm.Message{{Role: "user", Content: "hi"}},
		func(delta string) error {
			deltas = append(deltas, delta)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "Hello", answer)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestStreamChatChunkError(t *testing.T) {
	srv := ndjsonServer(t,
		`{"error":"model not found"}`,
	)

	client := llm.NewClient(srv.URL)
	_, err := client.StreamChat(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestStreamChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := llm.NewClient(srv.URL)
	_, err := client.StreamChat(context.Background(), "", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestStreamChatOnDeltaAbort(t *testing.T) {
	srv := ndjsonServer(t,
		`{"message":{"content":"one"},"done":false}`,
		`{"message":{"content":"two"},"done":false}`,
		`{"done":true}`,
	)

	client := llm.NewClient(srv.URL)
	abort := errors.New("client went away")

	partial, err := client.StreamChat(context.Background(), "", nil, func(delta string) error {
		return abort
	})
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, "one", partial)
}
