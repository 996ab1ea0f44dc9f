package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sseServer(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, Role("system"), req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			b, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": f}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestGroqClient_StreamsInOrder(t *testing.T) {
	srv := sseServer(t, "hey ", "how's ", "it going?")
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())
	frags, errs := c.Stream(context.Background(), Request{
		System:   "be nice",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})

	var seen []string
	reply, err := Collect(context.Background(), frags, errs, func(s string) error {
		seen = append(seen, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hey how's it going?", reply)
	assert.Equal(t, []string{"hey ", "how's ", "it going?"}, seen)
}

func TestGroqClient_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	frags, errs := c.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	reply, err := Collect(context.Background(), frags, errs, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGroqClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	frags, errs := c.Stream(context.Background(), Request{})
	_, err := Collect(context.Background(), frags, errs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGroqClient_MissingKey(t *testing.T) {
	c := NewGroqClient(GroqConfig{}, zap.NewNop())
	frags, errs := c.Stream(context.Background(), Request{})
	_, err := Collect(context.Background(), frags, errs, nil)
	assert.Error(t, err)
}

func TestCollect_EmptyReply(t *testing.T) {
	frags := make(chan string)
	errs := make(chan error)
	close(frags)
	close(errs)

	_, err := Collect(context.Background(), frags, errs, nil)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestCollect_StopsOnCallbackError(t *testing.T) {
	frags := make(chan string, 2)
	errs := make(chan error)
	frags <- "a"
	frags <- "b"

	boom := errors.New("client gone")
	got, err := Collect(context.Background(), frags, errs, func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", got)
}
