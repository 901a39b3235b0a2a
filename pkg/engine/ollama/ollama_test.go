package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/engine"
)

func ndjsonServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateStreamsChunks(t *testing.T) {
	srv := ndjsonServer(t,
		`{"response":"To ","done":false}`,
		`{"response":"be.","done":false}`,
		`{"response":"","done":true}`,
	)
	e := New(srv.URL)

	var deltas []string
	content, err := e.Generate(context.Background(), engine.Request{
		Model:  "llama3.2:3b",
		Prompt: "speak",
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "To be.", content)
	require.Equal(t, []string{"To ", "be."}, deltas)
}

func TestGenerateForwardsOptions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got, _ = body["options"].(map[string]any)
		fmt.Fprintln(w, `{"response":"ok","done":true}`)
	}))
	t.Cleanup(srv.Close)

	e := New(srv.URL)
	_, err := e.Generate(context.Background(), engine.Request{
		Model:   "m",
		Prompt:  "p",
		Options: engine.Options{Temperature: 0.8, TopP: 0.9, TopK: 40},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0.8, got["temperature"])
	require.Equal(t, 0.9, got["top_p"])
	require.Equal(t, float64(40), got["top_k"])
}

func TestGenerateSurfacesModelError(t *testing.T) {
	srv := ndjsonServer(t, `{"error":"model not found"}`)
	e := New(srv.URL)

	_, err := e.Generate(context.Background(), engine.Request{Model: "m", Prompt: "p"}, nil)
	require.ErrorContains(t, err, "model not found")
}

func TestGenerateRejectsTruncatedStream(t *testing.T) {
	srv := ndjsonServer(t, `{"response":"half","done":false}`)
	e := New(srv.URL)

	_, err := e.Generate(context.Background(), engine.Request{Model: "m", Prompt: "p"}, nil)
	require.ErrorContains(t, err, "without done marker")
}

func TestGenerateCallbackAborts(t *testing.T) {
	srv := ndjsonServer(t,
		`{"response":"a","done":false}`,
		`{"response":"b","done":false}`,
		`{"response":"","done":true}`,
	)
	e := New(srv.URL)

	abort := errors.New("stop now")
	_, err := e.Generate(context.Background(), engine.Request{Model: "m", Prompt: "p"}, func(delta string) error {
		return abort
	})
	require.ErrorIs(t, err, abort)
}

func TestGenerateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := New(srv.URL)
	_, err := e.Generate(context.Background(), engine.Request{Model: "m", Prompt: "p"}, nil)
	require.ErrorContains(t, err, "status 404")
}

func TestNewNormalizesBaseURL(t *testing.T) {
	e := New("localhost:11434/")
	require.Equal(t, "http://localhost:11434", e.baseURL)

	e = New("")
	require.Equal(t, DefaultBaseURL, e.baseURL)
}
