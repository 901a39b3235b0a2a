// Package ollama implements the generation engine contract on top of
// Ollama's /api/generate streaming endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/engine"
)

const DefaultBaseURL = "http://localhost:11434"

type Engine struct {
	baseURL string
	client  *http.Client
}

type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

func New(baseURL string, opts ...Option) *Engine {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	e := &Engine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (e *Engine) Generate(ctx context.Context, req engine.Request, onChunk engine.ChunkHandler) (string, error) {
	body := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: true,
	}
	if req.Options != (engine.Options{}) {
		body.Options = map[string]any{
			"temperature": req.Options.Temperature,
			"top_p":       req.Options.TopP,
			"top_k":       req.Options.TopK,
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshal generate request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", errors.Wrap(err, "build generate request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "ollama generate")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.Errorf("ollama generate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var sb strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		var chunk generateChunk
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				return "", errors.New("ollama stream ended without done marker")
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", errors.Wrap(err, "decode ollama chunk")
		}
		if chunk.Error != "" {
			return "", errors.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if onChunk != nil {
				if err := onChunk(chunk.Response); err != nil {
					return "", err
				}
			}
		}
		if chunk.Done {
			break
		}
	}
	log.Trace().Str("model", req.Model).Int("chars", sb.Len()).Msg("ollama generation complete")
	return sb.String(), nil
}

// Ping checks connectivity by listing installed models.
func (e *Engine) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return errors.Wrap(err, "build tags request")
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "ollama tags")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ollama tags: status %d", resp.StatusCode)
	}
	return nil
}
