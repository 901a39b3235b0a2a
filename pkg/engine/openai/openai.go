// Package openai implements the generation engine contract on top of the
// official OpenAI SDK's chat-completions streaming API.
package openai

import (
	"context"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/go-go-golems/colloquy/pkg/engine"
)

type Engine struct {
	client openai.Client
}

func New(opts ...option.RequestOption) *Engine {
	return &Engine{client: openai.NewClient(opts...)}
}

func (e *Engine) Generate(ctx context.Context, req engine.Request, onChunk engine.ChunkHandler) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Options.Temperature > 0 {
		params.Temperature = openai.Float(req.Options.Temperature)
	}
	if req.Options.TopP > 0 {
		params.TopP = openai.Float(req.Options.TopP)
	}

	stream := e.client.Chat.Completions.NewStreaming(ctx, params)
	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onChunk != nil {
			if err := onChunk(delta); err != nil {
				_ = stream.Close()
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil && err != io.EOF {
		return "", errors.Wrap(err, "openai stream")
	}
	return sb.String(), nil
}
