package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type nopEngine struct{}

func (nopEngine) Generate(ctx context.Context, req Request, onChunk ChunkHandler) (string, error) {
	return "", nil
}

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("ollama/llama3.2:3b")
	require.NoError(t, err)
	require.Equal(t, "ollama", sel.Provider)
	require.Equal(t, "llama3.2:3b", sel.Model)
	require.Equal(t, "ollama/llama3.2:3b", sel.String())

	for _, raw := range []string{"", "noslash", "/model", "provider/", "  "} {
		_, err := ParseSelector(raw)
		require.Error(t, err, "raw=%q", raw)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("ollama", nopEngine{})
	r.Register("openai", nopEngine{})

	eng, sel, err := r.Resolve("ollama/llama3.2:3b")
	require.NoError(t, err)
	require.NotNil(t, eng)
	require.Equal(t, "llama3.2:3b", sel.Model)

	_, _, err = r.Resolve("anthropic/claude")
	require.Error(t, err)

	require.Equal(t, []string{"ollama", "openai"}, r.Providers())
}
