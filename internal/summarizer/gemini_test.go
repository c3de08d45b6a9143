package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerator_GenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Looks healthy."}]}}]}`)
	}))
	defer server.Close()

	g, err := NewGeminiGenerator(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	text, err := g.GenerateText(context.Background(), "How is the repository doing?")
	require.NoError(t, err)
	assert.Equal(t, "Looks healthy.", text)
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
