package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/utils/json"
)

func TestProvider_Generate(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"hi"},"done":true,"prompt_eval_count":20,"eval_count":5}`))
	}))
	defer server.Close()

	p, err := NewProvider(map[string]any{"base_url": server.URL})
	require.NoError(t, err)
	require.True(t, p.IsConfigured())

	gen, err := p.Generate(context.Background(), "hello", "sys", 64, "")
	require.NoError(t, err)
	assert.Equal(t, "hi", gen.Text)
	assert.Equal(t, 25, gen.TokensUsed)

	assert.False(t, got.Stream)
	assert.EqualValues(t, 64, got.Options["num_predict"])
	require.Len(t, got.Messages, 2)
}

func TestProvider_UnconfiguredWithoutBaseURL(t *testing.T) {
	p, err := NewProvider(map[string]any{"base_url": ""})
	require.NoError(t, err)
	assert.False(t, p.IsConfigured())

	_, err = NewEmbeddingProvider(map[string]any{"base_url": ""})
	assert.Error(t, err)
}

func TestProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	e, err := NewEmbeddingProvider(map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	_, err = e.Embed(context.Background(), []string{"only-one"})
	assert.Error(t, err)
}
