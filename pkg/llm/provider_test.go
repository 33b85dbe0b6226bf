package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator 模拟生成供应商，用于测试。
type mockGenerator struct {
	name       string
	configured bool
}

func (m *mockGenerator) Name() string         { return m.name }
func (m *mockGenerator) DefaultModel() string { return m.name + "-model" }
func (m *mockGenerator) IsConfigured() bool   { return m.configured }

func (m *mockGenerator) Generate(_ context.Context, userMessage, _ string, _ int, model string) (*Generation, error) {
	if model == "" {
		model = m.DefaultModel()
	}
	return &Generation{Text: "echo: " + userMessage, TokensUsed: 7, Model: model}, nil
}

// mockEmbedder 模拟 Embedding 供应商。
type mockEmbedder struct{}

func (m *mockEmbedder) Name() string { return "mock-embed" }

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestRegisterAndNewGenerationProvider(t *testing.T) {
	RegisterGenerationProvider("test-gen", func(config map[string]any) (GenerationProvider, error) {
		key, _ := config["api_key"].(string)
		return &mockGenerator{name: "test-gen", configured: key != ""}, nil
	})

	p, err := NewGenerationProvider("test-gen", map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, "test-gen", p.Name())
	assert.True(t, p.IsConfigured())

	gen, err := p.Generate(context.Background(), "hi", "", 16, "")
	require.NoError(t, err)
	assert.Equal(t, "test-gen-model", gen.Model)

	assert.Contains(t, ListGenerationProviders(), "test-gen")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewGenerationProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestRegisterAndNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("test-embed", func(map[string]any) (EmbeddingProvider, error) {
		return &mockEmbedder{}, nil
	})

	p, err := NewEmbeddingProvider("test-embed", nil)
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}
