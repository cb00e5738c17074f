package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	text := "Mash the grains at 67 degrees for one hour."
	first, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStaticEmbedder_Dimensions(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "hops")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "   \t\n ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "Fermentation converts wort sugars into alcohol.")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_DifferentTexts(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	a, err := e.Embed(context.Background(), "lager yeast ferments cold")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "ale yeast ferments warm")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	texts := []string{"first wort hopping", "decoction mash", ""}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "text %d", i)
	}
}

func TestStaticEmbedder_BatchEmpty(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	batch, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, batch)
	assert.Empty(t, batch)
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
